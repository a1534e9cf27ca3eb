package kv

import "errors"

// ErrCodec marks an encoding/decoding overrun. These are fatal conditions,
// not recoverable ones: a stored key or value that fails to decode means
// the on-disk format and the code have drifted.
var ErrCodec = errors.New("kv: codec error")

// ErrMissingPrimary is returned when deleteExisting or update targets a key
// that is not present in the column family. It is never panicked with;
// dispatch classifies it as an unexpected (fatal) error.
var ErrMissingPrimary = errors.New("kv: missing primary key")

// ErrForeignKeyViolation marks a write whose foreign key does not resolve
// to an existing row in the referenced column family.
var ErrForeignKeyViolation = errors.New("kv: foreign key violation")
