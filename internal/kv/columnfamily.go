package kv

import (
	"bytes"
	"fmt"
)

// ColumnFamily binds a Go key/value pair to a named bucket inside the
// embedded store, encoding and decoding through the given codecs on every
// access. It is the typed equivalent of a column family keyed on a single,
// self-delimiting key type.
type ColumnFamily[K, V any] struct {
	name      []byte
	keyCodec  Codec[K]
	valCodec  Codec[V]
}

func NewColumnFamily[K, V any](name string, keyCodec Codec[K], valCodec Codec[V]) *ColumnFamily[K, V] {
	return &ColumnFamily[K, V]{name: []byte(name), keyCodec: keyCodec, valCodec: valCodec}
}

// Get looks up key, returning found=false rather than an error when absent.
func (cf *ColumnFamily[K, V]) Get(tx *Transaction, key K) (value V, found bool, err error) {
	b, err := tx.bucket(cf.name)
	if err != nil {
		return value, false, err
	}
	if b == nil {
		return value, false, nil
	}
	raw := b.Get(cf.keyCodec.Encode(key))
	if raw == nil {
		return value, false, nil
	}
	v, err := cf.valCodec.Decode(raw)
	if err != nil {
		return value, false, fmt.Errorf("column family %s: %w", cf.name, err)
	}
	return v, true, nil
}

func (cf *ColumnFamily[K, V]) Exists(tx *Transaction, key K) (bool, error) {
	_, found, err := cf.Get(tx, key)
	return found, err
}

// Upsert inserts or overwrites key with value.
func (cf *ColumnFamily[K, V]) Upsert(tx *Transaction, key K, value V) error {
	b, err := tx.bucket(cf.name)
	if err != nil {
		return err
	}
	return b.Put(cf.keyCodec.Encode(key), cf.valCodec.Encode(value))
}

// Update reads the current value for key, applies fn, and writes the
// result back. It returns ErrMissingPrimary if key is absent.
func (cf *ColumnFamily[K, V]) Update(tx *Transaction, key K, fn func(V) V) error {
	v, found, err := cf.Get(tx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("column family %s, key update: %w", cf.name, ErrMissingPrimary)
	}
	return cf.Upsert(tx, key, fn(v))
}

// DeleteExisting removes key, which must be present; deleting an absent
// key is a programming error in every caller of this binding, so it
// returns ErrMissingPrimary rather than silently succeeding.
func (cf *ColumnFamily[K, V]) DeleteExisting(tx *Transaction, key K) error {
	b, err := tx.bucket(cf.name)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("column family %s, delete %v: %w", cf.name, key, ErrMissingPrimary)
	}
	encoded := cf.keyCodec.Encode(key)
	if b.Get(encoded) == nil {
		return fmt.Errorf("column family %s, delete %v: %w", cf.name, key, ErrMissingPrimary)
	}
	return b.Delete(encoded)
}

// DeleteIfExists removes key if present, and is a no-op otherwise. Used by
// index/join column families whose entries are allowed to have already
// been cleaned up by a previous partial apply.
func (cf *ColumnFamily[K, V]) DeleteIfExists(tx *Transaction, key K) error {
	b, err := tx.bucket(cf.name)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	return b.Delete(cf.keyCodec.Encode(key))
}

// ScanPrefix iterates every entry whose encoded key starts with prefix, in
// ascending byte order, calling fn for each until fn returns false or the
// prefix is exhausted.
func (cf *ColumnFamily[K, V]) ScanPrefix(tx *Transaction, prefix []byte, fn func(key K, value V) (bool, error)) error {
	b, err := tx.bucket(cf.name)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	c := b.Cursor()
	for k, raw := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, raw = c.Next() {
		key, err := cf.keyCodec.Decode(k)
		if err != nil {
			return fmt.Errorf("column family %s: %w", cf.name, err)
		}
		value, err := cf.valCodec.Decode(raw)
		if err != nil {
			return fmt.Errorf("column family %s: %w", cf.name, err)
		}
		cont, err := fn(key, value)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// CompositeColumnFamily is a ColumnFamily keyed on a CompositeKey[A, B]
// whose first component is self-delimiting (fixed width or length-prefixed),
// letting prefix scans and key-splitting work without guessing an
// ambiguous split point. splitAt
// reports how many leading bytes of an encoded composite key belong to its
// first component: a constant for fixed-width components (int32, int64),
// or StringKeyLen for a length-prefixed string component.
type CompositeColumnFamily[A, B, V any] struct {
	cf      *ColumnFamily[[]byte, V]
	codec   CompositeCodec[A, B]
	splitAt func([]byte) (int, error)
}

func NewCompositeColumnFamily[A, B, V any](name string, codec CompositeCodec[A, B], splitAt func([]byte) (int, error), valCodec Codec[V]) *CompositeColumnFamily[A, B, V] {
	return &CompositeColumnFamily[A, B, V]{
		cf:      NewColumnFamily[[]byte, V](name, rawBytesCodec{}, valCodec),
		codec:   codec,
		splitAt: splitAt,
	}
}

// FixedSplit builds a splitAt function for a first component with constant
// encoded width n (e.g. 8 for Int64Codec, 4 for Int32Codec).
func FixedSplit(n int) func([]byte) (int, error) {
	return func([]byte) (int, error) { return n, nil }
}

func (cf *CompositeColumnFamily[A, B, V]) Get(tx *Transaction, key CompositeKey[A, B]) (value V, found bool, err error) {
	return cf.cf.Get(tx, cf.codec.Encode(key))
}

func (cf *CompositeColumnFamily[A, B, V]) Upsert(tx *Transaction, key CompositeKey[A, B], value V) error {
	return cf.cf.Upsert(tx, cf.codec.Encode(key), value)
}

func (cf *CompositeColumnFamily[A, B, V]) DeleteExisting(tx *Transaction, key CompositeKey[A, B]) error {
	return cf.cf.DeleteExisting(tx, cf.codec.Encode(key))
}

func (cf *CompositeColumnFamily[A, B, V]) DeleteIfExists(tx *Transaction, key CompositeKey[A, B]) error {
	return cf.cf.DeleteIfExists(tx, cf.codec.Encode(key))
}

// ScanByFirst iterates every entry sharing the given first component, in
// ascending order of the second component (e.g. every version of a
// decision id, or every decision belonging to a DRG key).
func (cf *CompositeColumnFamily[A, B, V]) ScanByFirst(tx *Transaction, first A, fn func(key CompositeKey[A, B], value V) (bool, error)) error {
	prefix := cf.codec.EncodeFirstPrefix(first)
	return cf.cf.ScanPrefix(tx, prefix, func(raw []byte, value V) (bool, error) {
		firstLen, err := cf.splitAt(raw)
		if err != nil {
			return false, err
		}
		key, err := cf.codec.DecodeSplit(raw, firstLen)
		if err != nil {
			return false, err
		}
		return fn(key, value)
	})
}

// rawBytesCodec is the identity codec used internally by
// CompositeColumnFamily, which does its own encoding via CompositeCodec
// before delegating storage to a plain ColumnFamily[[]byte, V].
type rawBytesCodec struct{}

func (rawBytesCodec) Encode(v []byte) []byte { return v }
func (rawBytesCodec) Decode(b []byte) ([]byte, error) { return b, nil }
