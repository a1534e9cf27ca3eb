package kv

import (
	"encoding/binary"
	"fmt"
)

// Codec encodes and decodes a typed key or value to and from the
// byte-ordered representation the embedded store persists. Integers are
// encoded big-endian so that byte-lexicographic order matches numeric
// order; strings are length-prefixed so composite keys built from them
// stay self-delimiting under prefix scans.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (Uint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes for uint64, got %d", ErrCodec, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64Codec encodes a signed 64-bit key (process/decision/DRG keys are
// monotonically increasing snowflake ids, so big-endian bytes of the
// unsigned bit pattern preserve the intended ordering).
type Int64Codec struct{}

func (Int64Codec) Encode(v int64) []byte {
	return Uint64Codec{}.Encode(uint64(v))
}

func (Int64Codec) Decode(b []byte) (int64, error) {
	u, err := (Uint64Codec{}).Decode(b)
	return int64(u), err
}

type Int32Codec struct{}

func (Int32Codec) Encode(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func (Int32Codec) Decode(b []byte) (int32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: expected 4 bytes for int32, got %d", ErrCodec, len(b))
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// StringCodec encodes a string as a 2-byte big-endian length prefix
// followed by its UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Encode(v string) []byte {
	b := make([]byte, 2+len(v))
	binary.BigEndian.PutUint16(b, uint16(len(v)))
	copy(b[2:], v)
	return b
}

func (StringCodec) Decode(b []byte) (string, error) {
	s, _, err := decodeStringPrefix(b)
	return s, err
}

func decodeStringPrefix(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, fmt.Errorf("%w: truncated string length prefix", ErrCodec)
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return "", 0, fmt.Errorf("%w: string length overruns buffer", ErrCodec)
	}
	return string(b[2 : 2+n]), 2 + n, nil
}

// NilCodec encodes the empty marker value used by join/index column
// families whose keys alone carry the information (e.g. decisionKeyByDrgKey).
type NilCodec struct{}

func (NilCodec) Encode(struct{}) []byte       { return []byte{} }
func (NilCodec) Decode([]byte) (struct{}, error) { return struct{}{}, nil }

// CompositeKey pairs two typed key components, e.g. (decisionId, version)
// or (drgKey, decisionKey).
type CompositeKey[A, B any] struct {
	First  A
	Second B
}

// CompositeCodec concatenates the encodings of its two components. Because
// the first component's codec is self-delimiting (fixed width or
// length-prefixed), a prefix scan over the first component alone (via
// PrefixOfFirst) yields exactly the rows sharing that first component.
type CompositeCodec[A, B any] struct {
	First  Codec[A]
	Second Codec[B]
}

func (c CompositeCodec[A, B]) Encode(v CompositeKey[A, B]) []byte {
	a := c.First.Encode(v.First)
	b := c.Second.Encode(v.Second)
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func (c CompositeCodec[A, B]) Decode(b []byte) (CompositeKey[A, B], error) {
	var zero CompositeKey[A, B]
	// Decode always fails: splitting the key needs the byte length of the
	// first component, which this method does not know. Callers that need
	// to decode composite keys back out (rather than just scan by prefix)
	// use DecodeSplit.
	return zero, fmt.Errorf("%w: composite key decode requires a known split point, use DecodeSplit", ErrCodec)
}

// EncodeFirstPrefix encodes just the first component, for use as a scan
// prefix over a column family keyed by CompositeKey[A, B].
func (c CompositeCodec[A, B]) EncodeFirstPrefix(first A) []byte {
	return c.First.Encode(first)
}

// DecodeSplit decodes a composite key given the byte length consumed by the
// first component (fixed-width components know their own length; for
// length-prefixed components such as strings use StringKeyLen).
func (c CompositeCodec[A, B]) DecodeSplit(b []byte, firstLen int) (CompositeKey[A, B], error) {
	var zero CompositeKey[A, B]
	if len(b) < firstLen {
		return zero, fmt.Errorf("%w: composite key shorter than expected first component", ErrCodec)
	}
	first, err := c.First.Decode(b[:firstLen])
	if err != nil {
		return zero, err
	}
	second, err := c.Second.Decode(b[firstLen:])
	if err != nil {
		return zero, err
	}
	return CompositeKey[A, B]{First: first, Second: second}, nil
}

// StringKeyLen returns the total encoded length (prefix + payload) of a
// StringCodec-encoded key at the start of b, used to locate the split
// point before calling DecodeSplit.
func StringKeyLen(b []byte) (int, error) {
	_, n, err := decodeStringPrefix(b)
	return n, err
}
