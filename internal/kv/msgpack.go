package kv

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec adapts any MessagePack-serializable struct to the Codec[T]
// interface, for use as a column family's value codec.
type MsgpackCodec[T any] struct{}

func (MsgpackCodec[T]) Encode(v T) []byte {
	b, err := msgpack.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to encode msgpack value: %s", err))
	}
	return b
}

func (MsgpackCodec[T]) Decode(b []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrCodec, err)
	}
	return v, nil
}
