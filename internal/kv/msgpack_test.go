package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Name string `msgpack:"name"`
	N    int32  `msgpack:"n"`
}

func TestMsgpackCodecRoundTrip(t *testing.T) {
	codec := MsgpackCodec[samplePayload]{}
	original := samplePayload{Name: "x", N: 7}
	decoded, err := codec.Decode(codec.Encode(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMsgpackCodecDecodeErrorWrapsErrCodec(t *testing.T) {
	codec := MsgpackCodec[samplePayload]{}
	_, err := codec.Decode([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrCodec)
}
