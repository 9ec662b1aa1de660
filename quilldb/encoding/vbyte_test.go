package encoding

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintWireFormat(t *testing.T) {
	tests := []struct {
		v        uint64
		expected []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x81}},
		{127, []byte{0xff}},
		// Little endian: low seven bits first, high bit marks the final byte.
		{128, []byte{0x00, 0x81}},
		{130, []byte{0x02, 0x81}},
		{16383, []byte{0x7f, 0xff}},
		{16384, []byte{0x00, 0x00, 0x81}},
	}

	for _, tc := range tests {
		var buf [10]byte
		n := PutUvarint(buf[:], tc.v)
		assert.Equal(t, tc.expected, buf[:n], "encoding %d", tc.v)
		assert.Equal(t, len(tc.expected), UvarintLen(tc.v))

		v, read := Uvarint(buf[:n])
		assert.Equal(t, tc.v, v)
		assert.Equal(t, n, read)
	}
}

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 42, 127, 128, 300, 1<<14 - 1, 1 << 14, 1 << 21, 1<<32 - 1, 1<<63 + 17}

	var stream []byte
	for _, v := range values {
		stream = AppendUvarint(stream, v)
	}

	off := 0
	for _, v := range values {
		got, n := Uvarint(stream[off:])
		require.NotZero(t, n)
		assert.Equal(t, v, got)
		off += n
	}
	assert.Equal(t, len(stream), off)
}

func TestUvarintTruncated(t *testing.T) {
	// A lone continuation byte never terminates.
	_, n := Uvarint([]byte{0x00})
	assert.Zero(t, n)

	_, n = Uvarint(nil)
	assert.Zero(t, n)
}

func TestVByteDecoder(t *testing.T) {
	var stream []byte
	for _, v := range []uint64{3, 0, 128, 999999} {
		stream = AppendUvarint(stream, v)
	}

	dec := NewVByteDecoder(bytes.NewReader(stream))
	for _, expected := range []uint64{3, 0, 128, 999999} {
		v, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, expected, v)
	}

	_, err := dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestVByteDecoderCorruptMidInteger(t *testing.T) {
	// Continuation byte with no terminator behind it.
	dec := NewVByteDecoder(bytes.NewReader([]byte{0x01}))
	_, err := dec.Next()
	assert.True(t, errors.Is(err, ErrCorruptedIndexFile))
}
