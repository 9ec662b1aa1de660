package encoding

import (
	"io"

	"github.com/pkg/errors"
)

// ErrCorruptedIndexFile is returned when a vbyte stream ends mid-integer or a
// length prefix exceeds the remaining bytes.  Non-recoverable for the
// affected file.
var ErrCorruptedIndexFile = errors.New("corrupted index file")

// The wire format is base-128 little-endian.  The high bit is set on the
// final byte of each integer; all earlier bytes have it clear.

// UvarintLen returns the number of bytes Uvarint encoding of v occupies.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// PutUvarint encodes v into b and returns the number of bytes written.
// Panics if b is too small; callers size their buffers with UvarintLen.
func PutUvarint(b []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		b[i] = byte(v & 0x7f)
		v >>= 7
		i++
	}
	b[i] = byte(v) | 0x80
	return i + 1
}

// Uvarint decodes a single integer from the front of b.  It returns the value
// and the number of bytes consumed.  A zero byte count means b ended
// mid-integer.
func Uvarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c&0x80 != 0 {
			return v | uint64(c&0x7f)<<shift, i + 1
		}
		v |= uint64(c) << shift
		shift += 7
	}
	return 0, 0
}

// AppendUvarint appends the encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7f))
		v >>= 7
	}
	return append(dst, byte(v)|0x80)
}

// WriteUvarint writes the encoding of v to w.
func WriteUvarint(w io.Writer, v uint64) (int, error) {
	var buf [10]byte
	n := PutUvarint(buf[:], v)
	return w.Write(buf[:n])
}

// VByteDecoder is a stateful cursor over a byte stream.  It reads one integer
// at a time and can straddle arbitrary boundaries of the underlying reader.
type VByteDecoder struct {
	r io.ByteReader
}

func NewVByteDecoder(r io.ByteReader) *VByteDecoder {
	return &VByteDecoder{r: r}
}

// Next consumes exactly the bytes of one integer and yields it.  A clean EOF
// before the first byte is io.EOF; an EOF mid-integer is corruption.
func (d *VByteDecoder) Next() (uint64, error) {
	var v uint64
	var shift uint
	first := true
	for {
		c, err := d.r.ReadByte()
		if err == io.EOF {
			if first {
				return 0, io.EOF
			}
			return 0, errors.Wrap(ErrCorruptedIndexFile, "vbyte stream ended mid-integer")
		}
		if err != nil {
			return 0, err
		}
		first = false
		if c&0x80 != 0 {
			return v | uint64(c&0x7f)<<shift, nil
		}
		v |= uint64(c) << shift
		shift += 7
	}
}
