package wire

import (
	"encoding/binary"
	"math"
)

// Float32Size is the fixed width of an encoded float32.
const Float32Size = 4

// DecodeFloat32 reads a little-endian IEEE-754 single at offset.
func DecodeFloat32(buf []byte, offset int) (float32, int, error) {
	if offset < 0 || len(buf)-offset < Float32Size {
		return 0, 0, ErrTruncated
	}
	bits := binary.LittleEndian.Uint32(buf[offset : offset+Float32Size])
	return math.Float32frombits(bits), Float32Size, nil
}

// AppendFloat32 appends the little-endian encoding of f to dst.
func AppendFloat32(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
}
