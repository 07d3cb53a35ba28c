// Package wire decodes the scalar encodings used by the game's telemetry frames.
package wire

// MaxVarIntGroups bounds the number of 7-bit groups read for one varint.
// Five groups cover every 32-bit value.
const MaxVarIntGroups = 5

// DecodeVarInt reads an unsigned LEB128 varint starting at offset.
// It returns the value and the number of bytes consumed. On error nothing is consumed.
func DecodeVarInt(buf []byte, offset int) (uint64, int, error) {
	if offset < 0 {
		return 0, 0, ErrTruncated
	}

	var value uint64
	for i := 0; i < MaxVarIntGroups; i++ {
		pos := offset + i
		if pos >= len(buf) {
			return 0, 0, ErrTruncated
		}
		b := buf[pos]
		value |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, ErrOverlong
}

// AppendVarInt appends the LEB128 encoding of v to dst.
func AppendVarInt(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// VarIntLen returns the number of bytes AppendVarInt uses for v.
func VarIntLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
