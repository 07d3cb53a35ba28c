package wire

// Reader walks a payload front to back, advancing by each field's width.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the cursor position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// VarInt decodes the next varint. The cursor does not move on error.
func (r *Reader) VarInt(field string) (uint64, error) {
	v, n, err := DecodeVarInt(r.buf, r.off)
	if err != nil {
		return 0, &FieldError{Field: field, Offset: r.off, Err: err}
	}
	r.off += n
	return v, nil
}

// Float32 decodes the next float32. The cursor does not move on error.
func (r *Reader) Float32(field string) (float32, error) {
	v, n, err := DecodeFloat32(r.buf, r.off)
	if err != nil {
		return 0, &FieldError{Field: field, Offset: r.off, Err: err}
	}
	r.off += n
	return v, nil
}
