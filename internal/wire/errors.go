package wire

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated = errors.New("buffer truncated")
	ErrOverlong  = errors.New("varint exceeds group limit")
)

// FieldError records which field of a message failed to decode and where.
type FieldError struct {
	Field  string
	Offset int
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("decoding %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
