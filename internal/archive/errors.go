package archive

import "errors"

var (
	ErrNotFound = errors.New("replay not found")
	ErrExists   = errors.New("replay already archived")
	ErrCorrupt  = errors.New("replay digest mismatch")
)
