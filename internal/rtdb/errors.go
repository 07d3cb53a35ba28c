package rtdb

import "errors"

var (
	ErrUnauthorized = errors.New("database rejected credentials")
	ErrRateLimited  = errors.New("rate limited by database")
)
