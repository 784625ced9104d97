package server

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotFound     = errors.New("event not found")
	ErrUnauthorized = errors.New("calendar not connected")
	ErrBadRequest   = errors.New("bad request")
	ErrServe        = errors.New("serve failed")
)
