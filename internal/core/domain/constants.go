package domain

import "errors"

var (
	ErrInvocationFailed = errors.New("inventory command failed")
	ErrMalformedOutput  = errors.New("malformed inventory output")
	ErrNotConnected     = errors.New("transport not connected")
	ErrUnknownTransport = errors.New("unknown transport")
)
