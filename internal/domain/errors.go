package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound          = errors.New("domain: not found")
	ErrInvalidIntent     = errors.New("domain: invalid intent")
	ErrUnknownObjectType = errors.New("domain: unknown object type")
	ErrNotConnected      = errors.New("domain: not connected")
	ErrUnauthenticated   = errors.New("domain: unauthenticated")
	ErrForbidden         = errors.New("domain: forbidden")
)
