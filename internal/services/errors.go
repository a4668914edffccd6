package services

import "errors"

// Dashboard service errors
var (
	ErrUnknownTable       = errors.New("unknown sales table")
	ErrInvalidSort        = errors.New("invalid sort order")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
