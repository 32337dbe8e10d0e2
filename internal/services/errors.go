package services

import "errors"

var (
	// ErrServiceUnavailable is returned by writes when no store is wired.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrWriteFailed wraps any store error raised while writing.
	ErrWriteFailed = errors.New("write failed")
	// ErrIncomplete means a required form field was left blank.
	ErrIncomplete = errors.New("required field missing")
)
