package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrDuplicateID = errors.New("booking id already exists")

	// ErrStatusChanged means a conditional status update found the booking in
	// a different status than expected.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
