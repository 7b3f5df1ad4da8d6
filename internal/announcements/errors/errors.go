package errors

import "errors"

var (
	ErrNotFound    = errors.New("announcement not found")
	ErrDuplicateID = errors.New("announcement id already exists")
)
