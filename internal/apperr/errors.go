package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrParse          = errors.New("parse error")
	ErrValidation     = errors.New("validation failed")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrOutsideRoot    = errors.New("path escapes project root")
)
