package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these onto
// HTTP status codes with errors.Is.
var (
	ErrNotFound      = errors.New("does not exist or is not accessible")
	ErrConflict      = errors.New("conflict")
	ErrStorage       = errors.New("storage operation failed")
	ErrParsingFailed = errors.New("error parsing export file")
)
