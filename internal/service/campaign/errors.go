package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound      = errors.New("campaign not found")
	ErrInvalidInput  = errors.New("invalid campaign input")
	ErrInvalidStatus = errors.New("invalid campaign status")
)
