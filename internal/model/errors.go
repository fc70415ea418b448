package model

import "errors"

var (
	// Envelope errors
	ErrInvalidEnvelope = errors.New("invalid response envelope")

	// Session errors
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrNoTenant       = errors.New("user has no tenant")
	ErrNotSignedIn    = errors.New("not signed in")

	// Form errors
	ErrInvalidInput = errors.New("invalid input")
)
