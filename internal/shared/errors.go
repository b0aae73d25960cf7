package shared

import "errors"

// ErrInvalidCredentials is returned when the upstream auth service rejects a login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CSRF failures. Both map to 403.
var (
	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
