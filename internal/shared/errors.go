package shared

import (
	"errors"

	"github.com/compasshq/compass/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found. It is the transport sentinel
	// itself so a repository miss and an invisible record produce the same
	// response.
	ErrNotFound = httpx.ErrNotFound
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = httpx.ErrDuplicate
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when the CSRF token is missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
