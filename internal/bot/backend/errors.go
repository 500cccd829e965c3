package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for the status codes the dialogue and monitor layers
// branch on. Everything else surfaces as *APIError.
var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
)

// APIError carries a non-2xx response the caller did not special-case.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend: http %d", e.Status)
	}
	return fmt.Sprintf("backend: http %d: %s", e.Status, e.Detail)
}

// ErrorCode lets the router middleware tag log lines with a stable code.
func (e *APIError) ErrorCode() string {
	return fmt.Sprintf("backend_http_%d", e.Status)
}
