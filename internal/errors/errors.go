package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an evclip error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrBundleLimit    ErrorCode = "BUNDLE_LIMIT"    // 409
	ErrPageLimit      ErrorCode = "PAGE_LIMIT"      // 409
	ErrDuplicatePage  ErrorCode = "DUPLICATE_PAGE"  // 409 (decision point, not a failure)
	ErrUnreachable    ErrorCode = "UNREACHABLE"     // 502 (content script / tab connection)
	ErrTransport      ErrorCode = "TRANSPORT"       // 502 (upload / catalog network)
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing bundle or page.
func NewNotFound(identifier string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewBundleLimit creates a capacity error for the bundle cap. Capacity
// errors are rejected synchronously with no partial mutation.
func NewBundleLimit(max int) *ClipError {
	return &ClipError{
		Code:    ErrBundleLimit,
		Status:  409,
		Message: fmt.Sprintf("bundle limit reached (%d); delete a bundle first", max),
		Details: map[string]any{"max_bundles": max},
	}
}

// NewPageLimit creates a capacity error for a bundle's page cap.
func NewPageLimit(bundleName string, max int) *ClipError {
	return &ClipError{
		Code:    ErrPageLimit,
		Status:  409,
		Message: fmt.Sprintf("bundle %q is full (%d pages)", bundleName, max),
		Details: map[string]any{"bundle": bundleName, "max_pages": max},
	}
}

// NewDuplicatePage signals that a capture's effective URL already exists in
// the target bundle. This is a decision point for the operator (replace or
// skip), not a failure; no mutation has been applied.
func NewDuplicatePage(bundleName, url string, index int) *ClipError {
	return &ClipError{
		Code:    ErrDuplicatePage,
		Status:  409,
		Message: fmt.Sprintf("page already captured in bundle %q", bundleName),
		Details: map[string]any{"bundle": bundleName, "url": url, "index": index},
	}
}

// NewUnreachable creates a connection-class error for a tab or content
// script that cannot be reached. Carries a distinct hint from generic
// transport failures.
func NewUnreachable(msg string) *ClipError {
	return &ClipError{
		Code:    ErrUnreachable,
		Status:  502,
		Message: msg,
		Details: map[string]any{"hint": "refresh the page and try again"},
	}
}

// NewTransport creates an error for a failed network transfer. Transport
// errors are isolated to the affected operation and never corrupt bundle
// state.
func NewTransport(msg string) *ClipError {
	return &ClipError{
		Code:    ErrTransport,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
