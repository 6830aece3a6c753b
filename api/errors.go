// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for scratchspace.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrPoolClosed        = errors.New("scratch pool is closed")
	ErrLeak              = errors.New("transient workspace leak")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("key not found")
	ErrStoreClosed       = errors.New("store is closed")
	ErrWorkspaceUnbound  = errors.New("workspace has no parent")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeNotFound
	ErrCodeLeak
	ErrCodeClosed
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeResourceExhausted:
		return "resource_exhausted"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeLeak:
		return "leak"
	case ErrCodeClosed:
		return "closed"
	default:
		return "internal"
	}
}

// sentinel maps codes onto the package-level errors for errors.Is.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeResourceExhausted:
		return ErrResourceExhausted
	case ErrCodeNotFound:
		return ErrNotFound
	case ErrCodeLeak:
		return ErrLeak
	case ErrCodeClosed:
		return ErrPoolClosed
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the sentinel matching the error code.
func (e *Error) Unwrap() error {
	return e.Code.sentinel()
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
