package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindUnauthorized    ErrorKind = "unauthorized"
	KindBadRequest      ErrorKind = "bad_request"
	KindTooManyRequests ErrorKind = "too_many_requests"
	KindUpstream        ErrorKind = "upstream_error"
	KindConfiguration   ErrorKind = "configuration_error"
)

// AppError is the unified pipeline error.
type AppError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ClientMessage is the message surfaced to callers.
func (e *AppError) ClientMessage() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// NewAppError creates a new AppError.
func NewAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// ErrUnauthorized access code mismatch
func ErrUnauthorized() *AppError {
	return NewAppError(KindUnauthorized, "Invalid access code", nil)
}

// ErrBadRequest invalid input
func ErrBadRequest(message string) *AppError {
	return NewAppError(KindBadRequest, message, nil)
}

// ErrTooManyRequests quota exhausted
func ErrTooManyRequests(message string) *AppError {
	return NewAppError(KindTooManyRequests, message, nil)
}

// ErrUpstream generation backend failure
func ErrUpstream(message string, cause error) *AppError {
	return NewAppError(KindUpstream, message, cause)
}

// ErrConfiguration missing credentials or broken setup
func ErrConfiguration(message string) *AppError {
	return NewAppError(KindConfiguration, message, nil)
}

// KindOf returns the kind of err, or "" when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// Client-facing messages for validation failures
const (
	MsgNoPrompt          = "No prompt provided"
	MsgPromptTooLong     = "Prompt is too long (max %d characters)"
	MsgInvalidModel      = "Invalid model selected or model not configured"
	MsgNoImageData       = "No image data returned from API"
	MsgGenerationFailed  = "Image generation failed"
	MsgAPIKeyMissing     = "API Key not configured"
	MsgEmptyRawPrompt    = "Prompt is empty after removing the raw mode marker"
	MsgQuotaExhausted    = "Daily quota for %s exhausted (%d/%d used), try another model or come back tomorrow"
	MsgQuotaCheckFailure = "Quota service unavailable"
)
