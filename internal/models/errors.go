package models

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it to a status code.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindTimeout           Kind = "timeout"
	KindUnavailable       Kind = "unavailable"
	KindMalformedResponse Kind = "malformed_response"
	KindNoSpeech          Kind = "no_speech"
	KindParseFailed       Kind = "parse_failed"
	KindPersistence       Kind = "persistence"
)

// Error codes that carry more detail than the kind alone.
const (
	CodeInvalidInput     = "invalid_input"
	CodeInvalidSet       = "invalid_set"
	CodeDuplicateSet     = "duplicate_set_number"
	CodeUnsupportedMedia = "unsupported_media_type"
	CodeTooLarge         = "payload_too_large"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeNotConfigured    = "not_configured"
	CodeRemoteError      = "remote_error"
)

// Error is the typed failure shared by every component.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Field     string
	SetNumber int
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.SetNumber > 0 {
		msg = fmt.Sprintf("set %d: %s", e.SetNumber, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or
// KindPersistence for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidInput, Field: field, Message: message}
}

// NewSetError reports an invalid field on a specific set.
func NewSetError(setNumber int, field, message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidSet, Field: field, SetNumber: setNumber, Message: message}
}

func NewNotFoundError(what string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: what + " not found"}
}

func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: message}
}

func NewTimeoutError(service string, err error) *Error {
	return &Error{Kind: KindTimeout, Code: "timeout", Message: service + " timed out", Err: err}
}

func NewUnavailableError(code, message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Message: message, Err: err}
}

func NewMalformedResponseError(message string) *Error {
	return &Error{Kind: KindMalformedResponse, Code: "malformed_response", Message: message}
}

func NewNoSpeechError() *Error {
	return &Error{Kind: KindNoSpeech, Code: "no_speech", Message: "no speech detected"}
}

func NewParseFailedError(message string, err error) *Error {
	return &Error{Kind: KindParseFailed, Code: "parse_failed", Message: message, Err: err}
}

func NewPersistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: "persistence", Message: op, Err: err}
}
