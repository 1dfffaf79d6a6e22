package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeAlreadyJoined      = "already_joined"
	ErrCodeNotJoined          = "not_joined"
	ErrCodeSenderMismatch     = "sender_mismatch"
	ErrCodeRecipientNotFound  = "recipient_not_found"
	ErrCodeMalformedEnvelope  = "malformed_envelope"
	ErrCodeUnsupportedVersion = "unsupported_version"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrAlreadyJoined     = errors.New("already joined")
	ErrNotJoined         = errors.New("not joined")
	ErrSenderMismatch    = errors.New("sender does not match connection")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownConnection = errors.New("connection is not attached")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so callers can use errors.Is.
func (e *CoreError) Unwrap() error {
	return e.err
}

func coreError(code string, err error) *CoreError {
	return &CoreError{Code: code, Message: err.Error(), err: err}
}
