package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindNoImage              Kind = "no_image"
	KindTransportUnreachable Kind = "transport_unreachable"
	KindTimeout              Kind = "timeout"
	KindInvalidResponse      Kind = "invalid_response"
	KindSuperseded           Kind = "superseded"
	KindValidation           Kind = "validation"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

var defaultMessages = map[Kind]string{
	KindNoImage:              "No image selected.",
	KindTransportUnreachable: "Transcription service is unreachable. Make sure it is running and try again.",
	KindTimeout:              "Transcription service did not answer in time. Please try again.",
	KindInvalidResponse:      "Transcription service returned an unexpected response.",
	KindSuperseded:           "Result discarded because a newer submission exists.",
	KindValidation:           "Invalid input.",
}

// Message is the user-facing text used when an error of this kind carries
// none of its own.
func (k Kind) Message() string {
	if msg, ok := defaultMessages[k]; ok {
		return msg
	}
	return "Request failed."
}

// Retryable reports whether resubmitting the same image may succeed.
// An InvalidResponse usually means the image itself was rejected.
func (k Kind) Retryable() bool {
	return k == KindTransportUnreachable || k == KindTimeout
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = kind.Message()
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

func NoImage(err error) error {
	return New(KindNoImage, "", err)
}

func TransportUnreachable(err error) error {
	return New(KindTransportUnreachable, "", err)
}

func Timeout(err error) error {
	return New(KindTimeout, "", err)
}

func InvalidResponse(err error) error {
	return New(KindInvalidResponse, "", err)
}

func Superseded(err error) error {
	return New(KindSuperseded, "", err)
}

func Validation(err error) error {
	return New(KindValidation, "", err)
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

// IsSubmissionFailure reports whether err is one of the kinds that end a
// submission in the Failed state. Anything else that escapes the outbound
// call is folded into TransportUnreachable by the caller.
func IsSubmissionFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransportUnreachable || e.Kind == KindTimeout || e.Kind == KindInvalidResponse
}

// Retryable reports whether err is a failure worth resubmitting.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind.Retryable()
}

func IsSuperseded(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindSuperseded
}
