package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindCredentials   Kind = "credentials"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindTransport     Kind = "transport"
	KindServer        Kind = "server"
)

// Error is returned by every Backend method for a failed call.
type Error struct {
	Kind    Kind
	Status  int
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "backend error"
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the classification of err, or "" when err is not a backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) && be != nil {
		return be.Kind
	}
	return ""
}

// MessageOf returns the human-readable message of a backend error, falling
// back to fallback when the server sent none.
func MessageOf(err error, fallback string) string {
	var be *Error
	if errors.As(err, &be) && be != nil && strings.TrimSpace(be.Message) != "" {
		return be.Message
	}
	return fallback
}

func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

// classifyStatus maps an HTTP status to a Kind. Login rejections are reported
// as credential failures so they are not confused with an expired token.
func classifyStatus(status int, login bool) Kind {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case login && (status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusNotFound):
		return KindCredentials
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

var fallbackMessages = map[Kind]string{
	KindValidation:    "the request was rejected as invalid",
	KindAuthorization: "access forbidden, please log in again",
	KindCredentials:   "invalid email or password",
	KindConflict:      "an appointment is already booked for this date and time slot",
	KindNotFound:      "not found",
	KindTransport:     "could not reach the booking service",
	KindServer:        "the booking service failed to process the request",
}

// FallbackMessage is the message shown for kind when the server sent none.
func FallbackMessage(kind Kind) string {
	if msg, ok := fallbackMessages[kind]; ok {
		return msg
	}
	return "request failed"
}

func transportError(op string, err error) *Error {
	msg := FallbackMessage(KindTransport)
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	}
	return &Error{Kind: KindTransport, Op: op, Message: msg, Err: err}
}
