// Package serrors defines the semantic error kinds returned by the MWDB client
// and maps MWDB REST API responses onto them.
package serrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is a marker interface implemented by all semantic error kinds created
// with NewKind. Kinds may have a parent so that a specific failure (e.g. invalid
// credentials) also matches its broader category (unauthorized).
type Kind interface {
	error
	Parent() Kind
	isKind()
}

// kind is the pointer-identity sentinel behind every Kind.
type kind struct {
	name   string
	parent Kind
}

func (k *kind) Error() string { return k.name }
func (k *kind) Parent() Kind  { return k.parent }
func (k *kind) isKind()       {}

// Is reports whether target is this kind or one of its ancestors.
func (k *kind) Is(target error) bool {
	for cur := Kind(k); cur != nil; cur = cur.Parent() {
		if t, ok := target.(Kind); ok && cur == t {
			return true
		}
	}

	return false
}

// NewKind creates a new semantic error kind. An optional parent makes
// errors.Is match the parent category as well.
func NewKind(name string, parent ...Kind) Kind {
	k := &kind{name: name}
	if len(parent) > 0 {
		k.parent = parent[0]
	}

	return k
}

var (
	// ErrBadRequest is returned on HTTP 400, usually a malformed query, metakey or argument.
	ErrBadRequest = NewKind("BAD_REQUEST")
	// ErrUnauthorized indicates missing, invalid or expired credentials (HTTP 401).
	ErrUnauthorized = NewKind("UNAUTHORIZED")
	// ErrInvalidCredentials indicates a wrong password or a malformed/revoked API key.
	ErrInvalidCredentials = NewKind("INVALID_CREDENTIALS", ErrUnauthorized)
	// ErrMaintenance indicates the server is in maintenance mode.
	ErrMaintenance = NewKind("MAINTENANCE_UNDERWAY", ErrUnauthorized)
	// ErrUserPending indicates the account is waiting for acceptance.
	ErrUserPending = NewKind("USER_PENDING", ErrUnauthorized)
	// ErrUserDisabled indicates the account is banned.
	ErrUserDisabled = NewKind("USER_DISABLED", ErrUnauthorized)
	// ErrForbidden indicates the caller is authenticated but lacks permissions (HTTP 403).
	ErrForbidden = NewKind("FORBIDDEN")
	// ErrNotFound indicates the object does not exist or is not visible to the caller.
	ErrNotFound = NewKind("NOT_FOUND")
	// ErrEndpointNotFound indicates the server does not know the API endpoint,
	// typically because it runs an older MWDB Core version.
	ErrEndpointNotFound = NewKind("ENDPOINT_NOT_FOUND")
	// ErrConflict indicates the uploaded object already exists with a different type.
	ErrConflict = NewKind("CONFLICT")
	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited = NewKind("RATE_LIMITED")
	// ErrGateway indicates a bad gateway or gateway timeout, usually temporary.
	ErrGateway = NewKind("GATEWAY")
	// ErrInternal indicates any other server-side failure.
	ErrInternal = NewKind("INTERNAL")
	// ErrBadResponse indicates the server response could not be decoded.
	ErrBadResponse = NewKind("BAD_RESPONSE")
	// ErrVersionMismatch indicates the server is too old for the requested feature.
	ErrVersionMismatch = NewKind("VERSION_MISMATCH")
)

// Error is a semantic error carrying a kind, an optional HTTP status code, an
// optional wrapped cause and a message. errors.Is matches the kind (and its
// parents) as well as anything in the cause chain.
type Error struct {
	kind   Kind
	status int
	err    error
	msg    string
}

// With constructs a semantic error with the given kind and message.
func With(k Kind, msgFmt string, args ...any) *Error {
	return &Error{kind: k, msg: fmt.Sprintf(msgFmt, args...)}
}

// Wrap constructs a semantic error with the given kind wrapping err.
func Wrap(k Kind, err error, msgFmt string, args ...any) *Error {
	return &Error{kind: k, err: err, msg: fmt.Sprintf(msgFmt, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	case e.kind != nil:
		return e.kind.Error()
	default:
		return "unknown error"
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Is matches either the kind (including its parents) or the wrapped cause.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return e == nil && target == nil
	}
	if e.kind != nil && errors.Is(e.kind, target) {
		return true
	}

	return e.err != nil && errors.Is(e.err, target)
}

// As extracts either the kind or a type from the wrapped cause.
func (e *Error) As(target any) bool {
	if e == nil || target == nil {
		return false
	}
	if e.kind != nil && errors.As(e.kind, target) {
		return true
	}

	return e.err != nil && errors.As(e.err, target)
}

// Kind returns the semantic kind of the error.
func (e *Error) Kind() Kind { return e.kind }

// Status returns the HTTP status code that produced the error, or 0.
func (e *Error) Status() int { return e.status }

// Message returns the message attached to the error.
func (e *Error) Message() string { return e.msg }

// Cause returns the wrapped cause (may be nil).
func (e *Error) Cause() error { return e.err }

// KindOf returns the kind of the first *Error in err's chain, or nil.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}

	return nil
}

// ResponseMessage extracts a human-readable message from an MWDB error body.
// MWDB sends either {"message": "..."} or {"errors": {...}}; anything else
// falls back to the status text.
func ResponseMessage(status int, body []byte) string {
	var payload struct {
		Message *string         `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != nil {
			return *payload.Message
		}
		if len(payload.Errors) > 0 {
			return string(payload.Errors)
		}
	}

	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

// FromResponse maps a non-2xx MWDB response onto a semantic error.
func FromResponse(status int, body []byte) *Error {
	msg := ResponseMessage(status, body)
	e := &Error{status: status, msg: msg}

	switch status {
	case http.StatusBadRequest:
		e.kind = ErrBadRequest
	case http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case http.StatusForbidden:
		switch {
		case strings.Contains(msg, "Invalid login or password"):
			e.kind = ErrInvalidCredentials
		case strings.Contains(msg, "Maintenance underway"):
			e.kind = ErrMaintenance
		case strings.Contains(msg, "User registration is pending"):
			e.kind = ErrUserPending
		case strings.Contains(msg, "User account is disabled"):
			e.kind = ErrUserDisabled
		default:
			e.kind = ErrForbidden
		}
	case http.StatusNotFound:
		if strings.Contains(msg, "The requested URL was not found on the server") {
			e.kind = ErrEndpointNotFound
		} else {
			e.kind = ErrNotFound
		}
	case http.StatusConflict:
		e.kind = ErrConflict
	case http.StatusTooManyRequests:
		e.kind = ErrRateLimited
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		e.kind = ErrGateway
	default:
		e.kind = ErrInternal
	}

	return e
}
