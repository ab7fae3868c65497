// Package errors defines the typed error carried from services to the HTTP
// layer. Each Code maps to a status, a public message and whether details
// may be shown to clients.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Redemption and ledger outcomes.
	CodeAlreadyRedeemed     Code = "ALREADY_REDEEMED"
	CodeExpired             Code = "EXPIRED"
	CodeCampaignInactive    Code = "CAMPAIGN_INACTIVE"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	hideDetails = false
	showDetails = true
)

func meta(status int, message string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: message, DetailsAllowed: details}
}

func retryable(m Metadata) Metadata {
	m.Retryable = true
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", showDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", hideDetails),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", hideDetails),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", hideDetails),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", hideDetails),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", showDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", showDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", hideDetails),
	CodeInternal:      retryable(meta(http.StatusInternalServerError, "internal server error", hideDetails)),
	CodeDependency:    retryable(meta(http.StatusServiceUnavailable, "dependency unavailable", showDetails)),

	CodeAlreadyRedeemed:     meta(http.StatusConflict, "code already redeemed", showDetails),
	CodeExpired:             meta(http.StatusGone, "code expired", showDetails),
	CodeCampaignInactive:    meta(http.StatusUnprocessableEntity, "campaign is not active", showDetails),
	CodeInsufficientBalance: meta(http.StatusUnprocessableEntity, "insufficient points balance", showDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code returns CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether the outermost typed error in err's chain has code.
func Is(err error, code Code) bool {
	if typed := As(err); typed != nil {
		return typed.code == code
	}
	return false
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
