// Package errors provides structured error handling for the wallet services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

// Kind groups codes into the handling taxonomy used at the API boundary.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthentication  Kind = "authentication"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindExpired         Kind = "expired"
	KindUpstreamFailure Kind = "upstream_failure"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

const (
	// CodeInternal represents an unexpected failure.
	CodeInternal Code = "internal"

	// Validation errors
	CodeInvalidArgument Code = "invalid_argument"
	CodeInvalidAmount   Code = "invalid_amount"
	CodeInvalidCurrency Code = "invalid_currency"

	// Authentication errors
	CodeUnauthenticated   Code = "unauthenticated"
	CodeChallengeExpired  Code = "challenge_expired"
	CodeInvalidToken      Code = "invalid_token"
	CodeInvalidSignature  Code = "invalid_signature"
	CodeCredentialInvalid Code = "credential_invalid"

	// Lookup errors
	CodeNotFound Code = "not_found"

	// State errors
	CodeConflict          Code = "conflict"
	CodeInvalidTransition Code = "invalid_transition"
	CodeCredentialExists  Code = "credential_exists"

	// Time-bound errors
	CodeExpired Code = "expired"

	// Upstream errors
	CodeUpstreamFailure Code = "upstream_failure"

	// Throttling
	CodeRateLimited Code = "rate_limited"
)

// Kind maps a code to its taxonomy group.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidArgument, CodeInvalidAmount, CodeInvalidCurrency:
		return KindValidation
	case CodeUnauthenticated, CodeChallengeExpired, CodeInvalidToken, CodeInvalidSignature, CodeCredentialInvalid:
		return KindAuthentication
	case CodeNotFound:
		return KindNotFound
	case CodeConflict, CodeInvalidTransition, CodeCredentialExists:
		return KindConflict
	case CodeExpired:
		return KindExpired
	case CodeUpstreamFailure:
		return KindUpstreamFailure
	case CodeRateLimited:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c.Kind() {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
