// Package serviceerr defines the error taxonomy of the authorization server
// and its mapping onto HTTP status codes.
package serviceerr

import "net/http"

type Code string

// RFC6749 style error codes.
const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeInvalidClientOrBinding  Code = "invalid_client_or_binding"
	CodeUnauthorized            Code = "unauthorized"
	CodeInvalidCredentials      Code = "invalid_credentials"
	CodeInvalidGrant            Code = "invalid_grant"
	CodeTokenIssuanceFailed     Code = "token_issuance_failed"
	CodeUnsupportedResponseType Code = "unsupported_response_type"
	CodeUnsupportedGrantType    Code = "unsupported_grant_type"
	CodeServerError             Code = "server_error"
)

// Internal error codes.
const (
	CodeConflict Code = "conflict"
	CodeNotFound Code = "not_found"
)

type Error struct {
	Err         Code
	Description string
}

var (
	ErrInvalidRequest          = &Error{Err: CodeInvalidRequest}
	ErrInvalidClientOrBinding  = &Error{Err: CodeInvalidClientOrBinding, Description: "client, redirect_uri or scope not accepted"}
	ErrUnauthorized            = &Error{Err: CodeUnauthorized, Description: "no valid session"}
	ErrInvalidCredentials      = &Error{Err: CodeInvalidCredentials, Description: "invalid email or password"}
	ErrInvalidGrant            = &Error{Err: CodeInvalidGrant, Description: "authorization code is invalid, expired or already used"}
	ErrTokenIssuanceFailed     = &Error{Err: CodeTokenIssuanceFailed, Description: "access token could not be issued"}
	ErrUnsupportedResponseType = &Error{Err: CodeUnsupportedResponseType, Description: "only response_type=code is supported"}
	ErrUnsupportedGrantType    = &Error{Err: CodeUnsupportedGrantType, Description: "only grant_type=authorization_code is supported"}
	ErrServerError             = &Error{Err: CodeServerError, Description: "internal server error"}

	ErrConflict = &Error{Err: CodeConflict, Description: "already exists"}
	ErrNotFound = &Error{Err: CodeNotFound, Description: "not found"}
)

// New returns an error with the given code and description.
func New(code Code, description string) *Error {
	return &Error{Err: code, Description: description}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is reports whether target carries the same code, so errors built with New
// match the predefined values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Err == e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest,
		CodeInvalidClientOrBinding,
		CodeInvalidGrant,
		CodeUnsupportedResponseType,
		CodeUnsupportedGrantType:
		return http.StatusBadRequest
	case CodeUnauthorized,
		CodeInvalidCredentials,
		CodeTokenIssuanceFailed:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
