package serviceerr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openkcm/oauth-server/internal/serviceerr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name        string
		err         *serviceerr.Error
		expectedMsg string
	}{
		{
			name:        "Error with description",
			err:         &serviceerr.Error{Err: serviceerr.CodeNotFound, Description: "resource not found"},
			expectedMsg: "not_found: resource not found",
		},
		{
			name:        "Error without description",
			err:         &serviceerr.Error{Err: serviceerr.CodeInvalidRequest},
			expectedMsg: "invalid_request",
		},
		{
			name:        "Predefined error - ErrNotFound",
			err:         serviceerr.ErrNotFound,
			expectedMsg: "not_found: not found",
		},
		{
			name:        "Predefined error - ErrInvalidRequest",
			err:         serviceerr.ErrInvalidRequest,
			expectedMsg: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.err.Error())
		})
	}
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code               serviceerr.Code
		expectedHTTPStatus int
	}{
		{code: serviceerr.CodeInvalidRequest, expectedHTTPStatus: http.StatusBadRequest},
		{code: serviceerr.CodeInvalidClientOrBinding, expectedHTTPStatus: http.StatusBadRequest},
		{code: serviceerr.CodeInvalidGrant, expectedHTTPStatus: http.StatusBadRequest},
		{code: serviceerr.CodeUnsupportedResponseType, expectedHTTPStatus: http.StatusBadRequest},
		{code: serviceerr.CodeUnsupportedGrantType, expectedHTTPStatus: http.StatusBadRequest},
		{code: serviceerr.CodeUnauthorized, expectedHTTPStatus: http.StatusUnauthorized},
		{code: serviceerr.CodeInvalidCredentials, expectedHTTPStatus: http.StatusUnauthorized},
		{code: serviceerr.CodeTokenIssuanceFailed, expectedHTTPStatus: http.StatusUnauthorized},
		{code: serviceerr.CodeConflict, expectedHTTPStatus: http.StatusConflict},
		{code: serviceerr.CodeNotFound, expectedHTTPStatus: http.StatusNotFound},
		{code: serviceerr.CodeServerError, expectedHTTPStatus: http.StatusInternalServerError},
		{code: serviceerr.Code("something_else"), expectedHTTPStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &serviceerr.Error{Err: tt.code}
			assert.Equal(t, tt.expectedHTTPStatus, err.HTTPStatus())
		})
	}
}

func TestError_Is(t *testing.T) {
	described := serviceerr.New(serviceerr.CodeInvalidRequest, "email is required")
	wrapped := fmt.Errorf("registering user: %w", described)

	assert.ErrorIs(t, described, serviceerr.ErrInvalidRequest)
	assert.ErrorIs(t, wrapped, serviceerr.ErrInvalidRequest)
	assert.NotErrorIs(t, wrapped, serviceerr.ErrConflict)
	assert.NotErrorIs(t, errors.New("invalid_request"), serviceerr.ErrInvalidRequest)

	var svcErr *serviceerr.Error
	if assert.ErrorAs(t, wrapped, &svcErr) {
		assert.Equal(t, "email is required", svcErr.Description)
	}
}
