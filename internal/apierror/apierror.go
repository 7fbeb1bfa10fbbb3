package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound        ErrorCode = "NOT_FOUND"
	ErrInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrUnprocessable   ErrorCode = "UNPROCESSABLE"
	ErrUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrInternalServer  ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.WithField("code", code).Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FromError converts an engine error into an APIError by its error kind.
func FromError(err error) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch kyc.KindOf(err) {
	case model.ErrorValidation:
		return NewAPIError(ErrInvalidInput, err.Error(), nil)
	case model.ErrorConfiguration:
		return NewAPIError(ErrUnprocessable, err.Error(), nil)
	case model.ErrorTimeout:
		return NewAPIError(ErrUpstreamTimeout, "identity provider did not respond in time", err.Error())
	case model.ErrorNetwork, model.ErrorProvider:
		return NewAPIError(ErrUpstream, "identity provider request failed", err.Error())
	default:
		return NewAPIError(ErrInternalServer, "internal server error", err.Error())
	}
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrUnprocessable:
		return http.StatusUnprocessableEntity
	case ErrUpstream:
		return http.StatusBadGateway
	case ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
