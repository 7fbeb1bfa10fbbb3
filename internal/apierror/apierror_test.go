/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rentbase/idverify/internal/apierror"
	"github.com/rentbase/idverify/kyc"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil), http.StatusNotFound},
		{"invalid input", apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil), http.StatusBadRequest},
		{"unauthorized", apierror.NewAPIError(apierror.ErrUnauthorized, "Bad key", nil), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("handler: %w", apierror.NewAPIError(apierror.ErrNotFound, "gone", nil)), http.StatusNotFound},
		{"validation kind", apierror.FromError(kyc.NewValidationError("verify", "missing dob", nil)), http.StatusBadRequest},
		{"configuration kind", apierror.FromError(kyc.NewConfigurationError("smile", "unknown provider", nil)), http.StatusUnprocessableEntity},
		{"network kind", apierror.FromError(kyc.NewNetworkError("dojah", "verify_nin", nil)), http.StatusBadGateway},
		{"timeout kind", apierror.FromError(kyc.NewTimeoutError("dojah", "verify_nin", nil)), http.StatusGatewayTimeout},
		{"unknown error", errors.New("Unknown error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestFromErrorKeepsAPIErrors(t *testing.T) {
	original := apierror.NewAPIError(apierror.ErrNotFound, "no result for reference", nil)
	assert.Equal(t, original, apierror.FromError(fmt.Errorf("wrapped: %w", original)))
}
