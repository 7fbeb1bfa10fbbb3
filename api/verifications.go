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

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentbase/idverify"
	"github.com/rentbase/idverify/internal/apierror"
	"github.com/rentbase/idverify/model"
)

// CreateVerification verifies a claimed identity against a provider.
// Verdicts, FAILED ones included, are response bodies rather than HTTP errors.
//
// Responses:
// - 400 Bad Request: the body is not a JSON verification request.
// - 202 Accepted: the provider answered PENDING.
// - 200 OK: any other verdict.
func (a Api) CreateVerification(c *gin.Context) {
	var req model.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid verification request body", err.Error()))
		return
	}

	result := a.service.Verify(c.Request.Context(), req)
	c.JSON(statusFor(result), result)
}

// CheckVerificationStatus asks the provider about a pending reference right away.
//
// Responses:
// - 202 Accepted: the reference is still pending.
// - 200 OK: any other verdict.
func (a Api) CheckVerificationStatus(c *gin.Context) {
	result := a.service.CheckStatus(c.Request.Context(), c.Param("provider"), c.Param("reference"))
	c.JSON(statusFor(result), result)
}

// GetVerificationResult returns the last result stored for a reference
// without calling the provider.
//
// Responses:
// - 404 Not Found: nothing is stored for the reference.
// - 200 OK: the stored result.
func (a Api) GetVerificationResult(c *gin.Context) {
	result, err := a.service.LastResult(c.Request.Context(), c.Param("provider"), c.Param("reference"))
	if errors.Is(err, idverify.ErrResultNotFound) {
		respondWithError(c, apierror.NewAPIError(apierror.ErrNotFound, err.Error(), nil))
		return
	}
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusFor(result model.VerificationResult) int {
	if result.Status == model.StatusPending {
		return http.StatusAccepted
	}
	return http.StatusOK
}
