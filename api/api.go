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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/rentbase/idverify"
	"github.com/rentbase/idverify/api/middleware"
	"github.com/rentbase/idverify/config"
	"github.com/rentbase/idverify/internal/apierror"
)

type Api struct {
	service  *idverify.IDVerify
	router   *gin.Engine
	gatherer prometheus.Gatherer
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/providers", a.ListProviders)

	router.POST("/verifications", a.CreateVerification)
	router.GET("/verifications/:provider/:reference", a.CheckVerificationStatus)
	router.GET("/verifications/:provider/:reference/result", a.GetVerificationResult)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	return a.router
}

// NewAPI builds the gin engine. gatherer serves /metrics; nil uses the
// default prometheus registry.
func NewAPI(service *idverify.IDVerify, gatherer prometheus.Gatherer) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(conf.ProjectName))
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apierror.NewAPIError(apierror.ErrNotFound, "route not found", nil))
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{service: service, router: r, gatherer: gatherer}
}

// ListProviders returns the registered provider names and the default one.
func (a Api) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers":        a.service.Providers(),
		"default_provider": a.service.DefaultProvider(),
	})
}

func respondWithError(c *gin.Context, err error) {
	apiErr := apierror.FromError(err)
	c.JSON(apierror.MapErrorToHTTPStatus(apiErr), apiErr)
}
