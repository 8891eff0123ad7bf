// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesttask/client/internal/api"
	"github.com/nesttask/client/internal/platform/apperr"
)

func newRouterFixture(t *testing.T, deps api.HealthDependencies) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	liveness, readiness := api.NewHealthHandlers(deps, logger)
	return api.NewRouter(api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Status: func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusOK)
		},
	})
}

/*
TestRouter_Liveness verifies the /health happy path and the success
envelope shape.
*/
func TestRouter_Liveness(t *testing.T) {
	router := newRouterFixture(t, api.HealthDependencies{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, "ok", envelope.Data["status"])
}

/*
TestRouter_ReadinessDegraded verifies that a failing dependency check turns
/ready into 503 with the failing check named.
*/
func TestRouter_ReadinessDegraded(t *testing.T) {
	router := newRouterFixture(t, api.HealthDependencies{
		CheckDatabase: func() error { return errors.New("connection refused") },
		CheckCache:    func() error { return nil },
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"degraded"`)
	assert.Contains(t, recorder.Body.String(), "postgres")
}

/*
TestRouter_UnknownRouteErrorEnvelope verifies that misses answer in the
same JSON error envelope as real routes, not in the stock text form.
*/
func TestRouter_UnknownRouteErrorEnvelope(t *testing.T) {
	router := newRouterFixture(t, api.HealthDependencies{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, apperr.CodeNotFound, envelope.Code)
	assert.Equal(t, "Endpoint not found", envelope.Error)
}

/*
TestRouter_MethodNotAllowedErrorEnvelope verifies the envelope on a wrong
HTTP method against a known route.
*/
func TestRouter_MethodNotAllowedErrorEnvelope(t *testing.T) {
	router := newRouterFixture(t, api.HealthDependencies{})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/health", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var envelope struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.Equal(t, apperr.CodeValidation, envelope.Code)
}
