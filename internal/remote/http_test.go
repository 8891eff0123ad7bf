// Copyright (c) 2026 NestTask. All rights reserved.
// Author: dev@nesttask.app

package remote_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nesttask/client/internal/platform/apperr"
	"github.com/nesttask/client/internal/remote"
	"github.com/nesttask/client/pkg/pointer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newClient(t *testing.T, handler http.HandlerFunc) *remote.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return remote.NewClient(server.URL, "anon-key", discardLogger())
}

/*
TestClient_SignInWithPassword verifies the password grant round trip: the
endpoint, the anonymous key header, and the token-pair mapping.
*/
func TestClient_SignInWithPassword(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/auth/v1/token", request.URL.Path)
		assert.Equal(t, "password", request.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon-key", request.Header.Get("apikey"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(request.Body).Decode(&payload))
		assert.Equal(t, "member@nesttask.com", payload["email"])

		_ = json.NewEncoder(writer).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]any{"id": "user-1", "email": "member@nesttask.com"},
		})
	})

	session, err := client.SignInWithPassword(context.Background(), "member@nesttask.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.Equal(t, "user-1", session.User.ID)
	assert.False(t, session.ExpiresAt.IsZero())
}

/*
TestClient_SignInRejected verifies the 400 → AUTH_ERROR mapping with the
provider's error description surfaced.
*/
func TestClient_SignInRejected(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(writer).Encode(map[string]string{
			"error_description": "Invalid login credentials",
		})
	})

	_, err := client.SignInWithPassword(context.Background(), "member@nesttask.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthError))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

/*
TestClient_GetUserUnauthorized verifies the 401 → UNAUTHORIZED mapping the
session manager's refresh path depends on.
*/
func TestClient_GetUserUnauthorized(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.GetUser(context.Background(), "stale-token")
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))
}

/*
TestClient_BearerToken verifies that a pushed access token rides along as
the Authorization header on data requests.
*/
func TestClient_BearerToken(t *testing.T) {
	var seenAuth string
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		seenAuth = request.Header.Get("Authorization")
		_ = json.NewEncoder(writer).Encode([]remote.TaskRecord{})
	})

	client.SetAccessToken("access-1")
	_, err := client.ListTasks(context.Background(), "user-1", "section-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", seenAuth)
}

/*
TestClient_ListTasks verifies the combined owner-or-section filter and the
newest-first ordering.
*/
func TestClient_ListTasks(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/rest/v1/tasks", request.URL.Path)
		assert.Equal(t, "(user_id.eq.user-1,section_id.eq.section-1)", request.URL.Query().Get("or"))
		assert.Equal(t, "created_at.desc", request.URL.Query().Get("order"))
		_ = json.NewEncoder(writer).Encode([]remote.TaskRecord{
			{ID: "task-1", OwnerID: "user-1", Name: "Newest"},
		})
	})

	tasks, err := client.ListTasks(context.Background(), "user-1", "section-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Newest", tasks[0].Name)
}

/*
TestClient_ListTasksWithoutSection verifies the filter degrades to
owner-only when the user has no section.
*/
func TestClient_ListTasksWithoutSection(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "(user_id.eq.user-1)", request.URL.Query().Get("or"))
		_ = json.NewEncoder(writer).Encode([]remote.TaskRecord{})
	})

	_, err := client.ListTasks(context.Background(), "user-1", "")
	require.NoError(t, err)
}

/*
TestClient_GetProfileNotFound verifies that an empty row set maps to
NOT_FOUND, which drives the profile synthesis path upstream.
*/
func TestClient_GetProfileNotFound(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/rest/v1/users", request.URL.Path)
		assert.Equal(t, "eq.user-1", request.URL.Query().Get("id"))
		_ = json.NewEncoder(writer).Encode([]remote.ProfileRecord{})
	})

	_, err := client.GetProfile(context.Background(), "user-1")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

/*
TestClient_InsertTask verifies the representation-returning insert.
*/
func TestClient_InsertTask(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "return=representation", request.Header.Get("Prefer"))

		var record remote.TaskRecord
		require.NoError(t, json.NewDecoder(request.Body).Decode(&record))
		_ = json.NewEncoder(writer).Encode([]remote.TaskRecord{record})
	})

	stored, err := client.InsertTask(context.Background(), &remote.TaskRecord{ID: "task-1", Name: "New"})
	require.NoError(t, err)
	assert.Equal(t, "task-1", stored.ID)
}

/*
TestClient_UpdateTaskSparse verifies that only the changed fields travel in
the PATCH body.
*/
func TestClient_UpdateTaskSparse(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPatch, request.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "completed"}, body)

		_ = json.NewEncoder(writer).Encode([]remote.TaskRecord{{ID: "task-1", Status: "completed"}})
	})

	stored, err := client.UpdateTask(context.Background(), "task-1", remote.TaskChanges{
		Status: pointer.To("completed"),
	})
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
}

/*
TestClient_SignOutLocalScope verifies the local-only revocation call.
*/
func TestClient_SignOutLocalScope(t *testing.T) {
	var seen string
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		seen = request.URL.Path + "?" + request.URL.RawQuery
		writer.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SignOut(context.Background(), "access-1"))
	assert.Equal(t, "/auth/v1/logout?scope=local", seen)
}

/*
TestClient_NetworkFailure verifies that a transport-level failure maps to
AUTH_ERROR rather than leaking a bare url.Error.
*/
func TestClient_NetworkFailure(t *testing.T) {
	client := remote.NewClient("http://127.0.0.1:1", "anon-key", discardLogger())

	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthError))
}
