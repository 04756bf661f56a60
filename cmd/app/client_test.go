package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDefaultsAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	t.Setenv(sessionEnv, path)

	sess, err := loadSession()
	require.NoError(t, err)
	assert.Equal(t, "uds", sess.Transport)
	assert.Equal(t, defaultServer, sess.Server)
	assert.Equal(t, defaultSocket, sess.Socket)

	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	sess.Transport = "http"
	sess = sess.loggedIn("qa@example.com", "abc", 30*time.Minute, now)
	require.NoError(t, saveSession(sess))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := loadSession()
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	require.NoError(t, saveSession(got.loggedOut()))
	got, err = loadSession()
	require.NoError(t, err)
	assert.Equal(t, "http", got.Transport)
	assert.Empty(t, got.Token)
	assert.Empty(t, got.Email)
}

func TestSessionTokenRequiresFreshLogin(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	_, err := session{}.token(now)
	assert.ErrorIs(t, err, errNotLoggedIn)

	sess := session{}.loggedIn("qa@example.com", "abc", time.Hour, now)
	token, err := sess.token(now.Add(59 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = sess.token(now.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	forever := session{}.loggedIn("qa@example.com", "abc", 0, now)
	_, err = forever.token(now.AddDate(10, 0, 0))
	assert.NoError(t, err)
}

func TestLoggedOutSessionMakesNoRequest(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits++ }))
	defer srv.Close()

	err := doDashboardStats(context.Background(), session{Transport: "http", Server: srv.URL}, nil)
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Zero(t, hits)
}

func TestAPIClientSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"no access to project","status_code":403}`))
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL, "tok").request(context.Background(), http.MethodGet, "/api/projects/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "api error (403): no access to project", err.Error())

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
