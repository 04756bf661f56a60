package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultServer = "http://127.0.0.1:8080"
	defaultSocket = "./data/intellitest.sock"

	// sessionEnv overrides where the session file lives.
	sessionEnv = "INTELLITEST_SESSION"
)

var errNotLoggedIn = errors.New("not logged in: run `intellitest auth login` first")

// session is what `auth login` leaves behind for the other commands: the
// transport to use and the bearer token with its expiry.
type session struct {
	Transport string    `json:"transport"`
	Server    string    `json:"server"`
	Socket    string    `json:"socket"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (s session) withDefaults() session {
	if s.Transport == "" {
		s.Transport = "uds"
	}
	if s.Server == "" {
		s.Server = defaultServer
	}
	if s.Socket == "" {
		s.Socket = defaultSocket
	}
	return s
}

// token returns the stored access token, refusing a missing or expired one
// before any request is made.
func (s session) token(now time.Time) (string, error) {
	if s.Token == "" {
		return "", errNotLoggedIn
	}
	if !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt) {
		return "", fmt.Errorf("session for %s expired at %s: run `intellitest auth login` again",
			s.Email, s.ExpiresAt.Local().Format(time.RFC3339))
	}
	return s.Token, nil
}

// loggedIn records a successful login.
func (s session) loggedIn(email, token string, ttl time.Duration, now time.Time) session {
	s.Email, s.Token = email, token
	s.ExpiresAt = time.Time{}
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl).UTC()
	}
	return s
}

func (s session) loggedOut() session {
	s.Email, s.Token, s.ExpiresAt = "", "", time.Time{}
	return s
}

func sessionPath() (string, error) {
	if p := os.Getenv(sessionEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".intellitest", "session.json"), nil
}

func loadSession() (session, error) {
	path, err := sessionPath()
	if err != nil {
		return session{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return session{}.withDefaults(), nil
	}
	if err != nil {
		return session{}, err
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return session{}, fmt.Errorf("read session %s: %w", path, err)
	}
	return s.withDefaults(), nil
}

// saveSession replaces the session file atomically; it holds a token, so
// only the owner may read it.
func saveSession(s session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// apiError is a non-2xx answer from the HTTP API.
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Detail)
}

type apiClient struct {
	httpClient *http.Client
	server     string
	token      string
}

func newAPIClient(server, token string) *apiClient {
	return &apiClient{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		server:     strings.TrimRight(server, "/"),
		token:      token,
	}
}

func (c *apiClient) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", c.server, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &apiError{Status: resp.StatusCode}
		var shaped struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(payload, &shaped) == nil && shaped.Detail != "" {
			apiErr.Detail = shaped.Detail
		} else {
			apiErr.Detail = strings.TrimSpace(string(payload))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
