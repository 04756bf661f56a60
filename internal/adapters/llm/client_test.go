package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 2, MaxBackoff: 5 * time.Millisecond}
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	}
}

func apiError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "type": "error"}})
}

func TestGenerateSendsSystemAndUserMessages(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`["a"]`))
	}))
	defer srv.Close()

	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("gpt-test"), WithRetryConfig(fastRetry()))
	text, err := c.Generate(context.Background(), "be terse", "list ids")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, text)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "list ids", got.Messages[1].Content)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			apiError(w, http.StatusServiceUnavailable, "overloaded")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("ok"))
	}))
	defer srv.Close()

	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithRetryConfig(fastRetry()))
	text, err := c.Generate(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateStopsOnFatalFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusUnauthorized, "bad key")
	}))
	defer srv.Close()

	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithRetryConfig(fastRetry()))
	_, err := c.Generate(context.Background(), "s", "p")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusTooManyRequests, "slow down")
	}))
	defer srv.Close()

	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithRetryConfig(fastRetry()))
	_, err := c.Generate(context.Background(), "s", "p")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	assert.Nil(t, New(""))
	assert.Nil(t, New("   "))
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BackoffBase: time.Second, BackoffMultiplier: 10, MaxBackoff: 2 * time.Second}
	for attempt := 1; attempt <= 4; attempt++ {
		assert.LessOrEqual(t, cfg.backoff(attempt), 2*time.Second+2*time.Second/4)
	}
}
