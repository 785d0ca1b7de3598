package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "execcore", r.Header.Get("X-Caller"))
		_, _ = w.Write([]byte(`{"policy_id":"hold"}`))
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithHeader("X-Caller", "execcore"))
	var out struct {
		PolicyID string `json:"policy_id"`
	}
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "hold", out.PolicyID)
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]int{"a": 1}, nil))
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient().GetJSON(context.Background(), srv.URL, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "slow down", se.Body)
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, IsTemporary(&StatusError{Code: 503}))
	assert.True(t, IsTemporary(&StatusError{Code: 429}))
	assert.False(t, IsTemporary(&StatusError{Code: 404}))
	assert.True(t, IsTemporary(errors.New("connection refused")))
	assert.False(t, IsTemporary(context.Canceled))
}
