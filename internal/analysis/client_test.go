package analysis

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

func newTestAnalyzer(url string) *HTTPAnalyzer {
	a := NewHTTPAnalyzer(url, time.Second)
	a.backoff = time.Millisecond
	return a
}

func TestHTTPAnalyzerPostsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Engineer", req["jobTitle"])
		assert.NotContains(t, req, "resumeContent")

		_, _ = w.Write([]byte(`{"success":true,"data":{"matchScore":64,"keyRequirements":["Go"]}}`))
	}))
	defer srv.Close()

	resp, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), Request{JobTitle: "Engineer"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	assert.Equal(t, 64.0, resp.Data.MatchScore)
	assert.Equal(t, []string{"Go"}, resp.Data.KeyRequirements)
}

func TestHTTPAnalyzerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("```json\n{\"success\":false,\"error\":\"no model\"}\n```"))
	}))
	defer srv.Close()

	resp, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "no model", resp.Error)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPAnalyzerGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPAnalyzerDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	_, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSON("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, cleanJSON(`  {"a":1} `))
}
