package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLimit keeps unit tests fast.
var testLimit = RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000}

func TestClient_Do_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/users/a@b.com/messages", r.URL.Path)
		fmt.Fprint(w, `{"value":[{"id":"m1"},{"id":"m2"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimit, nil)

	var page Page
	err := client.Do(context.Background(), http.MethodGet, "/users/a@b.com/messages", "tok-1", nil, nil, &page)

	require.NoError(t, err)
	assert.Len(t, page.Value, 2)
}

func TestClient_Do_AbsoluteURLAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer server.Close()

	client := NewClient("https://unused.example.com", testLimit, nil)

	var page Page
	err := client.Do(context.Background(), http.MethodGet, server.URL+"/continuation", "tok", nil, nil, &page)

	assert.NoError(t, err)
}

func TestClient_Do_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "401 unauthorised", status: http.StatusUnauthorized, sentinel: ErrUnauthorised},
		{name: "403 forbidden", status: http.StatusForbidden, sentinel: ErrForbidden},
		{name: "404 not found", status: http.StatusNotFound, sentinel: ErrNotFound},
		{name: "410 delta expired", status: http.StatusGone, sentinel: ErrDeltaTokenExpired},
		{name: "400 bad request", status: http.StatusBadRequest, sentinel: ErrBadRequest},
		{name: "500 server error", status: http.StatusInternalServerError, sentinel: ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"error":{"code":"x","message":"boom"}}`)
			}))
			defer server.Close()

			client := NewClient(server.URL, testLimit, nil)

			err := client.Do(context.Background(), http.MethodGet, "/x", "tok", nil, nil, nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "boom", apiErr.Message)
		})
	}
}

func TestClient_Do_RetriesAfter429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimit, nil)

	start := time.Now()
	var page Page
	err := client.Do(context.Background(), http.MethodGet, "/x", "tok", nil, nil, &page)

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	// The Retry-After window must actually be waited out.
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestClient_GetAllPages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page2":
			fmt.Fprintf(w, `{"value":[{"id":"c"}],"@odata.deltaLink":"%s/delta"}`, server.URL)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimit, nil)

	first := &Page{
		Value:    []json.RawMessage{json.RawMessage(`{"id":"a"}`), json.RawMessage(`{"id":"b"}`)},
		NextLink: server.URL + "/page2",
	}
	items, err := client.GetAllPages(context.Background(), first, "tok")

	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, server.URL+"/delta", first.DeltaLink)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid seconds", value: "30", want: 30},
		{name: "empty defaults", value: "", want: 60},
		{name: "garbage defaults", value: "soon", want: 60},
		{name: "negative defaults", value: "-1", want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value))
		})
	}
}
