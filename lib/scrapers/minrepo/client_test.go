package minrepo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestFetchSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2564229/", r.URL.Path)
		require.Equal(t, "2026-09-01", r.URL.Query().Get("date"))
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))

	body, err := client.Fetch(context.Background(), 2564229, "2026-09-01")
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, body, "ok")
}

func TestFetchClassification(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		expected FetchErrorKind
	}{
		{"forbidden", 403, "", FetchBlocked},
		{"rate limited", 429, "", FetchBlocked},
		{"challenge body", 200, `<div class="cf-challenge">checking your browser</div>`, FetchBlocked},
		{"japanese block page", 200, "アクセスが制限されています", FetchBlocked},
		{"not found", 404, "not found", FetchHTTPClientError},
		{"server error", 500, "oops", FetchHTTPServerError},
		{"bad gateway", 502, "", FetchHTTPServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))

			_, err := client.Fetch(context.Background(), 1, "2026-09-01")
			require.Error(t, err)

			var ferr *FetchError
			require.True(t, errors.As(err, &ferr))
			require.Equal(t, tc.expected, ferr.Kind)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	client.Http.SetTimeout(50 * time.Millisecond)

	_, err := client.Fetch(context.Background(), 1, "2026-09-01")
	require.Error(t, err)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	require.Equal(t, FetchTimeout, ferr.Kind)
}

func TestIsBlocked(t *testing.T) {
	require.True(t, IsBlocked(&FetchError{Kind: FetchBlocked}))
	require.False(t, IsBlocked(&FetchError{Kind: FetchHTTPServerError}))
	require.False(t, IsBlocked(errors.New("something else")))

	wrapped := fmt.Errorf("fetch failed: %w", &FetchError{Kind: FetchBlocked})
	require.True(t, IsBlocked(wrapped))
}

// proxyServer is a bare forward proxy for plain http: the client sends
// the absolute target URI, the proxy answers with its own marker body.
func proxyServer(t *testing.T, marker string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "pages.invalid", r.Host)
		fmt.Fprint(w, marker)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRotateEgress(t *testing.T) {
	first := proxyServer(t, "via-first")
	second := proxyServer(t, "via-second")

	// the base host does not resolve, a response can only have come
	// through the configured proxy
	client, err := NewClient(ClientOptions{
		BaseUrl: "http://pages.invalid",
		Timeout: 5 * time.Second,
		Proxies: []string{first.URL, second.URL},
	})
	if err != nil {
		t.Fatal(err)
	}

	body, err := client.Fetch(context.Background(), 1, "2026-09-01")
	require.NoError(t, err)
	require.Equal(t, "via-first", body)

	client.RotateEgress()
	body, err = client.Fetch(context.Background(), 1, "2026-09-01")
	require.NoError(t, err)
	require.Equal(t, "via-second", body)

	// the pool wraps around
	client.RotateEgress()
	body, err = client.Fetch(context.Background(), 1, "2026-09-01")
	require.NoError(t, err)
	require.Equal(t, "via-first", body)
}

func TestPageUrl(t *testing.T) {
	client, err := NewClient(ClientOptions{})
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t,
		"https://min-repo.com/2564229/?date=2026-09-01",
		client.PageUrl(2564229, "2026-09-01"),
	)
}
