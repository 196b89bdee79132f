package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForumWatcher/internal/domain"
)

func TestFetchReturnsBodyAndUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	c, err := NewClient(Options{Timeout: time.Second, UserAgent: "watcher-test"})
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "<rss/>", string(body))
	assert.Equal(t, "watcher-test", gotUA)
}

func TestFetchNonOKIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClientWith(server.Client(), "").Fetch(context.Background(), server.URL)

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Equal(t, server.URL, fe.URL)
}

func TestFetchTransportFailureIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClientWith(&http.Client{Timeout: time.Second}, "").Fetch(context.Background(), url)

	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	_, err := NewClient(Options{ProxyURL: "://bad"})
	assert.Error(t, err)
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxBodyBytes+1))
	}))
	defer server.Close()

	body, err := NewClientWith(server.Client(), "").Fetch(context.Background(), server.URL)

	assert.Nil(t, body)
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, errBodyTooLarge)
}

func TestFetchAcceptsBodyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxBodyBytes))
	}))
	defer server.Close()

	body, err := NewClientWith(server.Client(), "").Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Len(t, body, maxBodyBytes)
}
