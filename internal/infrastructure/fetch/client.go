package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const (
	defaultUserAgent = "ForumWatcher/1.0"
	maxBodyBytes     = 8 << 20
)

var errBodyTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)

// Options configure the HTTP fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
}

// Client downloads source pages over HTTP.
type Client struct {
	http      *http.Client
	userAgent string
}

var _ ports.Fetcher = (*Client)(nil)

// NewClient builds a fetcher. An invalid proxy URL is reported as an error.
func NewClient(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent: opts.UserAgent,
	}, nil
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(client *http.Client, userAgent string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{http: client, userAgent: userAgent}
}

// Fetch returns the response body. Any failure is a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: pageURL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &domain.FetchError{URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &domain.FetchError{URL: pageURL, Err: errBodyTooLarge}
	}
	return body, nil
}
