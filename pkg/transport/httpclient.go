package transport

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/richard-senior/podds/internal/logger"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRate    = 1.0 // requests per second
	defaultBurst   = 1
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s returned error status %d", e.URL, e.StatusCode)
}

// Client is a rate limited HTTP client that decodes compressed bodies.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCABundle adds the PEM certificates in path to the system roots, for networks
// behind an intercepting proxy. A missing bundle is logged and ignored.
func WithCABundle(path string) ClientOption {
	return func(c *Client) {
		rootCAs, err := x509.SystemCertPool()
		if err != nil {
			logger.Warn("Failed to get system cert pool", err)
			rootCAs = x509.NewCertPool()
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Proceeding without CA bundle", path, err)
			return
		}
		if ok := rootCAs.AppendCertsFromPEM(pem); !ok {
			logger.Warn("Failed to append CA bundle", path)
			return
		}
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: rootCAs},
			Proxy:           http.ProxyFromEnvironment,
		}
	}
}

// NewClient creates a client with a 30 second timeout and one request per second.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				IdleConnTimeout: 90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url and returns the decoded body. It waits for the rate limiter first.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add headers to make the request look more like a browser
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,text/csv,application/xhtml+xml,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return data, nil
}

// decodeBody wraps the response body according to its Content-Encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch enc := resp.Header.Get("Content-Encoding"); enc {
	case "gzip":
		r, err := NewGzipReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return r, nil
	case "deflate":
		return NewDeflateReader(resp.Body)
	case "br":
		return NewBrotliReader(resp.Body)
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	default:
		logger.Warn("Unknown content encoding:", enc)
		return io.NopCloser(resp.Body), nil
	}
}

// NewGzipReader creates a gzip reader from the provided io.ReadCloser
func NewGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// NewDeflateReader creates a deflate reader from the provided io.ReadCloser
func NewDeflateReader(r io.ReadCloser) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

// NewBrotliReader creates a brotli reader from the provided io.ReadCloser
func NewBrotliReader(r io.ReadCloser) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}
