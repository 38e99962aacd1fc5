// Package docstore provides the HTTP client for the catalog document store,
// with retry, parallel page fetching and optional OAuth2 credentials.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Client reads collections and documents from the document store.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pages      *pagination.BatchFetcher
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the document store, e.g. "https://docs.example.com"
	BaseURL string

	// User-Agent header (required)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// PageSize requested per listing page (1..1000)
	PageSize int

	// MaxConcurrency bounds parallel page requests
	MaxConcurrency int

	// Retry policy for server, rate limit and network failures
	Retry RetryConfig

	// TokenSource authenticates requests when set
	TokenSource oauth2.TokenSource

	// Limiter gates requests on the store's reported quota when set
	Limiter Limiter
}

// Limiter gates requests on the quota reported by the document store.
// *ratelimit.Tracker implements it.
type Limiter interface {
	// Allow blocks or rejects a request before it is sent.
	Allow(ctx context.Context) error
	// Observe records the quota headers of a response.
	Observe(ctx context.Context, header http.Header) error
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      userAgent,
		Timeout:        30 * time.Second,
		PageSize:       100,
		MaxConcurrency: 4,
		Retry:          DefaultRetryConfig(),
	}
}

// New creates a new document store client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.PageSize < 1 || cfg.PageSize > 1000 {
		return nil, fmt.Errorf("page_size must be between 1 and 1000 (got %d)", cfg.PageSize)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenSource != nil {
		httpClient = oauth2.NewClient(context.Background(), cfg.TokenSource)
		httpClient.Timeout = cfg.Timeout
	}

	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		config:     cfg,
		logger:     log.With().Str("component", "docstore").Logger(),
	}
	c.pages = pagination.NewBatchFetcher(c, pagination.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		Timeout:        cfg.Timeout,
	})

	return c, nil
}

// ListDocuments returns every document of a collection, in page order.
// A failure of any page fails the whole listing.
func (c *Client) ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error) {
	pages, err := c.pages.FetchAllPages(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	var docs []json.RawMessage
	for i, page := range pages {
		var batch []json.RawMessage
		if err := json.Unmarshal(page, &batch); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", collection, i+1, err)
		}
		docs = append(docs, batch...)
	}

	c.logger.Debug().
		Str("collection", collection).
		Int("pages", len(pages)).
		Int("documents", len(docs)).
		Msg("Listed documents")

	return docs, nil
}

// GetDocument returns a single document. A missing document yields an error
// matching ErrNotFound.
func (c *Client) GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/collections/%s/documents/%s", url.PathEscape(collection), url.PathEscape(id))

	body, _, err := c.get(ctx, collection, path, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("get %s/%s: invalid json body", collection, id)
	}
	return json.RawMessage(body), nil
}

// FetchPage fetches one listing page and the total page count from X-Total-Pages.
func (c *Client) FetchPage(ctx context.Context, collection string, pageNum int) ([]byte, int, error) {
	path := fmt.Sprintf("/v1/collections/%s/documents", url.PathEscape(collection))
	query := url.Values{}
	query.Set("page", strconv.Itoa(pageNum))
	query.Set("page_size", strconv.Itoa(c.config.PageSize))

	body, header, err := c.get(ctx, collection, path, query)
	if err != nil {
		return nil, 0, err
	}

	totalPages := 1
	if raw := header.Get("X-Total-Pages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.logger.Warn().Str("collection", collection).Str("value", raw).Msg("Ignoring invalid X-Total-Pages header")
		} else {
			totalPages = n
		}
	}
	return body, totalPages, nil
}

// get performs a GET with retry and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, collection, path string, query url.Values) ([]byte, http.Header, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	startTime := time.Now()
	defer func() {
		docstoreRequestDuration.WithLabelValues(collection).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	var header http.Header

	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		if c.config.Limiter != nil {
			if err := c.config.Limiter.Allow(ctx); err != nil {
				return limiterError(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return &Error{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug().Str("url", target).Msg("Executing document store request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			docErr := c.classifyTransportError(err)
			docstoreErrorsTotal.WithLabelValues(string(docErr.ErrorClass)).Inc()
			docstoreRequestsTotal.WithLabelValues(collection, "network_error").Inc()
			c.logger.Warn().Err(err).Str("collection", collection).Msg("HTTP request failed")
			return docErr
		}
		defer resp.Body.Close()

		if c.config.Limiter != nil {
			if err := c.config.Limiter.Observe(ctx, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to record rate limit headers")
			}
		}

		docstoreRequestsTotal.WithLabelValues(collection, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			docErr := c.classifyResponse(resp)
			docstoreErrorsTotal.WithLabelValues(string(docErr.ErrorClass)).Inc()
			c.logger.Warn().
				Str("collection", collection).
				Int("status", resp.StatusCode).
				Str("error_class", string(docErr.ErrorClass)).
				Msg("Document store request error")
			return docErr
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &Error{ErrorClass: ErrorClassNetwork, StatusCode: resp.StatusCode, Message: "read body", Err: err}
		}
		body = data
		header = resp.Header
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, header, nil
}

// classifyResponse builds the error for a non-200 response.
func (c *Client) classifyResponse(resp *http.Response) *Error {
	docErr := &Error{StatusCode: resp.StatusCode, Message: resp.Status}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		docErr.ErrorClass = ErrorClassRateLimit
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			docErr.RetryAfter = time.Duration(secs) * time.Second
		}
	case resp.StatusCode == http.StatusNotFound:
		docErr.ErrorClass = ErrorClassClient
		docErr.Err = ErrNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		docErr.ErrorClass = ErrorClassClient
	case resp.StatusCode >= 500:
		docErr.ErrorClass = ErrorClassServer
	default:
		// Redirects and other 2xx/3xx statuses are not expected from the store
		docErr.ErrorClass = ErrorClassClient
	}

	c.logger.Debug().Str("class", string(docErr.ErrorClass)).Msg("Error classified")
	return docErr
}

// classifyTransportError builds the error for a failed round trip.
// Rejected OAuth2 credentials are client errors; everything else is network.
func (c *Client) classifyTransportError(err error) *Error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &Error{ErrorClass: ErrorClassClient, Message: "token request rejected", Err: err}
	}
	return &Error{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
}

// limiterError turns a held request into a retryable rate limit error that
// waits for the window reset when the limiter reports one.
func limiterError(err error) *Error {
	docErr := &Error{ErrorClass: ErrorClassRateLimit, Message: "request held by rate limiter", Err: err}
	var delayed interface{ RetryDelay() time.Duration }
	if errors.As(err, &delayed) {
		docErr.RetryAfter = delayed.RetryDelay()
	}
	return docErr
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
