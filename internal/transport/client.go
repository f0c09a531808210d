// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/joshndala/shyft-rag-app/internal/logging"
)

// Configuration constants for the backend client.
const (
	// DefaultBaseURL is where the reference backend listens.
	DefaultBaseURL = "http://127.0.0.1:8000"

	// DefaultTimeout bounds request/response calls. Streams use the caller's
	// context only.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody caps how much of an error body is read for its detail.
	maxErrorBody = 4 * 1024

	logModule = "transport"
)

// sharedTransport is the pooled transport every Client uses.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// Client talks to the RAG backend. It holds no state beyond configuration
// and an optional search cache; every in-flight stream is owned by its
// StreamHandle. Safe for concurrent use.
type Client struct {
	baseURL string

	httpClient *http.Client
	// streamClient has no timeout; streams end via context or Close
	streamClient *http.Client

	logger    logging.Logger
	userAgent string

	searchCache *cache.Cache
}

// New creates a client for the backend at baseURL. An empty baseURL uses
// DefaultBaseURL.
func New(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
		streamClient: &http.Client{
			Transport: sharedTransport,
		},
		logger:    logging.NewNop(),
		userAgent: "shyft",
	}
}

// WithTimeout sets the timeout for request/response calls. Zero disables it.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP transport (tests, proxies).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	rt := hc.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.httpClient = &http.Client{Transport: rt, Timeout: hc.Timeout}
	c.streamClient = &http.Client{Transport: rt}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l logging.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithSearchCache caches identical searches for ttl. Successful uploads
// flush the cache. A ttl <= 0 disables caching.
func (c *Client) WithSearchCache(ttl time.Duration) *Client {
	if ttl <= 0 {
		c.searchCache = nil
		return c
	}
	c.searchCache = cache.New(ttl, 2*ttl)
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// UPLOAD
// =============================================================================

// Upload sends the file at path to POST /upload/.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader sends r as a multipart file field named name. The backend
// answers unsupported formats with 200 and an error payload; that is
// reported as a *TransportError.
func (c *Client) UploadReader(ctx context.Context, name string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/upload/", nil), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(req, "upload")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &TransportError{Op: "upload", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if payload.Error != "" {
		return nil, &TransportError{Op: "upload", StatusCode: http.StatusOK, Detail: payload.Error}
	}

	if c.searchCache != nil {
		c.searchCache.Flush()
	}
	c.logger.Info(logModule, "document uploaded", map[string]interface{}{"file": name, "bytes": body.Len()})
	return &UploadResult{Message: payload.Message, File: name}, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search runs a hybrid search. topK <= 0 uses DefaultTopK. Weights are passed
// through untouched and results keep the backend's order.
func (c *Client) Search(ctx context.Context, query string, weights Weights, topK int) (*SearchResponse, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	params := url.Values{
		"query":           {query},
		"top_k":           {strconv.Itoa(topK)},
		"semantic_weight": {formatWeight(weights.Semantic)},
		"keyword_weight":  {formatWeight(weights.Keyword)},
	}

	cacheKey := params.Encode()
	if c.searchCache != nil {
		if cached, ok := c.searchCache.Get(cacheKey); ok {
			c.logger.Debug(logModule, "search cache hit", map[string]interface{}{"top_k": topK})
			return cloneSearch(cached.(*SearchResponse)), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/search/", params), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	data, err := c.do(req, "search")
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &TransportError{Op: "search", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}
	if resp.Query == "" {
		resp.Query = query
	}
	if resp.TotalResults == 0 {
		resp.TotalResults = len(resp.Results)
	}

	if c.searchCache != nil {
		c.searchCache.SetDefault(cacheKey, cloneSearch(&resp))
	}
	return &resp, nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func cloneSearch(r *SearchResponse) *SearchResponse {
	out := *r
	out.Results = append([]SearchResult(nil), r.Results...)
	return &out
}

// =============================================================================
// ASK (NON-STREAMING) AND PING
// =============================================================================

// Ask requests a complete answer from GET /ask/ without streaming.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/ask/", url.Values{"query": {query}}), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	data, err := c.do(req, "ask")
	if err != nil {
		return "", err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload struct {
			Error   string `json:"error"`
			Content string `json:"content"`
			Answer  string `json:"answer"`
		}
		if json.Unmarshal(trimmed, &payload) == nil {
			switch {
			case payload.Error != "":
				return "", &TransportError{Op: "ask", StatusCode: http.StatusOK, Detail: payload.Error}
			case payload.Answer != "":
				return payload.Answer, nil
			case payload.Content != "":
				return payload.Content, nil
			}
		}
	}
	return string(data), nil
}

// Ping calls GET / and returns the backend's welcome message.
func (c *Client) Ping(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/", nil), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	data, err := c.do(req, "ping")
	if err != nil {
		return "", err
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return strings.TrimSpace(string(data)), nil
	}
	return payload.Message, nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// do sends a request/response call and returns the body of a 2xx response.
// Anything else becomes a *TransportError.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn(logModule, "request failed", map[string]interface{}{
			"op": op, "path": req.URL.Path, "error": err,
		})
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	// Logs carry the route and status only, never query text or bodies
	c.logger.Debug(logModule, "response", map[string]interface{}{
		"op": op, "path": req.URL.Path, "status": resp.StatusCode, "duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	data, err := readResponse(resp)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// errorDetail extracts a readable message from an error body. FastAPI sends
// {"detail": "..."} or {"detail": [{"msg": "..."}]}.
func errorDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &items) == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	text := string(body)
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// IsNetworkError reports whether err is a transport failure that happened
// before the server answered.
func IsNetworkError(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Network()
	}
	var ce *ConnectionError
	return errors.As(err, &ce)
}
