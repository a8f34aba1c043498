// Package azsearch provides a client for uploading document chunks to
// an Azure AI Search index.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Chunk is one slice of a document's text destined for the search index.
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	OwnerID      string    `json:"user_id"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"content_vector,omitempty"`
}

// Client defines the search index operations used during ingestion.
type Client interface {
	// UploadChunks indexes the chunks, replacing any documents with the
	// same key.
	UploadChunks(ctx context.Context, chunks []Chunk) error
}

// Option configures the azsearch client.
type Option func(*httpClient)

// WithAPIVersion overrides the default API version.
func WithAPIVersion(v string) Option {
	return func(c *httpClient) {
		c.apiVersion = v
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey     string
	endpoint   string
	index      string
	apiVersion string
	http       *http.Client
}

// NewClient creates a new client for the given search service endpoint
// and index name.
func NewClient(apiKey, endpoint, index string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		endpoint:   endpoint,
		index:      index,
		apiVersion: "2023-11-01",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type indexAction struct {
	Chunk
	Action string `json:"@search.action"`
}

type indexRequest struct {
	Value []indexAction `json:"value"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo posts the payload with exponential backoff retries on
// transient failures (429, 500, 502, 503). The request is rebuilt each
// attempt so the body can be replayed.
func (c *httpClient) retryDo(ctx context.Context, url string, payload []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, eris.Wrap(err, "azsearch: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "azsearch: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("azsearch: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) UploadChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	actions := make([]indexAction, len(chunks))
	for i, chunk := range chunks {
		actions[i] = indexAction{Chunk: chunk, Action: "upload"}
	}

	payload, err := json.Marshal(indexRequest{Value: actions})
	if err != nil {
		return eris.Wrap(err, "azsearch: marshal request")
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/index?api-version=%s",
		c.endpoint, c.index, c.apiVersion)

	body, statusCode, err := c.retryDo(ctx, url, payload)
	if err != nil {
		return eris.Wrap(err, "azsearch: request failed")
	}

	// 207 means some documents failed; the per-item status says which.
	if statusCode != http.StatusOK && statusCode != http.StatusMultiStatus {
		return eris.Errorf("azsearch: unexpected status %d: %s", statusCode, string(body))
	}

	var result indexResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return eris.Wrap(err, "azsearch: unmarshal response")
	}

	for _, r := range result.Value {
		if !r.Status {
			return eris.Errorf("azsearch: index chunk %s: %d %s", r.Key, r.StatusCode, r.ErrorMessage)
		}
	}
	return nil
}
