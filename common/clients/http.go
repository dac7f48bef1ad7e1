package clients

import (
	"context"
	"io"
	"net/http"
)

// Logger interface for HTTP client logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// HTTPClient wraps http.Client with context-aware helpers and a bearer
// credential for the upstream preservation API.
type HTTPClient struct {
	client      *http.Client
	logger      Logger
	bearerToken string
}

// NewHTTPClient creates a new HTTP client wrapper. bearerToken is sent as
// an Authorization header on every request; it is resolved once at
// startup from the configured secret name.
func NewHTTPClient(client *http.Client, bearerToken string, logger Logger) *HTTPClient {
	return &HTTPClient{
		client:      client,
		logger:      logger,
		bearerToken: bearerToken,
	}
}

// DoRequest creates and executes an HTTP request, attaching the batch id
// from context (if any) and the upstream credential.
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	if batchID, ok := BatchID(ctx); ok {
		req.Header.Set("X-Batch-ID", batchID)
		c.logger.Debug("added X-Batch-ID header from context", "batch_id", batchID)
	}

	return c.client.Do(req)
}
