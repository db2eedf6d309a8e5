package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Upload sends a raw-body POST to an absolute URL, as the chunked media
// upload flow requires. Default app headers are applied first; the provided
// headers override them. The response body is returned undecoded; HTTP-level
// errors are classified as usual.
func (c *Client) Upload(ctx context.Context, target string, body io.Reader, headers map[string]string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upload request: %w", err)
	}

	c.applyDefaultHeaders(req, false)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cl := req.Header.Get("Content-Length"); cl != "" {
		// net/http ignores a Content-Length header field; the field on the
		// request is authoritative
		req.Header.Del("Content-Length")
		var n int64
		if _, err := fmt.Sscanf(cl, "%d", &n); err == nil {
			req.ContentLength = n
		}
	}

	start := time.Now()
	raw, resp, err := c.roundTrip(req)
	if err != nil {
		return nil, nil, err
	}
	if err := c.classifyStatus(resp.StatusCode, raw); err != nil {
		return nil, resp, err
	}

	c.logger.DebugWithFields("upload request completed", map[string]interface{}{
		"url":      target,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})
	return raw, resp, nil
}
