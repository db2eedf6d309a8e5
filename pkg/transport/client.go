package transport

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"igclient/pkg/config"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
	"igclient/pkg/ratelimit"
	"igclient/pkg/session"
	"igclient/pkg/signature"
)

// Client is the single entry point for all vendor app-API calls. It owns URL
// assembly, header composition, body signing, gzip handling, JSON decoding
// and error classification. A Client, like its session, must only be used
// from one goroutine.
type Client struct {
	sess       *session.Session
	httpClient *http.Client
	host       string
	logger     logger.Logger
	limiter    ratelimit.Limiter

	// OnLogin is invoked with the session after a successful login so
	// callers can persist the refreshed identity and cookies.
	OnLogin func(*session.Session)
}

// Request describes one vendor call. Params nil means GET; EmptyPost forces
// a POST with an empty body; otherwise Params is posted signed unless
// Unsigned is set. Version defaults to "v1".
type Request struct {
	Endpoint  string
	Params    *signature.Params
	EmptyPost bool
	Query     url.Values
	Unsigned  bool
	Version   string

	// Headers are applied after the defaults and may override them
	Headers map[string]string
}

// New creates a transport client over a session
func New(sess *session.Session, cfg *config.Config, log logger.Logger) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	}

	return &Client{
		sess: sess,
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
			Jar:     sess.Jar,
		},
		host:    cfg.API.Host,
		logger:  log,
		limiter: limiter,
	}
}

// Session returns the session this client drives
func (c *Client) Session() *session.Session {
	return c.sess
}

// Host returns the vendor API host this client targets
func (c *Client) Host() string {
	return c.host
}

// SetHTTPClient swaps the underlying *http.Client. The session's jar is
// reattached so Set-Cookie responses keep flowing into it.
func (c *Client) SetHTTPClient(hc *http.Client) {
	hc.Jar = c.sess.Jar
	c.httpClient = hc
}

// Call performs a vendor call and returns the decoded JSON body
func (c *Client) Call(ctx context.Context, req Request) (map[string]interface{}, error) {
	body, _, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// CallRaw performs a vendor call and hands back the raw body without JSON
// decoding or body-level error promotion. HTTP-level errors are still
// classified.
func (c *Client) CallRaw(ctx context.Context, req Request) ([]byte, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, resp, err := c.roundTrip(httpReq)
	if err != nil {
		return nil, err
	}
	if err := c.classifyStatus(resp.StatusCode, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// do runs the full request/response cycle
func (c *Client) do(ctx context.Context, req Request) (map[string]interface{}, *http.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	raw, resp, err := c.roundTrip(httpReq)
	if err != nil {
		return nil, nil, err
	}

	// The body's message field can demand a re-login at any status code;
	// this is the sole case where a 2xx is promoted to an error.
	parsed := map[string]interface{}{}
	parseErr := json.Unmarshal(raw, &parsed)
	if parseErr == nil {
		if msg, _ := parsed["message"].(string); msg == "login_required" {
			return nil, resp, &errors.Error{
				Kind:          errors.KindLoginRequired,
				Message:       "login_required",
				Code:          resp.StatusCode,
				ErrorResponse: string(raw),
			}
		}
	}

	if err := c.classifyStatus(resp.StatusCode, raw); err != nil {
		return nil, resp, err
	}

	if parseErr != nil {
		return nil, resp, &errors.Error{
			Kind:          errors.KindGeneric,
			Message:       fmt.Sprintf("failed to parse response: %v", parseErr),
			Code:          resp.StatusCode,
			ErrorResponse: string(raw),
		}
	}

	// The oembed endpoint has no status field; its provider_url marks it
	if _, isOembed := parsed["provider_url"]; !isOembed {
		if status, _ := parsed["status"].(string); status != "ok" {
			msg, _ := parsed["message"].(string)
			return nil, resp, &errors.Error{
				Kind:          errors.KindGeneric,
				Message:       msg,
				Code:          resp.StatusCode,
				ErrorResponse: string(raw),
			}
		}
	}

	return parsed, resp, nil
}

// buildRequest assembles the HTTP request: URL, method selection, signing
// and default headers.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	version := req.Version
	if version == "" {
		version = "v1"
	}

	// The vendor requires the trailing slash on endpoints; it is never
	// added here.
	target := fmt.Sprintf("https://%s/api/%s/%s", c.host, version, req.Endpoint)
	if len(req.Query) > 0 {
		if strings.Contains(target, "?") {
			target += "&" + req.Query.Encode()
		} else {
			target += "?" + req.Query.Encode()
		}
	}

	var (
		method  = http.MethodGet
		payload io.Reader
	)
	switch {
	case req.EmptyPost:
		method = http.MethodPost
		payload = strings.NewReader("")
	case req.Params != nil:
		method = http.MethodPost
		var form url.Values
		if req.Unsigned {
			form = req.Params.Form()
		} else {
			var err error
			form, err = signature.SignedForm(c.sess.SigningKey, c.sess.SigKeyVersion, req.Params)
			if err != nil {
				return nil, &errors.Error{Kind: errors.KindGeneric, Message: err.Error()}
			}
		}
		payload = strings.NewReader(form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindGeneric,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	c.applyDefaultHeaders(httpReq, method == http.MethodPost)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// roundTrip sends the request and returns the decompressed body. Transport
// level failures map to the connection kind and are never retried here.
func (c *Client) roundTrip(req *http.Request) ([]byte, *http.Response, error) {
	if c.limiter != nil {
		c.limiter.Wait()
	}

	start := time.Now()
	c.logger.DebugWithFields("sending API request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("API request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, nil, &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("connection error: %v", err),
		}
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, &errors.Error{
				Kind:    errors.KindConnection,
				Message: fmt.Sprintf("bad gzip body: %v", err),
				Code:    resp.StatusCode,
			}
		}
		defer gz.Close()
		reader = gz
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("failed to read response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	c.logger.DebugWithFields("API request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return raw, resp, nil
}

// classifyStatus maps non-2xx responses into the typed error taxonomy
func (c *Client) classifyStatus(status int, raw []byte) error {
	if status < 400 {
		return nil
	}

	switch status {
	case http.StatusRequestHeaderFieldsTooLarge:
		return &errors.Error{
			Kind:          errors.KindRequestHeadersTooLarge,
			Message:       bodyMessage(raw, "request headers too large"),
			Code:          status,
			ErrorResponse: string(raw),
		}
	case http.StatusTooManyRequests:
		return &errors.Error{
			Kind:          errors.KindThrottled,
			Message:       bodyMessage(raw, "too many requests"),
			Code:          status,
			ErrorResponse: string(raw),
		}
	}

	var body struct {
		ErrorType     string `json:"error_type"`
		Message       string `json:"message"`
		CheckpointURL string `json:"checkpoint_url"`
		Challenge     struct {
			URL string `json:"url"`
		} `json:"challenge"`
	}
	_ = json.Unmarshal(raw, &body)

	kind := errors.Classify(body.ErrorType, body.Message)
	if kind == errors.KindGeneric && status >= 500 {
		kind = errors.KindServer
	}

	apiErr := &errors.Error{
		Kind:          kind,
		Message:       body.Message,
		Code:          status,
		ErrorResponse: string(raw),
	}
	if kind == errors.KindCheckpointRequired || kind == errors.KindChallengeRequired {
		apiErr.ChallengeURL = body.Challenge.URL
		if apiErr.ChallengeURL == "" {
			apiErr.ChallengeURL = body.CheckpointURL
		}
	}
	return apiErr
}

// bodyMessage pulls the message field out of a JSON body, falling back when
// the body is not JSON.
func bodyMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}
