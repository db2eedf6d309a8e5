// Package web drives the browser-origin surface of the vendor API: the
// landing-page bootstrap that yields rhx_gis, csrf token and rollout hash,
// and GraphQL queries gated by the X-Instagram-GIS header.
package web

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"igclient/pkg/config"
	"igclient/pkg/cookiejar"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
	"igclient/pkg/session"
)

// browserUserAgent is sent on web-origin calls instead of the app UA
const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Fixed scrape patterns for the landing page payload
var (
	rhxGisRe      = regexp.MustCompile(`"rhx_gis":"([a-f0-9]{32})"`)
	csrfTokenRe   = regexp.MustCompile(`"csrf_token":"([^"]+)"`)
	rolloutHashRe = regexp.MustCompile(`"rollout_hash":"([^"]+)"`)
)

// Client is the web-origin counterpart of the app transport. It shares the
// session's cookie jar and must be bootstrapped before GraphQL use.
type Client struct {
	sess       *session.Session
	httpClient *http.Client
	host       string
	logger     logger.Logger

	rhxGis      string
	rolloutHash string
}

// New creates a web client over a session
func New(sess *session.Session, cfg *config.Config, log logger.Logger) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{
		sess: sess,
		httpClient: &http.Client{
			Timeout: cfg.API.WebTimeout,
			Jar:     sess.Jar,
		},
		host:   cfg.API.WebHost,
		logger: log,
	}
}

// SetHTTPClient swaps the underlying *http.Client, reattaching the jar
func (c *Client) SetHTTPClient(hc *http.Client) {
	hc.Jar = c.sess.Jar
	c.httpClient = hc
}

// Bootstrap fetches the landing page and scrapes rhx_gis, csrf token and
// rollout hash. Absence of any of them is a hard failure at init, never
// mid-call.
func (c *Client) Bootstrap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+c.host+"/", nil)
	if err != nil {
		return &errors.Error{Kind: errors.KindGeneric, Message: err.Error()}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("connection error: %v", err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("failed to read landing page: %v", err),
			Code:    resp.StatusCode,
		}
	}

	gis := rhxGisRe.FindSubmatch(body)
	rollout := rolloutHashRe.FindSubmatch(body)
	if gis == nil || rollout == nil {
		return &errors.Error{
			Kind:    errors.KindGeneric,
			Message: "unable to scrape web tokens from landing page",
			Code:    resp.StatusCode,
		}
	}
	c.rhxGis = string(gis[1])
	c.rolloutHash = string(rollout[1])

	// Seed the csrf cookie from the page payload when Set-Cookie did not
	if _, ok := c.sess.Jar.Get("csrftoken", c.host); !ok {
		if token := csrfTokenRe.FindSubmatch(body); token != nil {
			c.sess.Jar.Set(cookiejar.Cookie{
				Name:   "csrftoken",
				Value:  string(token[1]),
				Domain: "." + trimWWW(c.host),
				Path:   "/",
			})
		}
	}

	c.logger.DebugWithFields("web client bootstrapped", map[string]interface{}{
		"rollout_hash": c.rolloutHash,
	})
	return nil
}

// GIS computes the X-Instagram-GIS gate for a GraphQL variables payload
func (c *Client) GIS(variables string) string {
	sum := md5.Sum([]byte(c.rhxGis + ":" + variables))
	return hex.EncodeToString(sum[:])
}

// GraphQL runs a query_hash GraphQL request on the web surface
func (c *Client) GraphQL(ctx context.Context, queryHash string, variables map[string]interface{}) (map[string]interface{}, error) {
	if c.rhxGis == "" {
		return nil, &errors.Error{
			Kind:    errors.KindGeneric,
			Message: "web client not bootstrapped",
		}
	}

	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, &errors.Error{Kind: errors.KindGeneric, Message: err.Error()}
	}

	query := url.Values{}
	query.Set("query_hash", queryHash)
	query.Set("variables", string(variablesJSON))

	target := fmt.Sprintf("https://%s/graphql/query/?%s", c.host, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &errors.Error{Kind: errors.KindGeneric, Message: err.Error()}
	}
	c.applyWebHeaders(req)
	req.Header.Set("X-Instagram-GIS", c.GIS(string(variablesJSON)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("connection error: %v", err),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.Error{
			Kind:    errors.KindConnection,
			Message: fmt.Sprintf("failed to read response: %v", err),
			Code:    resp.StatusCode,
		}
	}

	c.logger.DebugWithFields("graphql query completed", map[string]interface{}{
		"query_hash": queryHash,
		"status":     resp.StatusCode,
		"duration":   time.Since(start),
	})

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &errors.Error{
			Kind:          errors.KindThrottled,
			Message:       "too many requests",
			Code:          resp.StatusCode,
			ErrorResponse: string(raw),
		}
	}
	if resp.StatusCode >= 400 {
		var body struct {
			ErrorType string `json:"error_type"`
			Message   string `json:"message"`
		}
		_ = json.Unmarshal(raw, &body)
		kind := errors.Classify(body.ErrorType, body.Message)
		if kind == errors.KindGeneric && resp.StatusCode >= 500 {
			kind = errors.KindServer
		}
		return nil, &errors.Error{
			Kind:          kind,
			Message:       body.Message,
			Code:          resp.StatusCode,
			ErrorResponse: string(raw),
		}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &errors.Error{
			Kind:          errors.KindGeneric,
			Message:       fmt.Sprintf("failed to parse response: %v", err),
			Code:          resp.StatusCode,
			ErrorResponse: string(raw),
		}
	}
	return parsed, nil
}

// applyWebHeaders sets the browser-origin headers every web call carries
func (c *Client) applyWebHeaders(req *http.Request) {
	origin := "https://" + c.host
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")
	req.Header.Set("x-requested-with", "XMLHttpRequest")
	req.Header.Set("x-instagram-ajax", c.rolloutHash)
	if token, ok := c.sess.Jar.Get("csrftoken", c.host); ok {
		req.Header.Set("x-csrftoken", token)
	}
}

func trimWWW(host string) string {
	if len(host) > 4 && host[:4] == "www." {
		return host[4:]
	}
	return host
}
