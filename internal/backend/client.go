// Package backend is the client of the upstream facilities REST API. Every response is
// classified into transport, auth or application errors, including application errors
// the upstream embeds in a 200 body.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fmconsole/internal/auth"

	"go.uber.org/zap"
)

const maxResponseBytes = 32 << 20

// Observer records the outcome of one upstream call. status is 0 on transport failure.
type Observer func(endpoint string, status int, elapsed time.Duration)

// Client talks to the upstream backend. It never retries; every retry is an operator action.
type Client struct {
	BaseURL    string
	Token      string
	SiteID     string
	Endpoints  Endpoints
	HTTPClient *http.Client
	Observe    Observer
	log        *zap.Logger
}

// New creates a client. A token in the request context takes precedence over token.
func New(baseURL, token string, timeout time.Duration, endpoints Endpoints, log *zap.Logger) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		Endpoints:  endpoints.WithDefaults(),
		HTTPClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// body is a request payload with its content type
type body interface {
	encode() (io.Reader, string, error)
}

type jsonBody struct{ v interface{} }

func (b jsonBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(b.v); err != nil {
		return nil, "", err
	}
	return &buf, "application/json", nil
}

type formBody struct{ v url.Values }

func (b formBody) encode() (io.Reader, string, error) {
	return strings.NewReader(b.v.Encode()), "application/x-www-form-urlencoded", nil
}

type multipartBody struct{ write func(mw *multipart.Writer) error }

func (b multipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := b.write(mw); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) token(ctx context.Context) string {
	if t := auth.UpstreamToken(ctx); t != "" {
		return t
	}
	return c.Token
}

// do sends one request and decodes a successful response into out. name labels the
// endpoint for metrics and logs.
func (c *Client) do(ctx context.Context, name, method, path string, query url.Values, in body, out interface{}) error {
	token := c.token(ctx)
	if token == "" {
		return authError(0)
	}

	endpoint := c.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	contentType := ""
	if in != nil {
		r, ct, err := in.encode()
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", name, err)
		}
		reader, contentType = r, ct
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.observe(name, 0, start)
		c.log.Warn("Upstream request failed", zap.String("endpoint", name), zap.Error(err))
		return transportError(err, isTimeout(err))
	}
	defer resp.Body.Close()
	c.observe(name, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err, isTimeout(err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return authError(resp.StatusCode)
	}
	if e := classify(resp.StatusCode, raw); e != nil {
		c.log.Info("Upstream rejected request",
			zap.String("endpoint", name),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", e.Code),
			zap.String("message", e.Message))
		return e
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return applicationError(resp.StatusCode, 0, "Unexpected response from server")
	}
	return nil
}

func (c *Client) observe(name string, status int, start time.Time) {
	if c.Observe != nil {
		c.Observe(name, status, time.Since(start))
	}
}

// envelope is the error shape the upstream uses, sometimes under HTTP 200
type envelope struct {
	Code    interface{} `json:"code"`
	Error   interface{} `json:"error"`
	Message interface{} `json:"message"`
}

func classify(status int, raw []byte) *Error {
	var env envelope
	trimmed := bytes.TrimSpace(raw)
	isObject := len(trimmed) > 0 && trimmed[0] == '{'
	if isObject {
		_ = json.Unmarshal(trimmed, &env)
	}
	code := intOf(env.Code)

	if status >= 200 && status < 300 {
		if code >= 400 {
			return applicationError(status, code, messageOf(env))
		}
		return nil
	}
	return applicationError(status, code, messageOf(env))
}

func messageOf(env envelope) string {
	if s := textOf(env.Error); s != "" {
		return s
	}
	return textOf(env.Message)
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func intOf(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
