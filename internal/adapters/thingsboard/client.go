// Package thingsboard talks to the ThingsBoard HTTP device API.
package thingsboard

import (
	"bytes"
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

	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("thingsboard: unexpected status")

// Config controls the device API client.
type Config struct {
	ServerURL       string        `yaml:"server_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	RPCPollInterval time.Duration `yaml:"rpc_poll_interval"`
}

func (c *Config) ApplyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 20 * time.Second
	}
	if c.RPCPollInterval <= 0 {
		c.RPCPollInterval = time.Second
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server_url %q: scheme must be http or https", c.ServerURL)
	}
	return nil
}

// StatusError carries the status and a bounded excerpt of the body.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client implements ports.TelemetrySink against /api/v1/{token}/... endpoints.
type Client struct {
	base *url.URL
	cfg  Config
	http *http.Client
	obs  ports.Observability
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewClient(cfg Config, obs ports.Observability, opts ...ClientOption) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server_url: %w", err)
	}

	c := &Client{
		base: base,
		cfg:  cfg,
		// the long-poll RPC request may legitimately take RPCTimeout
		http: &http.Client{Timeout: cfg.RequestTimeout + cfg.RPCTimeout},
		obs:  obs,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) SendAttributes(ctx context.Context, token string, attrs map[string]any) error {
	return c.post(ctx, devicePath(token, "attributes"), attrs)
}

func (c *Client) SendTelemetry(ctx context.Context, token string, samples []domain.Telemetry) error {
	if len(samples) == 0 {
		return nil
	}
	return c.post(ctx, devicePath(token, "telemetry"), samples)
}

func (c *Client) GetAttributes(ctx context.Context, token string, clientKeys, sharedKeys []string) (*domain.Attributes, error) {
	q := url.Values{}
	q.Set("clientKeys", strings.Join(clientKeys, ","))
	q.Set("sharedKeys", strings.Join(sharedKeys, ","))

	resp, err := c.do(ctx, http.MethodGet, devicePath(token, "attributes"), q, nil, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	attrs := &domain.Attributes{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(attrs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

// PollCommand long-polls for one pending server-side RPC. It returns
// (nil, nil) when the poll times out without a command.
func (c *Client) PollCommand(ctx context.Context, token string) (*domain.Command, error) {
	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(c.cfg.RPCTimeout.Milliseconds(), 10))

	resp, err := c.do(ctx, http.MethodGet, devicePath(token, "rpc"), q, nil, c.cfg.RequestTimeout+c.cfg.RPCTimeout)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusNoContent:
		return nil, nil
	case http.StatusUnauthorized:
		c.obs.LogWarn("thingsboard_rpc_unauthorized", ErrUnexpectedStatus, ports.F("path", redact(resp.Request.URL.Path)))
	case http.StatusNotFound:
		c.obs.LogWarn("thingsboard_rpc_not_found", ErrUnexpectedStatus, ports.F("path", redact(resp.Request.URL.Path)))
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc request: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var cmd domain.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return nil, fmt.Errorf("decode rpc request: %w", err)
	}
	return &cmd, nil
}

func (c *Client) RespondCommand(ctx context.Context, token string, id int, r domain.CommandResponse) error {
	return c.post(ctx, devicePath(token, "rpc", strconv.Itoa(id)), r)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil, body, c.cfg.RequestTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, timeout time.Duration) (*http.Response, error) {
	endpoint := *c.base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if q != nil {
		endpoint.RawQuery = q.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint.String(), reader)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, redact(path), err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelBody releases the request context once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		Method: resp.Request.Method,
		Path:   redact(resp.Request.URL.Path),
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(msg)),
	}
}

func devicePath(token string, parts ...string) string {
	segs := append([]string{"/api/v1", token}, parts...)
	return strings.Join(segs, "/")
}

// redact hides the device token, which is a credential.
func redact(path string) string {
	segs := strings.Split(path, "/")
	if len(segs) > 3 && segs[1] == "api" && segs[2] == "v1" {
		segs[3] = "***"
	}
	return strings.Join(segs, "/")
}

var _ ports.TelemetrySink = (*Client)(nil)
