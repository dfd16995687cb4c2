// pattern: Imperative Shell

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bunshinctl/internal/logging"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "bunshinctl"
	maxBodyBytes   = 8 << 20
)

// Backend is the REST surface used by the controller, poller and CLI.
// *Client implements it; tests substitute fakes.
type Backend interface {
	ListStacks(ctx context.Context) ([]string, error)
	GetStack(ctx context.Context, name string) (Definition, error)
	SaveStack(ctx context.Context, name string, def Definition) error
	Status(ctx context.Context, name string) (Status, error)
	Action(ctx context.Context, name string, action Action) error
	Containers(ctx context.Context, name string) ([]Container, error)
}

var _ Backend = (*Client)(nil)

// Client talks to the bunshin dashboard HTTP API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *logging.ScopedLogger
}

// NewClient builds a Client for baseURL. A zero timeout uses the default;
// a nil logger discards output.
func NewClient(baseURL string, timeout time.Duration, log *logging.ScopedLogger) (*Client, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// ListStacks returns the stack names known to the backend.
func (c *Client) ListStacks(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/stacks", nil, nil, &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetStack fetches a stack's manifest and env file.
func (c *Client) GetStack(ctx context.Context, name string) (Definition, error) {
	var def Definition
	err := c.doJSON(ctx, http.MethodGet, "/api/stack/get", url.Values{"name": {name}}, nil, &def)
	return def, err
}

// SaveStack stores def under name. The strings are sent exactly as given.
func (c *Client) SaveStack(ctx context.Context, name string, def Definition) error {
	body := struct {
		Name string `json:"name"`
		YAML string `json:"yaml"`
		Env  string `json:"env"`
	}{name, def.YAML, def.Env}
	if err := c.doJSON(ctx, http.MethodPost, "/api/stack/save", nil, body, nil); err != nil {
		return err
	}
	c.log.Info("stack saved", "stack", name, "yaml_bytes", len(def.YAML), "env_bytes", len(def.Env))
	return nil
}

// Status returns the stack's running state.
func (c *Client) Status(ctx context.Context, name string) (Status, error) {
	body, err := c.send(ctx, http.MethodGet, "/api/stack/status", url.Values{"name": {name}}, nil, "")
	if err != nil {
		return "", err
	}
	return ParseStatus(string(body)), nil
}

// Action asks the backend to start, stop or update a stack.
func (c *Client) Action(ctx context.Context, name string, action Action) error {
	q := url.Values{"name": {name}, "action": {string(action)}}
	if _, err := c.send(ctx, http.MethodPost, "/api/stack/action", q, nil, ""); err != nil {
		return err
	}
	c.log.Info("stack action sent", "stack", name, "action", action)
	return nil
}

// Containers lists the running containers of a stack, in backend order.
func (c *Client) Containers(ctx context.Context, name string) ([]Container, error) {
	var list []Container
	if err := c.doJSON(ctx, http.MethodGet, "/api/stack/containers", url.Values{"name": {name}}, nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Container{}
	}
	return list, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
		contentType = "application/json"
	}

	body, err := c.send(ctx, method, path, query, payload, contentType)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	rel := &url.URL{Path: path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	c.log.Debug("request done", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   extractErrorMessage(data),
		}
	}
	return data, nil
}

// ParseBaseURL normalizes a configured server address. A bare host:port is
// treated as http; path, query and fragment are dropped.
func ParseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("server address is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server %q: missing host", raw)
	}
	u.Path = ""
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
