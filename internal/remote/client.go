// Package remote talks to the test-management service: it fetches the
// identifier map, pushes parsed tests and pulls registered feature files.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/chriserin/featsync/internal/annotate"
)

const (
	FrameworkCucumber   = "Cucumber"
	FrameworkCodeceptJS = "codeceptjs"
	Language            = "gherkin"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// Labels are copied onto every pushed test.
	Labels    []string
	Framework string
	// HTTPClient defaults to a client with no timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a one-shot request/response client with no retries.
type Client struct {
	baseURL    string
	apiKey     string
	labels     []string
	framework  string
	httpClient *http.Client
	logger     *slog.Logger
}

// SyncOptions are passed through to the service with every push.
type SyncOptions struct {
	Branch    string `json:"branch,omitempty"`
	Sync      bool   `json:"sync,omitempty"`
	NoEmpty   bool   `json:"noempty,omitempty"`
	Suite     string `json:"suite,omitempty"`
	NoDetach  bool   `json:"no-detach,omitempty"`
	Structure bool   `json:"structure,omitempty"`
	Create    bool   `json:"create,omitempty"`
}

// ResponseError is a non-2xx answer from the service. Body is the raw response.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// PushResult is the service's answer to a push, successful or not.
type PushResult struct {
	StatusCode int
	Body       string
}

// OK reports whether the service accepted the push.
func (r *PushResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PullResponse maps relative paths to feature file contents.
type PullResponse struct {
	Files map[string]string `json:"files"`
}

type pushPayload struct {
	SyncOptions
	Tests     []TestRecord      `json:"tests"`
	Files     map[string]string `json:"files"`
	Framework string            `json:"framework"`
	Language  string            `json:"language"`
}

// New creates a client for the service at cfg.BaseURL.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		labels:     cfg.Labels,
		framework:  cfg.Framework,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if c.framework == "" {
		c.framework = FrameworkCucumber
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// GetIdentifierMap fetches the title to identifier map for the project.
func (c *Client) GetIdentifierMap(ctx context.Context, opts SyncOptions) (annotate.IdentifierMap, error) {
	var ids annotate.IdentifierMap
	q := url.Values{}
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	status, body, err := c.do(ctx, http.MethodGet, "/api/test_data", q, nil)
	if err != nil {
		return ids, err
	}
	if !success(status) {
		return ids, &ResponseError{StatusCode: status, Body: string(body)}
	}
	if err := json.Unmarshal(body, &ids); err != nil {
		return ids, fmt.Errorf("decode identifier map: %w", err)
	}
	return ids, nil
}

// Push sends tests and the files they came from. A non-2xx answer is
// logged and returned in the result; only transport failures are errors.
func (c *Client) Push(ctx context.Context, tests []TestRecord, files map[string]string, opts SyncOptions) (*PushResult, error) {
	if len(c.labels) > 0 {
		labelled := make([]TestRecord, len(tests))
		for i, t := range tests {
			t.Labels = append([]string(nil), c.labels...)
			labelled[i] = t
		}
		tests = labelled
	}
	if tests == nil {
		tests = []TestRecord{}
	}
	if files == nil {
		files = map[string]string{}
	}

	payload, err := json.Marshal(pushPayload{
		SyncOptions: opts,
		Tests:       tests,
		Files:       files,
		Framework:   c.framework,
		Language:    Language,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal push payload: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/load", nil, payload)
	if err != nil {
		return nil, err
	}
	res := &PushResult{StatusCode: status, Body: string(body)}
	if !res.OK() {
		c.logger.Warn("push rejected by server", "status", status, "body", res.Body)
	}
	return res, nil
}

// Pull fetches the feature files registered on the service.
func (c *Client) Pull(ctx context.Context, opts SyncOptions) (*PullResponse, error) {
	q := url.Values{}
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	status, body, err := c.do(ctx, http.MethodGet, "/api/pull", q, nil)
	if err != nil {
		return nil, err
	}
	if !success(status) {
		return nil, &ResponseError{StatusCode: status, Body: string(body)}
	}
	var res PullResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode pull response: %w", err)
	}
	if res.Files == nil {
		res.Files = map[string]string{}
	}
	return &res, nil
}

// do performs one request with the API key in the query string and returns
// the status code and full body.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload []byte) (int, []byte, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + q.Encode()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("remote request", "method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
