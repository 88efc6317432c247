// Package client implements the validation service boundary over HTTP
// for deployments backed by a remote validation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/plantsight/pipevalidation/validation"
)

// TokenProvider supplies the bearer credential for each request.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken returns a TokenProvider that always yields the given
// token.
func StaticToken(token string) TokenProvider {
	return func(ctx context.Context) (string, error) {
		return token, nil
	}
}

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.example.com/validation/v1".
	BaseURL string

	// TokenProvider supplies credentials. Required: a missing provider
	// or empty token fails requests with an AuthError.
	TokenProvider TokenProvider

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// Client implements validation.Backend against a remote service.
type Client struct {
	baseURL string
	token   TokenProvider
	http    *http.Client
}

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: config.BaseURL,
		token:   config.TokenProvider,
		http:    httpClient,
	}, nil
}

type templatesResponse struct {
	RuleTemplates []validation.RuleTemplate `json:"ruleTemplates"`
}

type rulesResponse struct {
	Rules []*validation.RuleSpec `json:"rules"`
}

type testsResponse struct {
	Tests []*validation.TestSpec `json:"tests"`
}

type runsResponse struct {
	Runs []*validation.RunRecord `json:"runs"`
}

type runTestRequest struct {
	ModelID        string `json:"modelId"`
	ModelVersionID string `json:"modelVersionId"`
}

func (c *Client) GetTemplates(ctx context.Context, projectID string) ([]validation.RuleTemplate, error) {
	var resp templatesResponse
	if err := c.do(ctx, "GetTemplates", http.MethodGet, "/templates", url.Values{"projectId": {projectID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.RuleTemplates, nil
}

func (c *Client) CreateRule(ctx context.Context, params validation.RuleCreateParams) (*validation.RuleSpec, error) {
	var rule validation.RuleSpec
	if err := c.do(ctx, "CreateRule", http.MethodPost, "/rules", nil, params, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (c *Client) GetRules(ctx context.Context, projectID string) ([]*validation.RuleSpec, error) {
	var resp rulesResponse
	if err := c.do(ctx, "GetRules", http.MethodGet, "/rules", url.Values{"projectId": {projectID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

func (c *Client) CreateTest(ctx context.Context, params validation.TestCreateParams) (*validation.TestSpec, error) {
	var test validation.TestSpec
	if err := c.do(ctx, "CreateTest", http.MethodPost, "/tests", nil, params, &test); err != nil {
		return nil, err
	}
	return &test, nil
}

func (c *Client) GetTests(ctx context.Context, projectID string) ([]*validation.TestSpec, error) {
	var resp testsResponse
	if err := c.do(ctx, "GetTests", http.MethodGet, "/tests", url.Values{"projectId": {projectID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tests, nil
}

func (c *Client) RunTest(ctx context.Context, testID, modelID, modelVersionID string) (*validation.RunRecord, error) {
	var run validation.RunRecord
	path := fmt.Sprintf("/tests/%s/run", url.PathEscape(testID))
	body := runTestRequest{ModelID: modelID, ModelVersionID: modelVersionID}
	if err := c.do(ctx, "RunTest", http.MethodPost, path, nil, body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) GetRuns(ctx context.Context, projectID string) ([]*validation.RunRecord, error) {
	var resp runsResponse
	if err := c.do(ctx, "GetRuns", http.MethodGet, "/runs", url.Values{"projectId": {projectID}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (c *Client) GetResult(ctx context.Context, resultID string) (*validation.ResultSet, error) {
	var result validation.ResultSet
	path := fmt.Sprintf("/results/%s", url.PathEscape(resultID))
	if err := c.do(ctx, "GetResult", http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do issues one authenticated JSON request. Non-2xx responses become
// BackendRequestError; credential problems become AuthError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, reqBody, respBody any) error {
	if c.token == nil {
		return &validation.AuthError{Reason: "no token provider configured"}
	}
	token, err := c.token(ctx)
	if err != nil {
		return &validation.AuthError{Reason: err.Error()}
	}
	if token == "" {
		return &validation.AuthError{Reason: "empty access token"}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &validation.BackendRequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &validation.AuthError{Reason: fmt.Sprintf("service returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &validation.BackendRequestError{
			Op:  op,
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data)),
		}
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return &validation.BackendRequestError{Op: op, Err: fmt.Errorf("invalid response body: %w", err)}
		}
	}
	return nil
}
