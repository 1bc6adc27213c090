// Package api provides the HTTP client for a remote packaging service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/morrisclay/sb3pack/internal/config"
	"github.com/morrisclay/sb3pack/internal/model"
)

// Client is the HTTP client for the packaging API.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(host, apiKey string) *Client {
	if host == "" {
		host = config.GetHost()
	}
	return &Client{
		host:       host,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// NewClientFromConfig creates a client for host using the stored or
// environment API key. A missing key is not an error; some services accept
// anonymous jobs.
func NewClientFromConfig(host string) *Client {
	if host == "" {
		host = config.GetHost()
	}
	return NewClient(host, config.APIKey(host))
}

// Host returns the API host.
func (c *Client) Host() string {
	return c.host
}

// APIKey returns the API key.
func (c *Client) APIKey() string {
	return c.apiKey
}

// HasAuth returns true if the client has authentication.
func (c *Client) HasAuth() bool {
	return c.apiKey != ""
}

// ResolveURL resolves a possibly relative URL returned by the service
// against the host.
func (c *Client) ResolveURL(ref string) (string, error) {
	base, err := url.Parse(c.host)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// request performs an HTTP request and returns the body and its content type.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, string, error) {
	u, err := url.JoinPath(c.host, path)
	if err != nil {
		return nil, "", err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, "", err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Message != "" {
				msg = errResp.Message
			} else if errResp.Error != "" {
				msg = errResp.Error
			}
		}
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	return respBody, resp.Header.Get("Content-Type"), nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	data, _, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if result != nil && len(data) > 0 {
		return json.Unmarshal(data, result)
	}
	return nil
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	data, _, err := c.request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if result != nil && len(data) > 0 {
		return json.Unmarshal(data, result)
	}
	return nil
}

// GetCurrentUser returns the account behind the API key.
func (c *Client) GetCurrentUser(ctx context.Context) (*model.User, error) {
	data, _, err := c.request(ctx, http.MethodGet, "/api/v1/user", nil)
	if err != nil {
		return nil, err
	}

	// Try direct user object first
	var user model.User
	if err := json.Unmarshal(data, &user); err == nil && user.ID != "" {
		return &user, nil
	}

	// Try wrapped format {"user": {...}}
	var wrapper struct {
		User model.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.User, nil
}

// SubmitJob creates a packaging job.
func (c *Client) SubmitJob(ctx context.Context, req model.JobRequest) (*model.Job, error) {
	var job model.Job
	if err := c.Post(ctx, "/api/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob returns the current state of a job.
func (c *Client) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := c.Get(ctx, "/api/v1/jobs/"+url.PathEscape(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DownloadArtifact fetches the packaged output of a finished job.
func (c *Client) DownloadArtifact(ctx context.Context, id string) ([]byte, string, error) {
	return c.request(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id)+"/artifact", nil)
}
