// Package client is a thin HTTP client for the coalmine API: a single Call
// method takes the command name from spec.md §6's endpoint table and its
// query parameters.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a coalmine server over HTTP.
type Client struct {
	baseURL string
	authKey string
	http    *http.Client
}

// New constructs a Client targeting host:port.
func New(host string, port int, authKey string) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d/coal-mine/v1/canary/", host, port),
		authKey: authKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Response is the decoded envelope every endpoint returns.
type Response struct {
	Status string         `json:"status"`
	Error  string         `json:"error"`
	Canary map[string]any `json:"canary"`
	// Canaries covers the list response's abbreviated or verbose rendering.
	Canaries []map[string]any `json:"canaries"`

	Recovered bool `json:"recovered"`
	Unpaused  bool `json:"unpaused"`
}

// Call issues a GET against command with the given query parameters,
// attaching auth_key automatically.
func (c *Client) Call(command string, query url.Values) (*Response, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.authKey != "" {
		query.Set("auth_key", c.authKey)
	}
	u := c.baseURL + command + "?" + query.Encode()

	resp, err := c.http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", command, err)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", command, err)
	}
	if parsed.Status == "error" {
		return &parsed, fmt.Errorf("%s: %s", command, parsed.Error)
	}
	return &parsed, nil
}
