// internal/track/client.go
//
// HTTP client for a remote track store exposing /api/tracks.
//
// Context
//   Lets the form run against another ingenius instance (or any service
//   speaking the same contract) instead of a local database.  The contract:
//
//     POST /api/tracks   Record JSON  → 201 Track JSON
//                                      → 4xx {"errors": ["..."]}
//     GET  /api/tracks/7              → 200 Track JSON | 404
//
//   A 4xx with a non-empty errors list is a RejectedError.  Every other
//   non-success response is an unstructured failure.
//
// Notes
//   •  The acting user id travels in X-Ingenius-User; the server trusts it
//      only alongside a valid bearer token.
//
//------------------------------------------------------------------------------

package track

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/ingenius/internal/auth"
)

// HeaderActingUser names the header carrying the acting user id.
const HeaderActingUser = "X-Ingenius-User"

const maxErrorBody = 64 << 10

// Client implements Store over HTTP.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

// NewClient targets baseURL (scheme://host[:port]).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		hc:    &http.Client{Timeout: timeout},
	}
}

// Create posts rec to the remote store.
func (c *Client) Create(ctx context.Context, rec Record) (*Track, error) {
	defer observe("http", "create", time.Now())

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/tracks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		var t Track
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return nil, fmt.Errorf("track: decode created: %w", err)
		}
		return &t, nil
	}
	return nil, responseError(resp)
}

// Get fetches one track.
func (c *Client) Get(ctx context.Context, id int64) (*Track, error) {
	defer observe("http", "get", time.Now())

	req, err := c.newRequest(ctx, http.MethodGet, "/api/tracks/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track: get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var t Track
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return nil, fmt.Errorf("track: decode: %w", err)
		}
		return &t, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	}
	return nil, responseError(resp)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if uid, ok := auth.UserID(ctx); ok {
		req.Header.Set(HeaderActingUser, strconv.FormatInt(uid, 10))
	}
	return req, nil
}

// responseError converts a non-success response into a RejectedError when
// it is a client error carrying messages, or a plain error otherwise.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var payload struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(raw, &payload) == nil && len(payload.Errors) > 0 {
			return &RejectedError{Messages: payload.Errors}
		}
	}
	return fmt.Errorf("track: unexpected status %d", resp.StatusCode)
}
