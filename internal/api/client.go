// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/OCAP2/datamaps/internal/config"
)

// ErrTransient marks failures worth retrying: transport errors, 5xx responses
// and unreadable bodies.
var ErrTransient = errors.New("transient backend failure")

// APIError is an error reported in the response body. It is never retried.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	if e.Info == "" {
		return "api error: " + e.Code
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// Query selects the marker set to fetch
type Query struct {
	Page    string
	Version string
	Filter  []string
}

// Chunk is one space-separated layer list with its raw instance tuples
type Chunk struct {
	Key    string
	Tuples []json.RawMessage
}

// Payload holds the chunks of a marker set in the order the backend sent
// them
type Payload []Chunk

// UnmarshalJSON decodes the markers object key by key so the backend's
// ordering survives
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("markers: expected an object, got %v", tok)
	}

	out := Payload{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("markers: expected a layer list, got %v", tok)
		}
		var tuples []json.RawMessage
		if err := dec.Decode(&tuples); err != nil {
			return fmt.Errorf("markers %q: %w", key, err)
		}
		out = append(out, Chunk{Key: key, Tuples: tuples})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// Tuples returns the tuples under key, or nil
func (p Payload) Tuples(key string) []json.RawMessage {
	for _, c := range p {
		if c.Key == key {
			return c.Tuples
		}
	}
	return nil
}

// Count returns the number of tuples in the payload
func (p Payload) Count() int {
	n := 0
	for _, c := range p {
		n += len(c.Tuples)
	}
	return n
}

// Fetcher retrieves marker payloads
type Fetcher interface {
	QueryMarkers(ctx context.Context, q Query) (Payload, error)
}

type response struct {
	Error *APIError `json:"error"`
	Query struct {
		Markers Payload `json:"markers"`
	} `json:"query"`
}

// Client talks to the wiki API that serves marker data.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(cfg config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// QueryURL builds the request URL for q
func (c *Client) QueryURL(q Query) string {
	v := url.Values{}
	v.Set("action", "queryDataMap")
	v.Set("title", q.Page)
	if q.Version != "" {
		v.Set("revid", q.Version)
	}
	if len(q.Filter) > 0 {
		v.Set("filter", strings.Join(q.Filter, "|"))
	}
	v.Set("format", "json")
	return c.baseURL + "/api.php?" + v.Encode()
}

// QueryMarkers performs one request for the marker set of a page.
func (c *Client) QueryMarkers(ctx context.Context, q Query) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.QueryURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: query request failed: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: query returned status %d", ErrTransient, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("query returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decoding response: %v", ErrTransient, err)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query returned status %d", resp.StatusCode)
	}
	if r.Query.Markers == nil {
		return Payload{}, nil
	}
	return r.Query.Markers, nil
}

// Healthcheck checks if the API endpoint is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api.php", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}
