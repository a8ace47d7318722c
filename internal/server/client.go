package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samhoang/modhub/internal/ingest"
)

// Client talks to a running modhub serve instance
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API at addr (host:port or URL)
func NewClient(addr string) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping reports whether a server answers on the health endpoint
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SubmitLink hands a deep link to the server. A nil install with a nil
// error means the server dropped it as a duplicate.
func (c *Client) SubmitLink(ctx context.Context, link string) (*ingest.PendingInstall, error) {
	body, err := json.Marshal(linkRequest{Link: link})
	if err != nil {
		return nil, err
	}

	var out linkResponse
	if err := c.do(ctx, "POST", "/api/v1/links", body, &out); err != nil {
		return nil, err
	}
	return out.Install, nil
}

// Confirm starts the pipeline for id on the server
func (c *Client) Confirm(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/api/v1/installs/"+id+"/confirm", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
