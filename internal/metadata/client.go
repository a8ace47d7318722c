package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ModInfo is the subset of the remote mod record the pipeline uses
type ModInfo struct {
	Name       string
	Author     string
	Version    string
	Category   string
	PreviewURL string
}

// Client reads mod records from the remote metadata API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an API client. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// Get fetches the record for one external mod id
func (c *Client) Get(ctx context.Context, id string) (*ModInfo, error) {
	u := fmt.Sprintf("%s/mods/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata get %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata get %s: status %d", id, resp.StatusCode)
	}

	var result struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Submitter struct {
			Name string `json:"name"`
		} `json:"submitter"`
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
		Preview struct {
			BaseURL string `json:"base_url"`
			File    string `json:"file"`
		} `json:"preview"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("metadata get %s: decode: %w", id, err)
	}

	info := &ModInfo{
		Name:     strings.TrimSpace(result.Name),
		Author:   strings.TrimSpace(result.Submitter.Name),
		Version:  strings.TrimSpace(result.Version),
		Category: strings.TrimSpace(result.Category.Name),
	}
	if result.Preview.BaseURL != "" && result.Preview.File != "" {
		info.PreviewURL = result.Preview.BaseURL + result.Preview.File
	}
	return info, nil
}

// Fetch downloads rawURL to dst, writing through a temp file in dst's directory
func (c *Client) Fetch(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".fetch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
