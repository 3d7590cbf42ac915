package discovery

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
)

// RegistryClient talks to the flip registry service, which maps server names
// to public addresses.
type RegistryClient struct {
	endpoint string
	client   *http.Client
}

// NewRegistryClient creates a new client with a default timeout.
func NewRegistryClient(endpoint string) *RegistryClient {
	return &RegistryClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RegistryItem represents the data structure stored/retrieved.
type RegistryItem struct {
	Name      string `json:"name"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Addr is the dialable ip:port.
func (i *RegistryItem) Addr() string {
	return fmt.Sprintf("%s:%d", i.IP, i.Port)
}

// Register publishes this server. An empty ip lets the registry use the
// request's source address.
func (c *RegistryClient) Register(ctx context.Context, item RegistryItem) error {
	if err := ValidateName(item.Name); err != nil {
		return err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("register request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

// Lookup finds a server by name.
func (c *RegistryClient) Lookup(ctx context.Context, name string) (*RegistryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/lookup/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w in registry: %q", ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("lookup failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var item RegistryItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return &item, nil
}
