// Package adapty is a thin client for the mobile in-app-purchase
// provider's profile API. It is the second entitlement source next to
// the payment provider's webhooks.
package adapty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PremiumAccessLevel is the named access level that grants paid tier.
const PremiumAccessLevel = "premium"

const defaultBaseURL = "https://api.adapty.io/api/v1"

// ErrUnavailable marks transport failures to the provider.
var ErrUnavailable = errors.New("mobile subscription provider unavailable")

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(u string) Option {
	return func(cl *Client) {
		cl.baseURL = u
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// AccessLevel is one named entitlement grant on a profile.
type AccessLevel struct {
	IsActive   bool       `json:"is_active"`
	IsLifetime bool       `json:"is_lifetime"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// Profile is the subset of the provider profile the sync needs.
type Profile struct {
	AccessLevels map[string]AccessLevel `json:"access_levels"`
}

type profileResponse struct {
	Data Profile `json:"data"`
}

// GetProfile fetches the mobile subscription profile for a person.
func (c *Client) GetProfile(ctx context.Context, personID int64) (*Profile, error) {
	url := fmt.Sprintf("%s/sdk/profiles/%d/", c.baseURL, personID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get profile: status %d: %s", resp.StatusCode, body)
	}

	var pr profileResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &pr.Data, nil
}

// Premium returns the premium access level and whether it grants access.
func (p *Profile) Premium() (AccessLevel, bool) {
	lvl, ok := p.AccessLevels[PremiumAccessLevel]
	if !ok {
		return AccessLevel{}, false
	}
	return lvl, lvl.IsActive
}
