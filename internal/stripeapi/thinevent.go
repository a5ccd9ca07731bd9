package stripeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ThinEvent is the full payload behind a thin webhook notification.
// Thin envelopes carry only the event id and type; the rest must be
// fetched with an authenticated follow-up call.
type ThinEvent struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Created       string            `json:"created"`
	RelatedObject ThinRelatedObject `json:"related_object"`
	Data          json.RawMessage   `json:"data"`
}

type ThinRelatedObject struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// FetchThinEvent retrieves the full event behind a thin envelope from
// the v2 events endpoint.
func (c *Client) FetchThinEvent(ctx context.Context, eventID string) (*ThinEvent, error) {
	url := fmt.Sprintf("%s/v2/core/events/%s", c.apiBase, eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build thin event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thin event: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read thin event: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch thin event: status %d: %s", resp.StatusCode, body)
	}

	var ev ThinEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode thin event: %w", err)
	}
	return &ev, nil
}
