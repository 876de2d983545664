package shuttle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"tt-commander/types"
)

const indexFields = "title,repo,address,macro,clock_hz"

// Client fetches shuttle metadata from the Tiny Tapeout index.
type Client struct {
	IndexURL string
	HTTP     *http.Client
}

// NewClient returns a client for indexURL with a bounded request time.
func NewClient(indexURL string) *Client {
	return &Client{
		IndexURL: strings.TrimRight(indexURL, "/"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type index struct {
	Projects []types.Project `json:"projects"`
}

// Load returns the projects of shuttle id sorted by title.
func (c *Client) Load(ctx context.Context, id string) ([]types.Project, error) {
	endpoint := fmt.Sprintf("%s/%s.json?fields=%s", c.IndexURL, url.PathEscape(id), indexFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch shuttle %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch shuttle %s: %s", id, resp.Status)
	}

	var idx index
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("decode shuttle %s: %w", id, err)
	}
	sort.SliceStable(idx.Projects, func(i, j int) bool {
		return strings.ToLower(idx.Projects[i].Title) < strings.ToLower(idx.Projects[j].Title)
	})
	return idx.Projects, nil
}
