// Package ddragon fetches static champion data from Riot's Data Dragon CDN.
package ddragon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
)

const DefaultBaseURL = "https://ddragon.leagueoflegends.com"

type versionsResponse []string

type championsResponse struct {
	Version string              `json:"version"`
	Data    map[string]champion `json:"data"`
}

type champion struct {
	ID    string   `json:"id"`
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Image struct {
		Full string `json:"full"`
	} `json:"image"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// LatestVersion returns the newest patch listed by Data Dragon.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	var versions versionsResponse
	if err := c.getJSON(ctx, c.baseURL+"/api/versions.json", &versions); err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no versions available")
	}
	return versions[0], nil
}

// Champions returns display name → static entry for the latest patch.
func (c *Client) Champions(ctx context.Context) (map[string]models.StaticChampion, error) {
	version, err := c.LatestVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	var resp championsResponse
	u := fmt.Sprintf("%s/cdn/%s/data/en_US/champion.json", c.baseURL, version)
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch champions: %w", err)
	}

	out := make(map[string]models.StaticChampion, len(resp.Data))
	for _, ch := range resp.Data {
		tags := ch.Tags
		if tags == nil {
			tags = []string{}
		}
		out[ch.Name] = models.StaticChampion{
			ID:    ch.ID,
			Key:   ch.Key,
			Image: fmt.Sprintf("%s/cdn/%s/img/champion/%s", c.baseURL, version, ch.Image.Full),
			Tags:  tags,
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data dragon returned %d for %s", resp.StatusCode, u)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
