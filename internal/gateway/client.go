// Package gateway reads tier lists and builds from a GraphQL stats gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/yourusername/draftforme-backend/internal/models"
)

// ChampionNotFoundError indicates the gateway has no build for a champion.
type ChampionNotFoundError struct {
	Slug string
	Role models.Role
}

func (e *ChampionNotFoundError) Error() string {
	return fmt.Sprintf("no build for champion '%s' in role %s", e.Slug, e.Role)
}

// statusPattern matches machinebox/graphql's non-200 error text.
var statusPattern = regexp.MustCompile(`non-200 status code: (\d{3})`)

type Client struct {
	gqlClient *graphql.Client
	apiKey    string
}

func NewClient(endpoint, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		gqlClient: graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		apiKey:    apiKey,
	}
}

func (c *Client) Name() string { return "gateway" }

// Transient reports whether a failed fetch is worth retrying.
func (c *Client) Transient(err error) bool { return IsTransient(err) }

func (c *Client) newRequest(query string) *graphql.Request {
	req := graphql.NewRequest(query)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req
}

const tierListQuery = `
	query($region: String!, $tier: String!, $role: String!) {
		tierList(region: $region, tier: $tier, role: $role) {
			champions {
				name
				slug
				rank
				winRate
				pickRate
				banRate
				kda
				cs
				gold
				games
				counters
			}
		}
	}
`

// FetchTierList returns the gateway's champion table for one key.
func (c *Client) FetchTierList(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, error) {
	req := c.newRequest(tierListQuery)
	req.Var("region", region)
	req.Var("tier", tier)
	req.Var("role", string(role))

	var resp struct {
		TierList struct {
			Champions []struct {
				Name     string   `json:"name"`
				Slug     string   `json:"slug"`
				Rank     int      `json:"rank"`
				WinRate  float64  `json:"winRate"`
				PickRate float64  `json:"pickRate"`
				BanRate  float64  `json:"banRate"`
				KDA      float64  `json:"kda"`
				CS       float64  `json:"cs"`
				Gold     float64  `json:"gold"`
				Games    int      `json:"games"`
				Counters []string `json:"counters"`
			} `json:"champions"`
		} `json:"tierList"`
	}

	if err := c.gqlClient.Run(ctx, req, &resp); err != nil {
		log.Printf("[ERROR] gateway tierList %s/%s/%s: %v", region, tier, role, err)
		return nil, fmt.Errorf("failed to fetch tier list: %w", err)
	}

	stats := make([]models.ChampionStat, 0, len(resp.TierList.Champions))
	for _, ch := range resp.TierList.Champions {
		if ch.Name == "" {
			continue
		}
		slug := ch.Slug
		if slug == "" {
			slug = models.ChampionKey(ch.Name)
		}
		counters := ch.Counters
		if counters == nil {
			counters = []string{}
		}
		stats = append(stats, models.ChampionStat{
			Name:        ch.Name,
			Slug:        slug,
			Role:        role,
			WinRate:     ch.WinRate,
			PickRate:    ch.PickRate,
			BanRate:     ch.BanRate,
			KDA:         ch.KDA,
			CS:          ch.CS,
			Gold:        ch.Gold,
			GamesPlayed: ch.Games,
			Rank:        ch.Rank,
			Counters:    counters,
		})
	}

	log.Printf("[UPSTREAM] gateway tier list %s/%s/%s: %d champions", region, tier, role, len(stats))
	return stats, nil
}

const buildQuery = `
	query($slug: String!, $role: String!, $region: String!) {
		championBuild(slug: $slug, role: $role, region: $region) {
			coreItems {
				id
				name
				image
			}
			skillOrder
		}
	}
`

// FetchBuild returns the gateway's recommended build.
func (c *Client) FetchBuild(ctx context.Context, slug string, role models.Role, region string) (*models.Build, error) {
	req := c.newRequest(buildQuery)
	req.Var("slug", slug)
	req.Var("role", string(role))
	req.Var("region", region)

	var resp struct {
		ChampionBuild *struct {
			CoreItems []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Image string `json:"image"`
			} `json:"coreItems"`
			SkillOrder string `json:"skillOrder"`
		} `json:"championBuild"`
	}

	if err := c.gqlClient.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch build: %w", err)
	}
	if resp.ChampionBuild == nil {
		return nil, &ChampionNotFoundError{Slug: slug, Role: role}
	}

	build := &models.Build{
		Champion:   slug,
		Role:       role,
		CoreItems:  make([]models.BuildItem, 0, len(resp.ChampionBuild.CoreItems)),
		SkillOrder: resp.ChampionBuild.SkillOrder,
	}
	for _, item := range resp.ChampionBuild.CoreItems {
		build.CoreItems = append(build.CoreItems, models.BuildItem{ID: item.ID, Name: item.Name, Image: item.Image})
	}
	return build, nil
}

// IsTransient reports whether a gateway error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var notFound *ChampionNotFoundError
	if errors.As(err, &notFound) {
		return false
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code >= 500 || code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "connection refused")
}
