package opgg

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// positions maps roles to op.gg position query values.
var positions = map[models.Role]string{
	models.RoleTop:     "top",
	models.RoleJungle:  "jungle",
	models.RoleMid:     "mid",
	models.RoleADC:     "adc",
	models.RoleSupport: "support",
}

// ErrEmptyTierList is returned when a page parsed without any champion rows,
// which usually means op.gg served a client-rendered shell.
var ErrEmptyTierList = errors.New("tier list page contained no champions")

// Client reads tier lists and builds from op.gg pages.
type Client struct {
	baseURL  string
	renderer Renderer
}

func NewClient(baseURL string, renderer Renderer) *Client {
	if renderer == nil {
		renderer = NewHTTPRenderer(nil)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		renderer: renderer,
	}
}

func (c *Client) Name() string { return "opgg" }

// Transient reports whether a failed fetch is worth retrying.
func (c *Client) Transient(err error) bool { return IsTransient(err) }

// FetchTierList returns the champions table for one region, tier and role.
func (c *Client) FetchTierList(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, error) {
	position, ok := positions[role]
	if !ok {
		return nil, fmt.Errorf("unsupported role %q", role)
	}

	params := url.Values{}
	params.Set("position", position)
	params.Set("region", region)
	params.Set("tier", tier)
	pageURL := c.baseURL + "/lol/champions?" + params.Encode()

	html, err := c.renderer.Render(ctx, pageURL, "table tr a[href*='/build']")
	if err != nil {
		return nil, err
	}

	doc, err := ParseHTML(html)
	if err != nil {
		return nil, err
	}

	stats := ParseTierList(doc, role)
	if len(stats) == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrEmptyTierList)
	}

	log.Printf("[UPSTREAM] op.gg tier list %s/%s/%s: %d champions", region, tier, role, len(stats))
	return stats, nil
}

// FetchBuild returns the recommended core items and skill order.
func (c *Client) FetchBuild(ctx context.Context, slug string, role models.Role, region string) (*models.Build, error) {
	position, ok := positions[role]
	if !ok {
		return nil, fmt.Errorf("unsupported role %q", role)
	}

	slug = models.ChampionKey(slug)
	pageURL := fmt.Sprintf("%s/lol/champions/%s/build/%s?region=%s",
		c.baseURL, url.PathEscape(slug), position, url.QueryEscape(region))

	html, err := c.renderer.Render(ctx, pageURL, "img[src*='item']")
	if err != nil {
		return nil, err
	}

	doc, err := ParseHTML(html)
	if err != nil {
		return nil, err
	}

	build := ParseBuild(doc, slug, role)
	if len(build.CoreItems) == 0 {
		return nil, fmt.Errorf("no items found on %s", pageURL)
	}
	return build, nil
}

// IsTransient reports whether retrying the same request may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
