package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/draftforme-backend/internal/draft"
	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/internal/services"
)

// HealthChecker is a backing store that can report reachability.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) bool
}

type Handler struct {
	tierStats   *services.TierStatsService
	matchups    *services.MatchupService
	recommender *services.RecommendationService
	players     *services.PlayerService
	builds      *services.BuildService
	champions   *services.ChampionService
	draft       *draft.Server
	checks      []HealthChecker

	defaultRegion string
	defaultTier   string
}

// Deps are the services the HTTP layer routes to.
type Deps struct {
	TierStats     *services.TierStatsService
	Matchups      *services.MatchupService
	Recommender   *services.RecommendationService
	Players       *services.PlayerService
	Builds        *services.BuildService
	Champions     *services.ChampionService
	Draft         *draft.Server
	Checks        []HealthChecker
	DefaultRegion string
	DefaultTier   string
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		tierStats:     d.TierStats,
		matchups:      d.Matchups,
		recommender:   d.Recommender,
		players:       d.Players,
		builds:        d.Builds,
		champions:     d.Champions,
		draft:         d.Draft,
		checks:        d.Checks,
		defaultRegion: d.DefaultRegion,
		defaultTier:   d.DefaultTier,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	stores := gin.H{}
	for _, check := range h.checks {
		ok := check.HealthCheck(ctx)
		stores[check.Name()] = ok
		if !ok {
			status = "degraded"
		}
	}

	roles := gin.H{}
	for _, role := range models.Roles {
		roles[string(role)] = h.tierStats.State(h.defaultRegion, h.defaultTier, role).String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"stores":      stores,
		"cached_keys": h.tierStats.CachedKeys(),
		"default_key": gin.H{"region": h.defaultRegion, "tier": h.defaultTier, "roles": roles},
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

// GetOptions lists the accepted regions, tiers and roles.
func (h *Handler) GetOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"regions":        models.Regions,
		"tiers":          models.Tiers,
		"roles":          models.Roles,
		"default_region": h.defaultRegion,
		"default_tier":   h.defaultTier,
	})
}

// statsKey reads and validates region, tier and role from the query string.
func (h *Handler) statsKey(c *gin.Context, roleRequired bool) (string, string, models.Role, error) {
	region := strings.ToLower(c.DefaultQuery("region", h.defaultRegion))
	if !models.ValidRegion(region) {
		return "", "", "", &services.ValidationError{Field: "region", Reason: fmt.Sprintf("unknown region '%s'", region)}
	}
	tier := strings.ToLower(c.DefaultQuery("tier", h.defaultTier))
	if !models.ValidTier(tier) {
		return "", "", "", &services.ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier '%s'", tier)}
	}

	raw := c.Query("role")
	if raw == "" && !roleRequired {
		return region, tier, models.RoleMid, nil
	}
	role, ok := models.ParseRole(raw)
	if !ok {
		return "", "", "", &services.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role '%s'", raw)}
	}
	return region, tier, role, nil
}

func (h *Handler) GetChampionStats(c *gin.Context) {
	start := time.Now()
	region, tier, role, err := h.statsKey(c, true)
	if err != nil {
		writeError(c, err)
		return
	}

	stats, stale, err := h.tierStats.Get(c.Request.Context(), region, tier, role)
	if err != nil {
		log.Printf("[ERROR] Champion stats for %s/%s/%s failed: %v", region, tier, role, err)
		writeError(c, err)
		return
	}

	markStale(c, stale)
	log.Printf("[INFO] GetChampionStats %s/%s/%s took %v", region, tier, role, time.Since(start))
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetMatchups(c *gin.Context) {
	region, tier, role, err := h.statsKey(c, true)
	if err != nil {
		writeError(c, err)
		return
	}

	m, stale, err := h.matchups.Matchups(c.Request.Context(), c.Param("champion"), region, tier, role)
	if err != nil {
		writeError(c, err)
		return
	}
	markStale(c, stale)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetPlayer(c *gin.Context) {
	summoner := c.Query("summoner")
	region := c.DefaultQuery("region", h.defaultRegion)

	profile, err := h.players.Resolve(c.Request.Context(), summoner, region)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// recommendRequest shadows priority so an omitted field can be told apart
// from an explicit 0.
type recommendRequest struct {
	models.DraftState
	Priority *int `json:"priority"`
	TopN     *int `json:"top_n"`
}

func (h *Handler) Recommend(c *gin.Context) {
	start := time.Now()

	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &services.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	req.PriorityWeight = services.DefaultPriority
	if req.Priority != nil {
		req.PriorityWeight = *req.Priority
	}
	topN := services.DefaultTopN
	if req.TopN != nil {
		topN = *req.TopN
	}
	if topN < 0 || topN > services.MaxTopN {
		writeError(c, &services.ValidationError{Field: "top_n", Reason: fmt.Sprintf("must be between 0 and %d", services.MaxTopN)})
		return
	}
	if err := h.recommender.Normalize(&req.DraftState); err != nil {
		writeError(c, err)
		return
	}

	recs, err := h.recommender.Recommend(c.Request.Context(), req.DraftState, topN)
	if err != nil {
		log.Printf("[ERROR] Recommendation for %s/%s failed: %v", req.Region, req.Role, err)
		writeError(c, err)
		return
	}

	log.Printf("[INFO] Recommend %s/%s (%d enemies, priority %d) took %v",
		req.Region, req.Role, len(req.EnemyPicks), req.PriorityWeight, time.Since(start))
	c.JSON(http.StatusOK, recs)
}

func (h *Handler) GetBuild(c *gin.Context) {
	slug := c.Param("slug")
	if models.ChampionKey(slug) == "" {
		writeError(c, &services.ValidationError{Field: "slug", Reason: "champion slug is required"})
		return
	}
	region, _, role, err := h.statsKey(c, false)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.builds.GetBuild(c.Request.Context(), slug, role, region))
}

func (h *Handler) GetDDragon(c *gin.Context) {
	champs, stale, err := h.champions.Champions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	markStale(c, stale)
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, champs)
}

func (h *Handler) DraftSocket(c *gin.Context) {
	h.draft.ServeWS(c.Writer, c.Request)
}

func markStale(c *gin.Context, stale bool) {
	if stale {
		c.Header("X-Cache-Stale", "true")
	}
}

// writeError maps service errors to status codes and a JSON body.
func writeError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   validationErr.Error(),
			"field":   validationErr.Field,
			"message": validationErr.Reason,
		})
		return
	}

	var notFound *services.SummonerNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    notFound.Error(),
			"summoner": notFound.Summoner,
			"region":   notFound.Region,
			"message":  "Summoner not found. Check the Riot ID (Name#TAG) and region.",
		})
		return
	}

	var championErr *services.ChampionNotFoundError
	if errors.As(err, &championErr) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    championErr.Error(),
			"champion": championErr.Champion,
			"role":     championErr.Role,
		})
		return
	}

	var recErr *services.RecommendationUnavailableError
	if errors.As(err, &recErr) {
		retry := retryAfter(err)
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":       recErr.Error(),
			"message":     fmt.Sprintf("No champion stats are available for %s in %s right now.", recErr.Role, recErr.Region),
			"retry_after": retry.String(),
		})
		return
	}

	var upstreamErr *services.UpstreamUnavailableError
	if errors.As(err, &upstreamErr) {
		retry := retryAfter(err)
		c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":       upstreamErr.Error(),
			"message":     "The stats provider is unavailable and nothing is cached yet.",
			"retry_after": retry.String(),
		})
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":   "Request timeout",
			"message": "The request took too long to complete. Try again later.",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func retryAfter(err error) time.Duration {
	var upstreamErr *services.UpstreamUnavailableError
	if errors.As(err, &upstreamErr) && upstreamErr.RetryAfter > 0 {
		return upstreamErr.RetryAfter
	}
	return services.DefaultRetryAfter
}
