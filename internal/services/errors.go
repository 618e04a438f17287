package services

import (
	"fmt"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// ValidationError rejects a malformed request before it reaches the scorer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SummonerNotFoundError means the profile upstream answered and the summoner
// does not exist. It is distinct from the mock fallback.
type SummonerNotFoundError struct {
	Summoner string
	Region   string
}

func (e *SummonerNotFoundError) Error() string {
	return fmt.Sprintf("summoner '%s' not found in %s", e.Summoner, e.Region)
}

// UpstreamUnavailableError means a fetch failed and nothing was cached for Key.
type UpstreamUnavailableError struct {
	Key        string
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream unavailable for %s: %v", e.Key, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// RecommendationUnavailableError means no stats could be obtained for the
// requested role at all.
type RecommendationUnavailableError struct {
	Role   string
	Region string
	Err    error
}

func (e *RecommendationUnavailableError) Error() string {
	return fmt.Sprintf("recommendations unavailable for %s in %s: %v", e.Role, e.Region, e.Err)
}

func (e *RecommendationUnavailableError) Unwrap() error { return e.Err }

// ChampionNotFoundError means a champion is absent from the requested tier list.
type ChampionNotFoundError struct {
	Champion string
	Role     models.Role
}

func (e *ChampionNotFoundError) Error() string {
	return fmt.Sprintf("champion '%s' is not in the %s tier list", e.Champion, e.Role)
}
