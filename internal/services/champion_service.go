package services

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

// StaticSource lists every champion keyed by display name.
type StaticSource interface {
	Champions(ctx context.Context) (map[string]models.StaticChampion, error)
}

const staticKey = "ddragon:champions"

// ChampionService caches the static champion catalogue.
type ChampionService struct {
	source StaticSource
	cache  *cache.Snapshots[map[string]models.StaticChampion]
}

func NewChampionService(source StaticSource, snapshots *cache.Snapshots[map[string]models.StaticChampion]) *ChampionService {
	return &ChampionService{source: source, cache: snapshots}
}

// Champions returns the catalogue; the map is shared and must not be modified.
func (s *ChampionService) Champions(ctx context.Context) (map[string]models.StaticChampion, bool, error) {
	champs, stale, err := s.cache.Get(ctx, staticKey, func(fctx context.Context, _ string) (map[string]models.StaticChampion, time.Time, error) {
		m, err := s.source.Champions(fctx)
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(m) == 0 {
			return nil, time.Time{}, errors.New("data dragon returned no champions")
		}
		return m, time.Time{}, nil
	})
	if err != nil {
		var unavailable *cache.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, false, &UpstreamUnavailableError{Key: staticKey, RetryAfter: DefaultRetryAfter, Err: unavailable.Err}
		}
		return nil, false, err
	}
	return champs, stale, nil
}
