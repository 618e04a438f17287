package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

// BuildSource fetches a champion's item and skill order.
type BuildSource interface {
	Name() string
	FetchBuild(ctx context.Context, slug string, role models.Role, region string) (*models.Build, error)
}

// BuildService is the detail-view build lookup. It never fails: any error
// yields an empty build flagged Unavailable.
type BuildService struct {
	source   BuildSource
	cache    *cache.Snapshots[*models.Build]
	observer UpstreamObserver
}

func NewBuildService(source BuildSource, snapshots *cache.Snapshots[*models.Build], observer UpstreamObserver) *BuildService {
	return &BuildService{source: source, cache: snapshots, observer: observer}
}

func buildKey(slug string, role models.Role, region string) string {
	return "build:" + slug + ":" + string(role) + ":" + region
}

// GetBuild returns the build for slug in role and region. Spellings of the
// same champion ("Lee Sin", "leesin") share one cache entry.
func (s *BuildService) GetBuild(ctx context.Context, slug string, role models.Role, region string) *models.Build {
	slug = models.ChampionKey(slug)
	key := buildKey(slug, role, region)

	build, stale, err := s.cache.Get(ctx, key, func(fctx context.Context, _ string) (*models.Build, time.Time, error) {
		started := time.Now()
		b, err := s.source.FetchBuild(fctx, slug, role, region)
		if s.observer != nil {
			s.observer.ObserveUpstream(s.source.Name(), started, err)
		}
		if err != nil {
			return nil, time.Time{}, err
		}
		if b == nil || (len(b.CoreItems) == 0 && b.SkillOrder == "") {
			return nil, time.Time{}, fmt.Errorf("%s returned an empty build", s.source.Name())
		}
		return b, time.Time{}, nil
	})
	if err != nil {
		log.Printf("[WARN] Build for %s unavailable: %v", key, err)
		return &models.Build{Champion: slug, Role: role, CoreItems: []models.BuildItem{}, Unavailable: true}
	}
	if stale {
		log.Printf("[WARN] Serving stale build for %s", key)
	}
	return build
}
