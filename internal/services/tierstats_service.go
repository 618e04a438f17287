package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
	"golang.org/x/sync/errgroup"
)

// TierSource fetches one tier list from an upstream.
type TierSource interface {
	Name() string
	FetchTierList(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, error)
}

// SnapshotStore persists tier lists across restarts and replicas.
type SnapshotStore interface {
	Name() string
	LoadSnapshot(ctx context.Context, key models.TierKey) (*models.TierSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *models.TierSnapshot) error
}

// UpstreamObserver records upstream fetch outcomes.
type UpstreamObserver interface {
	ObserveUpstream(source string, started time.Time, err error)
}

// DefaultRetryAfter is the retry hint attached to UpstreamUnavailableError.
const DefaultRetryAfter = 30 * time.Second

const (
	storeTimeout       = 3 * time.Second
	upstreamRetryDelay = 250 * time.Millisecond
)

// TransientClassifier is implemented by sources that can tell a retryable
// failure from a permanent one.
type TransientClassifier interface {
	Transient(err error) bool
}

func isTransient(source interface{}, err error) bool {
	c, ok := source.(TransientClassifier)
	return ok && c.Transient(err)
}

type TierStatsService struct {
	source   TierSource
	store    SnapshotStore
	cache    *cache.Snapshots[[]models.ChampionStat]
	ttl      time.Duration
	observer UpstreamObserver
	now      func() time.Time
}

// TierStatsOption configures a TierStatsService.
type TierStatsOption func(*TierStatsService)

// WithSnapshotStore enables warm start and durable stale fallback.
func WithSnapshotStore(store SnapshotStore) TierStatsOption {
	return func(s *TierStatsService) { s.store = store }
}

func WithUpstreamObserver(obs UpstreamObserver) TierStatsOption {
	return func(s *TierStatsService) { s.observer = obs }
}

// WithTierClock replaces time.Now when judging stored snapshot age.
func WithTierClock(now func() time.Time) TierStatsOption {
	return func(s *TierStatsService) { s.now = now }
}

func NewTierStatsService(source TierSource, snapshots *cache.Snapshots[[]models.ChampionStat], ttl time.Duration, opts ...TierStatsOption) *TierStatsService {
	s := &TierStatsService{
		source: source,
		cache:  snapshots,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the tier list for (region, tier, role). stale reports that the
// list is past its TTL because the last refresh failed. The returned slice is
// shared with other readers and must not be modified.
func (s *TierStatsService) Get(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, bool, error) {
	key := models.TierKey{Region: region, Tier: tier, Role: role}

	stats, stale, err := s.cache.Get(ctx, key.String(), func(fctx context.Context, _ string) ([]models.ChampionStat, time.Time, error) {
		return s.load(fctx, key)
	})
	if err != nil {
		var unavailable *cache.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, false, &UpstreamUnavailableError{Key: key.String(), RetryAfter: DefaultRetryAfter, Err: unavailable.Err}
		}
		return nil, false, err
	}

	if stale {
		log.Printf("[WARN] serving stale tier list for %s", key)
	}
	return stats, stale, nil
}

// load runs inside the cache's single flight for key.
func (s *TierStatsService) load(ctx context.Context, key models.TierKey) ([]models.ChampionStat, time.Time, error) {
	persisted := s.loadPersisted(ctx, key)
	if persisted != nil && s.now().Sub(persisted.FetchedAt) < s.ttl {
		log.Printf("[CACHE HIT] %s from %s snapshot (%s old)", key, s.storeName(), s.now().Sub(persisted.FetchedAt).Round(time.Second))
		return persisted.Stats, persisted.FetchedAt, nil
	}

	log.Printf("[CACHE MISS] %s, fetching from %s", key, s.source.Name())
	raw, err := s.fetch(ctx, key)

	if err == nil && len(raw) == 0 {
		err = fmt.Errorf("%s returned an empty tier list", s.source.Name())
	}
	if err != nil {
		log.Printf("[ERROR] %s tier list fetch for %s failed: %v", s.source.Name(), key, err)
		// An expired persisted snapshot still beats nothing, or an older
		// in-memory payload.
		if persisted != nil && len(persisted.Stats) > 0 {
			if entry, _ := s.cache.Peek(key.String()); entry == nil || entry.FetchedAt.Before(persisted.FetchedAt) {
				log.Printf("[WARN] falling back to persisted snapshot for %s from %s", key, persisted.FetchedAt.Format(time.RFC3339))
				return persisted.Stats, persisted.FetchedAt, nil
			}
		}
		return nil, time.Time{}, err
	}

	stats := NormalizeRanks(raw)
	fetchedAt := s.now()
	s.savePersisted(ctx, &models.TierSnapshot{
		Region:    key.Region,
		Tier:      key.Tier,
		Role:      key.Role,
		Stats:     stats,
		FetchedAt: fetchedAt,
	})
	return stats, fetchedAt, nil
}

// fetch calls the source, retrying once when it reports the failure as transient.
func (s *TierStatsService) fetch(ctx context.Context, key models.TierKey) ([]models.ChampionStat, error) {
	raw, err := s.fetchOnce(ctx, key)
	if err == nil || !isTransient(s.source, err) || ctx.Err() != nil {
		return raw, err
	}

	log.Printf("[WARN] %s tier list fetch for %s failed (%v), retrying once", s.source.Name(), key, err)
	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(upstreamRetryDelay):
	}
	return s.fetchOnce(ctx, key)
}

func (s *TierStatsService) fetchOnce(ctx context.Context, key models.TierKey) ([]models.ChampionStat, error) {
	started := time.Now()
	raw, err := s.source.FetchTierList(ctx, key.Region, key.Tier, key.Role)
	if s.observer != nil {
		s.observer.ObserveUpstream(s.source.Name(), started, err)
	}
	return raw, err
}

func (s *TierStatsService) loadPersisted(ctx context.Context, key models.TierKey) *models.TierSnapshot {
	if s.store == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	snap, err := s.store.LoadSnapshot(lctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("[WARN] %s snapshot load for %s failed: %v", s.store.Name(), key, err)
		}
		return nil
	}
	if snap == nil || len(snap.Stats) == 0 {
		return nil
	}
	return snap
}

func (s *TierStatsService) savePersisted(ctx context.Context, snap *models.TierSnapshot) {
	if s.store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.store.SaveSnapshot(sctx, snap); err != nil {
		log.Printf("[WARN] %s snapshot save for %s/%s/%s failed: %v", s.store.Name(), snap.Region, snap.Tier, snap.Role, err)
	}
}

func (s *TierStatsService) storeName() string {
	if s.store == nil {
		return "none"
	}
	return s.store.Name()
}

// Warm prefetches every role for one region and tier. Failures are logged.
func (s *TierStatsService) Warm(ctx context.Context, region, tier string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, role := range models.Roles {
		role := role
		g.Go(func() error {
			if _, _, err := s.Get(gctx, region, tier, role); err != nil {
				log.Printf("[WARN] warm-up of %s/%s/%s failed: %v", region, tier, role, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// State reports the cache state of one key, for health output.
func (s *TierStatsService) State(region, tier string, role models.Role) cache.State {
	_, state := s.cache.Peek(models.TierKey{Region: region, Tier: tier, Role: role}.String())
	return state
}

// CachedKeys reports how many tier lists are held in memory.
func (s *TierStatsService) CachedKeys() int {
	return s.cache.Len()
}

// NormalizeRanks returns a copy of stats ordered by upstream rank with names
// deduplicated and ranks rewritten to the dense ordinal 1..N.
func NormalizeRanks(stats []models.ChampionStat) []models.ChampionStat {
	type indexed struct {
		stat  models.ChampionStat
		order int
	}

	rows := make([]indexed, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for i, st := range stats {
		k := models.ChampionKey(st.Name)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		rows = append(rows, indexed{stat: st, order: i})
	}

	// Unranked rows (rank <= 0) go last in upstream order.
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].stat.Rank, rows[j].stat.Rank
		if (ri > 0) != (rj > 0) {
			return ri > 0
		}
		if ri != rj {
			return ri < rj
		}
		return rows[i].order < rows[j].order
	})

	out := make([]models.ChampionStat, len(rows))
	for i, r := range rows {
		st := r.stat
		st.Rank = i + 1
		if st.Counters == nil {
			st.Counters = []string{}
		} else {
			st.Counters = append([]string(nil), st.Counters...)
		}
		out[i] = st
	}
	return out
}

// ChainStore reads from the first store that has a snapshot and writes to all.
type ChainStore []SnapshotStore

func (c ChainStore) Name() string {
	name := ""
	for i, s := range c {
		if i > 0 {
			name += "+"
		}
		name += s.Name()
	}
	return name
}

func (c ChainStore) LoadSnapshot(ctx context.Context, key models.TierKey) (*models.TierSnapshot, error) {
	var best *models.TierSnapshot
	for _, s := range c {
		snap, err := s.LoadSnapshot(ctx, key)
		if err != nil {
			if !errors.Is(err, cache.ErrMiss) {
				log.Printf("[WARN] %s snapshot load for %s failed: %v", s.Name(), key, err)
			}
			continue
		}
		if snap != nil && (best == nil || snap.FetchedAt.After(best.FetchedAt)) {
			best = snap
		}
	}
	if best == nil {
		return nil, cache.ErrMiss
	}
	return best, nil
}

func (c ChainStore) SaveSnapshot(ctx context.Context, snap *models.TierSnapshot) error {
	var errs []error
	for _, s := range c {
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
