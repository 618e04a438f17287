package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

// fakeSource counts upstream calls and can block until released.
type fakeSource struct {
	mu    sync.Mutex
	stats []models.ChampionStat
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchTierList(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.ChampionStat(nil), f.stats...), nil
}

func (f *fakeSource) set(stats []models.ChampionStat, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats, f.err = stats, err
}

// memStore is an in-memory SnapshotStore.
type memStore struct {
	name    string
	mu      sync.Mutex
	snaps   map[string]*models.TierSnapshot
	saveErr error
	saves   int
}

func newMemStore(name string) *memStore {
	return &memStore{name: name, snaps: make(map[string]*models.TierSnapshot)}
}

func (m *memStore) Name() string { return m.name }

func (m *memStore) LoadSnapshot(ctx context.Context, key models.TierKey) (*models.TierSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[key.String()]
	if !ok {
		return nil, cache.ErrMiss
	}
	return snap, nil
}

func (m *memStore) SaveSnapshot(ctx context.Context, snap *models.TierSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	key := models.TierKey{Region: snap.Region, Tier: snap.Tier, Role: snap.Role}
	m.snaps[key.String()] = snap
	return nil
}

type countingObserver struct {
	served   atomic.Int32
	upstream atomic.Int32
	failed   atomic.Int32
}

func (o *countingObserver) RecommendationServed() { o.served.Add(1) }

func (o *countingObserver) ObserveUpstream(source string, started time.Time, err error) {
	o.upstream.Add(1)
	if err != nil {
		o.failed.Add(1)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTierStats(src TierSource, ttl time.Duration, clock *fakeClock, opts ...TierStatsOption) *TierStatsService {
	snaps := cache.NewSnapshots[[]models.ChampionStat]("tier_stats", ttl, cache.WithClock(clock.Now))
	opts = append([]TierStatsOption{WithTierClock(clock.Now)}, opts...)
	return NewTierStatsService(src, snaps, ttl, opts...)
}

// midStats is a mid lane tier list in which Zed lists Ahri, Malzahar and
// Lissandra as counters, and Orianna and Galio list Zed.
func midStats() []models.ChampionStat {
	return []models.ChampionStat{
		{Name: "Ahri", Slug: "ahri", Role: models.RoleMid, WinRate: 52.5, PickRate: 9, Rank: 1, Counters: []string{"Kassadin", "Galio"}},
		{Name: "Yasuo", Slug: "yasuo", Role: models.RoleMid, WinRate: 50.1, PickRate: 12, Rank: 2, Counters: []string{"Malzahar", "Annie"}},
		{Name: "Orianna", Slug: "orianna", Role: models.RoleMid, WinRate: 51.0, PickRate: 8, Rank: 3, Counters: []string{"Zed", "Fizz"}},
		{Name: "Zed", Slug: "zed", Role: models.RoleMid, WinRate: 50.4, PickRate: 7, Rank: 4, Counters: []string{"Ahri", "Malzahar", "Lissandra"}},
		{Name: "Syndra", Slug: "syndra", Role: models.RoleMid, WinRate: 50.5, PickRate: 6, Rank: 5},
		{Name: "Malzahar", Slug: "malzahar", Role: models.RoleMid, WinRate: 51.5, PickRate: 4, Rank: 6, Counters: []string{"Kassadin"}},
		{Name: "Galio", Slug: "galio", Role: models.RoleMid, WinRate: 49.8, PickRate: 3, Rank: 7, Counters: []string{"Zed"}},
		{Name: "Annie", Slug: "annie", Role: models.RoleMid, WinRate: 50.8, PickRate: 2, Rank: 8},
		{Name: "Fizz", Slug: "fizz", Role: models.RoleMid, WinRate: 48.0, PickRate: 2, Rank: 9},
		{Name: "Kassadin", Slug: "kassadin", Role: models.RoleMid, WinRate: 47.5, PickRate: 1, Rank: 10},
	}
}
