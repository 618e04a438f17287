package services

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// NeutralCounterScore is the counter score with no enemy information.
const NeutralCounterScore = 50.0

// MatchupIndex answers "who counters whom" over one tier list snapshot.
// It is read-only and built on first use.
type MatchupIndex struct {
	stats []models.ChampionStat

	once     sync.Once
	names    map[string]string          // key -> display name
	beatenBy map[string]map[string]bool // key -> keys listed in its counters
	beats    map[string][]string        // key -> display names whose counters list it
}

func NewMatchupIndex(stats []models.ChampionStat) *MatchupIndex {
	return &MatchupIndex{stats: stats}
}

func (ix *MatchupIndex) build() {
	ix.names = make(map[string]string, len(ix.stats))
	ix.beatenBy = make(map[string]map[string]bool, len(ix.stats))
	ix.beats = make(map[string][]string)

	for _, st := range ix.stats {
		k := models.ChampionKey(st.Name)
		ix.names[k] = st.Name
		if st.Slug != "" {
			ix.names[models.ChampionKey(st.Slug)] = st.Name
		}
	}

	for _, st := range ix.stats {
		k := models.ChampionKey(st.Name)
		set := make(map[string]bool, len(st.Counters))
		for _, counter := range st.Counters {
			ck := ix.canonical(counter)
			if ck == "" || ck == k || set[ck] {
				continue
			}
			set[ck] = true
			ix.beats[ck] = append(ix.beats[ck], st.Name)
		}
		ix.beatenBy[k] = set
	}
}

// canonical maps a name or slug to the key of its display name when known.
func (ix *MatchupIndex) canonical(name string) string {
	k := models.ChampionKey(name)
	if display, ok := ix.names[k]; ok {
		return models.ChampionKey(display)
	}
	return k
}

// CounterScore rates champion against the enemy picks on a 0-100 scale.
// Each enemy that lists champion among its counters adds one point, each
// enemy that champion lists among its own counters subtracts one, and the
// signed total is squashed with tanh around the neutral 50.
func (ix *MatchupIndex) CounterScore(champion string, enemies []string) float64 {
	if len(enemies) == 0 {
		return NeutralCounterScore
	}
	ix.once.Do(ix.build)

	cand := ix.canonical(champion)
	raw := 0
	seen := make(map[string]bool, len(enemies))
	for _, enemy := range enemies {
		ek := ix.canonical(enemy)
		if ek == "" || ek == cand || seen[ek] {
			continue
		}
		seen[ek] = true
		if ix.beatenBy[ek][cand] {
			raw++
		}
		if ix.beatenBy[cand][ek] {
			raw--
		}
	}
	return NeutralCounterScore + 50*math.Tanh(float64(raw)/2)
}

// Matchups lists who champion beats and who beats it, or false when the
// champion is not in the snapshot.
func (ix *MatchupIndex) Matchups(champion string) (models.Matchups, bool) {
	ix.once.Do(ix.build)

	k := ix.canonical(champion)
	name, ok := ix.names[k]
	if !ok {
		return models.Matchups{}, false
	}

	strong := append([]string{}, ix.beats[k]...)
	sort.Strings(strong)

	weak := []string{}
	for _, st := range ix.stats {
		if models.ChampionKey(st.Name) != k {
			continue
		}
		for _, counter := range st.Counters {
			ck := ix.canonical(counter)
			if !ix.beatenBy[k][ck] {
				continue
			}
			if display, ok := ix.names[ck]; ok {
				weak = append(weak, display)
			} else {
				weak = append(weak, counter)
			}
		}
		break
	}

	return models.Matchups{Champion: name, StrongAgainst: strong, WeakAgainst: dedupe(weak)}, true
}

func dedupe(names []string) []string {
	out := names[:0]
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// MatchupService keeps one lazily built index per cached tier list.
type MatchupService struct {
	stats *TierStatsService

	mu      sync.Mutex
	indexes map[string]indexEntry
}

type indexEntry struct {
	first *models.ChampionStat
	size  int
	index *MatchupIndex
}

func NewMatchupService(stats *TierStatsService) *MatchupService {
	return &MatchupService{stats: stats, indexes: make(map[string]indexEntry)}
}

// Index returns the tier list for the key together with its counter index.
func (s *MatchupService) Index(ctx context.Context, region, tier string, role models.Role) ([]models.ChampionStat, *MatchupIndex, bool, error) {
	stats, stale, err := s.stats.Get(ctx, region, tier, role)
	if err != nil {
		return nil, nil, false, err
	}
	return stats, s.indexFor(models.TierKey{Region: region, Tier: tier, Role: role}, stats), stale, nil
}

// indexFor reuses the index while the cache keeps serving the same snapshot.
func (s *MatchupService) indexFor(key models.TierKey, stats []models.ChampionStat) *MatchupIndex {
	var first *models.ChampionStat
	if len(stats) > 0 {
		first = &stats[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if e, ok := s.indexes[k]; ok && e.first == first && e.size == len(stats) {
		return e.index
	}
	ix := NewMatchupIndex(stats)
	s.indexes[k] = indexEntry{first: first, size: len(stats), index: ix}
	return ix
}

// Matchups returns the strong/weak lists for one champion.
func (s *MatchupService) Matchups(ctx context.Context, champion, region, tier string, role models.Role) (models.Matchups, bool, error) {
	_, ix, stale, err := s.Index(ctx, region, tier, role)
	if err != nil {
		return models.Matchups{}, false, err
	}
	m, ok := ix.Matchups(champion)
	if !ok {
		return models.Matchups{}, stale, &ChampionNotFoundError{Champion: champion, Role: role}
	}
	return m, stale, nil
}
