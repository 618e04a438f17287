package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/yourusername/draftforme-backend/internal/models"
)

const (
	// MinPoolGames is the number of games on a champion before the player's
	// history counts toward its score.
	MinPoolGames = 10

	// DefaultTopN and DefaultPriority apply when a request omits top_n or
	// priority. An explicit 0 is honoured for both.
	DefaultTopN     = 10
	MaxTopN         = 200
	DefaultPriority = 50

	metaWinWeight   = 0.45
	metaRankWeight  = 0.40
	metaPickWeight  = 0.15
	winRateSpread   = 12.5 // score points per win rate point around 50%
	counterShare    = 0.5
	playerBase      = 35.0
	playerWinSlope  = 2.0
	playerGameSlope = 0.6
	playerGameCap   = 35.0
	neutralWinRate  = 50.0
)

// RecommendationObserver counts served recommendation lists.
type RecommendationObserver interface {
	RecommendationServed()
}

type RecommendationService struct {
	matchups      *MatchupService
	defaultRegion string
	defaultTier   string
	observer      RecommendationObserver
}

func NewRecommendationService(matchups *MatchupService, defaultRegion, defaultTier string, observer RecommendationObserver) *RecommendationService {
	return &RecommendationService{
		matchups:      matchups,
		defaultRegion: defaultRegion,
		defaultTier:   defaultTier,
		observer:      observer,
	}
}

// Normalize validates a draft state and fills defaults in place.
func (s *RecommendationService) Normalize(state *models.DraftState) error {
	return NormalizeDraftState(state, s.defaultRegion, s.defaultTier)
}

// NormalizeDraftState validates state and canonicalises region, tier and role.
func NormalizeDraftState(state *models.DraftState, defaultRegion, defaultTier string) error {
	state.Region = strings.ToLower(strings.TrimSpace(state.Region))
	if state.Region == "" {
		state.Region = defaultRegion
	}
	if !models.ValidRegion(state.Region) {
		return &ValidationError{Field: "region", Reason: fmt.Sprintf("unknown region '%s'", state.Region)}
	}

	state.Tier = strings.ToLower(strings.TrimSpace(state.Tier))
	if state.Tier == "" {
		state.Tier = defaultTier
	}
	if !models.ValidTier(state.Tier) {
		return &ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier '%s'", state.Tier)}
	}

	role, ok := models.ParseRole(string(state.Role))
	if !ok {
		return &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role '%s'", state.Role)}
	}
	state.Role = role

	if state.PriorityWeight < 0 || state.PriorityWeight > 100 {
		return &ValidationError{Field: "priority", Reason: "must be between 0 and 100"}
	}

	if len(state.EnemyPicks) > models.MaxEnemyPicks {
		return &ValidationError{Field: "enemy_picks", Reason: fmt.Sprintf("at most %d enemy picks", models.MaxEnemyPicks)}
	}
	seen := make(map[string]bool, len(state.EnemyPicks))
	for _, e := range state.EnemyPicks {
		k := models.ChampionKey(e)
		if k == "" {
			return &ValidationError{Field: "enemy_picks", Reason: "empty champion name"}
		}
		if seen[k] {
			return &ValidationError{Field: "enemy_picks", Reason: fmt.Sprintf("duplicate enemy pick '%s'", e)}
		}
		seen[k] = true
	}

	for _, p := range state.PlayerPool {
		if p.Games < 0 || p.Wins < 0 || p.Losses < 0 {
			return &ValidationError{Field: "player_pool", Reason: fmt.Sprintf("negative game counts for '%s'", p.Champion)}
		}
		if p.WinRate < 0 || p.WinRate > 100 || math.IsNaN(p.WinRate) {
			return &ValidationError{Field: "player_pool", Reason: fmt.Sprintf("win rate for '%s' must be a percentage between 0 and 100", p.Champion)}
		}
	}
	return nil
}

// Recommend ranks the candidates for state.Role and returns the best topN;
// topN 0 yields an empty list.
// state is expected to have passed Normalize.
func (s *RecommendationService) Recommend(ctx context.Context, state models.DraftState, topN int) ([]models.Recommendation, error) {
	stats, index, stale, err := s.matchups.Index(ctx, state.Region, state.Tier, state.Role)
	if err != nil {
		var unavailable *UpstreamUnavailableError
		if errors.As(err, &unavailable) {
			return nil, &RecommendationUnavailableError{Role: string(state.Role), Region: state.Region, Err: err}
		}
		return nil, err
	}
	if stale {
		log.Printf("[WARN] recommending %s/%s from stale stats", state.Region, state.Role)
	}

	recs := Score(stats, index, state, topN)
	if s.observer != nil {
		s.observer.RecommendationServed()
	}
	return recs, nil
}

// Score is the pure ranking step: identical inputs give identical output.
func Score(stats []models.ChampionStat, index *MatchupIndex, state models.DraftState, topN int) []models.Recommendation {
	if topN < 0 {
		topN = 0
	}
	if topN > MaxTopN {
		topN = MaxTopN
	}

	excluded := make(map[string]bool)
	for _, lists := range [][]string{state.BannedChampions, state.AlreadyPicked, state.EnemyPicks} {
		for _, name := range lists {
			excluded[models.ChampionKey(name)] = true
		}
	}

	pool := poolByChampion(state.PlayerPool)
	weights := ComputeWeights(state.PriorityWeight, hasQualifyingPool(state.PlayerPool), len(state.EnemyPicks) > 0)
	metas := MetaScores(stats)
	poolTieBreak := clampPriority(state.PriorityWeight) < 100

	type scored struct {
		rec  models.Recommendation
		rank int
	}
	candidates := make([]scored, 0, len(stats))

	for i, st := range stats {
		k := models.ChampionKey(st.Name)
		if excluded[k] || excluded[models.ChampionKey(st.Slug)] {
			continue
		}

		pref, inPool := pool[k]
		player := 0.0
		games := 0
		if inPool {
			player = PlayerScore(pref)
			games = pref.Games
		}

		counter := NeutralCounterScore
		if index != nil {
			counter = index.CounterScore(st.Name, state.EnemyPicks)
		}

		meta := metas[i]
		total := meta*weights.Meta + player*weights.Player + counter*weights.Counter

		candidates = append(candidates, scored{
			rank: st.Rank,
			rec: models.Recommendation{
				Champion:     st.Name,
				MetaScore:    round1(meta),
				PlayerScore:  round1(player),
				CounterScore: round1(counter),
				TotalScore:   int(math.Round(clamp(total))),
				Weights:      weights,
				IsInPool:     inPool && games >= MinPoolGames,
				PlayerGames:  games,
				Stats: models.StatsSummary{
					WinRate:     st.WinRate,
					PickRate:    st.PickRate,
					BanRate:     st.BanRate,
					KDA:         st.KDA,
					GamesPlayed: st.GamesPlayed,
					CS:          st.CS,
					Gold:        st.Gold,
					Counters:    st.Counters,
					Rank:        st.Rank,
				},
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rec.TotalScore != b.rec.TotalScore {
			return a.rec.TotalScore > b.rec.TotalScore
		}
		// A meta-only request ignores the pool entirely.
		if poolTieBreak && a.rec.PlayerGames != b.rec.PlayerGames {
			return a.rec.PlayerGames > b.rec.PlayerGames
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.rec.Champion < b.rec.Champion
	})

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	out := make([]models.Recommendation, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}

// ComputeWeights derives the blend for a priority in 0..100: 0 leans on the
// player's history, 100 on the meta. Enemy picks give the counter signal half
// the weight. The result always sums to 1.
func ComputeWeights(priority int, hasPool, hasEnemies bool) models.Weights {
	p := float64(clampPriority(priority)) / 100
	w := models.Weights{Meta: p, Player: 1 - p}

	if !hasPool {
		w.Meta, w.Player = 1, 0
	}
	if hasEnemies {
		w.Meta *= 1 - counterShare
		w.Player *= 1 - counterShare
		w.Counter = counterShare
	}

	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return models.Weights{Meta: 1}
	}
	return models.Weights{Meta: w.Meta / sum, Player: w.Player / sum, Counter: w.Counter / sum}
}

// MetaScores returns one 0-100 score per row of stats, which must be ordered
// by rank. Raw scores blend win rate, rank percentile and pick share; an
// isotonic fit then makes them non-increasing down the ranking so a better
// rank never scores lower.
func MetaScores(stats []models.ChampionStat) []float64 {
	n := len(stats)
	if n == 0 {
		return nil
	}

	maxPick := 0.0
	for _, st := range stats {
		maxPick = math.Max(maxPick, st.PickRate)
	}

	raw := make([]float64, n)
	for i, st := range stats {
		wr := clamp(50 + winRateSpread*(st.WinRate-50))
		rankPct := 100 * float64(n-st.Rank) / math.Max(float64(n-1), 1)
		if n == 1 {
			rankPct = 100
		}
		pickShare := 0.0
		if maxPick > 0 {
			pickShare = 100 * st.PickRate / maxPick
		}
		raw[i] = clamp(metaWinWeight*wr + metaRankWeight*clamp(rankPct) + metaPickWeight*pickShare)
	}
	return isotonicNonIncreasing(raw)
}

// isotonicNonIncreasing is the pool-adjacent-violators fit of xs under the
// constraint y[0] >= y[1] >= ... >= y[n-1].
func isotonicNonIncreasing(xs []float64) []float64 {
	type block struct {
		sum   float64
		count int
	}
	blocks := make([]block, 0, len(xs))
	for _, x := range xs {
		blocks = append(blocks, block{sum: x, count: 1})
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/float64(prev.count) >= last.sum/float64(last.count) {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: prev.sum + last.sum, count: prev.count + last.count})
		}
	}

	out := make([]float64, 0, len(xs))
	for _, b := range blocks {
		mean := b.sum / float64(b.count)
		for i := 0; i < b.count; i++ {
			out = append(out, mean)
		}
	}
	return out
}

// PlayerScore rates a pool entry on 0-100; below MinPoolGames it is 0.
func PlayerScore(p models.PlayerChampionPreference) float64 {
	if p.Games < MinPoolGames {
		return 0
	}
	winRate := poolWinRate(p)
	return clamp(playerBase + playerWinSlope*(winRate-50) + math.Min(playerGameSlope*float64(p.Games), playerGameCap))
}

// poolWinRate takes the stated percentage, then wins/losses, and treats a
// pool entry with neither as an even 50%.
func poolWinRate(p models.PlayerChampionPreference) float64 {
	if p.HasWinRate() {
		return p.WinRate
	}
	if p.Wins+p.Losses > 0 {
		return 100 * float64(p.Wins) / float64(p.Wins+p.Losses)
	}
	return neutralWinRate
}

func hasQualifyingPool(pool []models.PlayerChampionPreference) bool {
	for _, p := range pool {
		if p.Games >= MinPoolGames {
			return true
		}
	}
	return false
}

// poolByChampion keys the pool by champion; duplicates keep the larger sample.
func poolByChampion(pool []models.PlayerChampionPreference) map[string]models.PlayerChampionPreference {
	out := make(map[string]models.PlayerChampionPreference, len(pool))
	for _, p := range pool {
		k := models.ChampionKey(p.Champion)
		if k == "" {
			continue
		}
		if existing, ok := out[k]; !ok || p.Games > existing.Games {
			out[k] = p
		}
	}
	return out
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
