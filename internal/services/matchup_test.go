package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/draftforme-backend/internal/models"
)

func TestCounterScore(t *testing.T) {
	ix := NewMatchupIndex(midStats())

	tests := []struct {
		name      string
		champion  string
		enemies   []string
		wantAbove float64
		wantBelow float64
	}{
		{"counters the enemy", "Ahri", []string{"Zed"}, 50, 101},
		{"countered by the enemy", "Orianna", []string{"Zed"}, -1, 50},
		{"slug and case insensitive", "ahri", []string{"ZED"}, 50, 101},
		{"unknown enemy is neutral", "Ahri", []string{"Teemo"}, 49.99, 50.01},
		{"no relation is neutral", "Syndra", []string{"Zed"}, 49.99, 50.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.CounterScore(tt.champion, tt.enemies)
			assert.Greater(t, got, tt.wantAbove)
			assert.Less(t, got, tt.wantBelow)
		})
	}
}

func TestCounterScoreNeutralWithoutEnemies(t *testing.T) {
	ix := NewMatchupIndex(midStats())
	for _, st := range midStats() {
		assert.Equal(t, NeutralCounterScore, ix.CounterScore(st.Name, nil))
	}
}

func TestCounterScoreSaturates(t *testing.T) {
	stats := []models.ChampionStat{
		{Name: "Malphite", Rank: 1},
		{Name: "Yasuo", Rank: 2, Counters: []string{"Malphite"}},
		{Name: "Yone", Rank: 3, Counters: []string{"Malphite"}},
		{Name: "Master Yi", Rank: 4, Counters: []string{"Malphite"}},
	}
	ix := NewMatchupIndex(stats)

	one := ix.CounterScore("Malphite", []string{"Yasuo"})
	three := ix.CounterScore("Malphite", []string{"Yasuo", "Yone", "Master Yi"})

	assert.Greater(t, three, one)
	assert.Less(t, three, 100.0)
	assert.Less(t, three-one, one-NeutralCounterScore, "each extra favourable matchup adds less")

	// A repeated enemy counts once.
	assert.Equal(t, one, ix.CounterScore("Malphite", []string{"Yasuo", "yasuo"}))
}

func TestMatchups(t *testing.T) {
	ix := NewMatchupIndex(midStats())

	m, ok := ix.Matchups("zed")
	require.True(t, ok)
	assert.Equal(t, "Zed", m.Champion)
	assert.Equal(t, []string{"Galio", "Orianna"}, m.StrongAgainst)
	assert.Equal(t, []string{"Ahri", "Malzahar", "Lissandra"}, m.WeakAgainst)

	m, ok = ix.Matchups("Syndra")
	require.True(t, ok)
	assert.Empty(t, m.StrongAgainst)
	assert.Empty(t, m.WeakAgainst)

	_, ok = ix.Matchups("Teemo")
	assert.False(t, ok)
}

func TestMatchupServiceReusesIndex(t *testing.T) {
	src := &fakeSource{stats: midStats()}
	svc := NewMatchupService(newTierStats(src, time.Hour, newFakeClock()))
	ctx := context.Background()

	_, first, _, err := svc.Index(ctx, "euw", "emerald_plus", models.RoleMid)
	require.NoError(t, err)
	_, second, _, err := svc.Index(ctx, "euw", "emerald_plus", models.RoleMid)
	require.NoError(t, err)
	assert.Same(t, first, second)

	m, _, err := svc.Matchups(ctx, "Ahri", "euw", "emerald_plus", models.RoleMid)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zed"}, m.StrongAgainst)

	_, _, err = svc.Matchups(ctx, "Teemo", "euw", "emerald_plus", models.RoleMid)
	var notFound *ChampionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Teemo", notFound.Champion)
}
