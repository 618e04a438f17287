package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

// newTestRepo connects to TEST_DATABASE_URL and clears the snapshot table.
func newTestRepo(t *testing.T) *PostgresRepo {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	repo, err := NewPostgresRepo(url)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.RunMigrations())
	_, err = repo.DB.Exec(`DELETE FROM tier_snapshots`)
	require.NoError(t, err)
	return repo
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	key := models.TierKey{Region: "euw", Tier: "emerald_plus", Role: models.RoleMid}

	_, err := repo.LoadSnapshot(ctx, key)
	assert.ErrorIs(t, err, cache.ErrMiss)

	fetched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &models.TierSnapshot{
		Region: key.Region, Tier: key.Tier, Role: key.Role, FetchedAt: fetched,
		Stats: []models.ChampionStat{{Name: "Ahri", Slug: "ahri", Role: models.RoleMid, WinRate: 51.2, Rank: 1, Counters: []string{"Zed"}}},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, snap))

	got, err := repo.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	assert.True(t, fetched.Equal(got.FetchedAt))
	require.Len(t, got.Stats, 1)
	assert.Equal(t, "Ahri", got.Stats[0].Name)
	assert.Equal(t, []string{"Zed"}, got.Stats[0].Counters)
}

func TestSaveSnapshotKeepsNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	key := models.TierKey{Region: "kr", Tier: "all", Role: models.RoleTop}

	newer := time.Now().UTC().Truncate(time.Second)
	older := newer.Add(-time.Hour)

	save := func(at time.Time, champ string) {
		require.NoError(t, repo.SaveSnapshot(ctx, &models.TierSnapshot{
			Region: key.Region, Tier: key.Tier, Role: key.Role, FetchedAt: at,
			Stats: []models.ChampionStat{{Name: champ, Rank: 1}},
		}))
	}
	save(newer, "Darius")
	save(older, "Garen")

	got, err := repo.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Darius", got.Stats[0].Name)
}

func TestPruneSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, role := range []models.Role{models.RoleADC, models.RoleSupport} {
		require.NoError(t, repo.SaveSnapshot(ctx, &models.TierSnapshot{
			Region: "na", Tier: "all", Role: role,
			FetchedAt: time.Now().Add(-time.Duration(i*48) * time.Hour),
			Stats:     []models.ChampionStat{{Name: "Jinx", Rank: 1}},
		}))
	}

	n, err := repo.PruneSnapshots(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.True(t, repo.HealthCheck(ctx))
}
