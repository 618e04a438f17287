package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/pkg/cache"
)

type fakeBuildSource struct {
	build *models.Build
	err   error
	calls atomic.Int32

	mu   sync.Mutex
	seen []string
}

func (f *fakeBuildSource) Name() string { return "fake" }

func (f *fakeBuildSource) FetchBuild(ctx context.Context, slug string, role models.Role, region string) (*models.Build, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, slug)
	f.mu.Unlock()
	return f.build, f.err
}

func (f *fakeBuildSource) slugs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

type fakeStatic struct {
	champs map[string]models.StaticChampion
	err    error
	calls  atomic.Int32
}

func (f *fakeStatic) Champions(ctx context.Context) (map[string]models.StaticChampion, error) {
	f.calls.Add(1)
	return f.champs, f.err
}

func TestGetBuildCachesPerKey(t *testing.T) {
	src := &fakeBuildSource{build: &models.Build{
		Champion:   "ahri",
		Role:       models.RoleMid,
		CoreItems:  []models.BuildItem{{ID: "6655", Name: "Luden's Companion"}},
		SkillOrder: "Q > W > E",
	}}
	obs := &countingObserver{}
	svc := NewBuildService(src, cache.NewSnapshots[*models.Build]("builds", 12*time.Hour), obs)
	ctx := context.Background()

	b := svc.GetBuild(ctx, "Ahri", models.RoleMid, "euw")
	assert.False(t, b.Unavailable)
	assert.Equal(t, "Q > W > E", b.SkillOrder)

	svc.GetBuild(ctx, "ahri", models.RoleMid, "euw")
	assert.Equal(t, int32(1), src.calls.Load())

	svc.GetBuild(ctx, "ahri", models.RoleSupport, "euw")
	assert.Equal(t, int32(2), src.calls.Load())
	assert.Equal(t, int32(2), obs.upstream.Load())
}

func TestGetBuildSharesEntryAcrossSpellings(t *testing.T) {
	src := &fakeBuildSource{build: &models.Build{
		Champion:   "leesin",
		Role:       models.RoleJungle,
		CoreItems:  []models.BuildItem{{ID: "6692", Name: "Eclipse"}},
		SkillOrder: "Q > W > E",
	}}
	svc := NewBuildService(src, cache.NewSnapshots[*models.Build]("builds", 12*time.Hour), nil)
	ctx := context.Background()

	for _, slug := range []string{"Lee Sin", "leesin", " LEE-SIN ", "lee_sin"} {
		b := svc.GetBuild(ctx, slug, models.RoleJungle, "euw")
		assert.False(t, b.Unavailable, slug)
	}
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, []string{"leesin"}, src.slugs())
}

func TestGetBuildUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		build *models.Build
		err   error
	}{
		{"upstream error", nil, errors.New("op.gg returned 500")},
		{"nil build", nil, nil},
		{"empty build", &models.Build{Champion: "ahri"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeBuildSource{build: tt.build, err: tt.err}
			svc := NewBuildService(src, cache.NewSnapshots[*models.Build]("builds", 12*time.Hour), nil)

			b := svc.GetBuild(context.Background(), "ahri", models.RoleMid, "euw")
			require.NotNil(t, b)
			assert.True(t, b.Unavailable)
			assert.Equal(t, "ahri", b.Champion)
			assert.Empty(t, b.CoreItems)
			assert.Empty(t, b.SkillOrder)

			// Failures are not cached.
			svc.GetBuild(context.Background(), "ahri", models.RoleMid, "euw")
			assert.Equal(t, int32(2), src.calls.Load())
		})
	}
}

func TestChampionService(t *testing.T) {
	src := &fakeStatic{champs: map[string]models.StaticChampion{
		"Ahri": {ID: "Ahri", Key: "103", Tags: []string{"Mage"}},
	}}
	svc := NewChampionService(src, cache.NewSnapshots[map[string]models.StaticChampion]("ddragon", 24*time.Hour))

	got, stale, err := svc.Champions(context.Background())
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, "103", got["Ahri"].Key)

	_, _, err = svc.Champions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestChampionServiceUnavailable(t *testing.T) {
	for _, src := range []*fakeStatic{
		{err: errors.New("dns failure")},
		{champs: map[string]models.StaticChampion{}},
	} {
		svc := NewChampionService(src, cache.NewSnapshots[map[string]models.StaticChampion]("ddragon", 24*time.Hour))
		_, _, err := svc.Champions(context.Background())

		var unavailable *UpstreamUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, "ddragon:champions", unavailable.Key)
	}
}
