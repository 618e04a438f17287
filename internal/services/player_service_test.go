package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/internal/riot"
)

type fakeHistory struct {
	key        bool
	accountErr error
	idsErr     error
	entry      *riot.LeagueEntry
	matches    map[string]*riot.Match
	block      bool
}

func (f *fakeHistory) HasKey() bool { return f.key }

func (f *fakeHistory) GetAccount(ctx context.Context, gameName, tagLine, region string) (*riot.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return &riot.Account{PUUID: "puuid-1", GameName: gameName, TagLine: tagLine}, nil
}

func (f *fakeHistory) GetRankedSolo(ctx context.Context, puuid, region string) (*riot.LeagueEntry, error) {
	return f.entry, nil
}

func (f *fakeHistory) GetMatchIDs(ctx context.Context, puuid, region string, count int) ([]string, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	ids := []string{"EUW1_1", "EUW1_2", "EUW1_3", "EUW1_4"}
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (f *fakeHistory) GetMatch(ctx context.Context, matchID, region string) (*riot.Match, error) {
	m, ok := f.matches[matchID]
	if !ok {
		return nil, &riot.StatusError{URL: matchID, StatusCode: 500}
	}
	return m, nil
}

type modeRecorder struct {
	mu    sync.Mutex
	modes []string
}

func (r *modeRecorder) ProfileResolved(mode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
}

func match(id string, participants ...riot.Participant) *riot.Match {
	m := &riot.Match{}
	m.Metadata.MatchID = id
	m.Info.QueueID = riot.RankedSoloQueue
	m.Info.Participants = participants
	return m
}

func me(champion, position string, win bool, k, d, a int) riot.Participant {
	return riot.Participant{PUUID: "puuid-1", ChampionName: champion, TeamPosition: position, Win: win, Kills: k, Deaths: d, Assists: a}
}

func TestResolveLiveProfile(t *testing.T) {
	src := &fakeHistory{
		key:   true,
		entry: &riot.LeagueEntry{QueueType: "RANKED_SOLO_5x5", Tier: "EMERALD", Rank: "II", LeaguePoints: 54},
		matches: map[string]*riot.Match{
			"EUW1_1": match("EUW1_1", me("Ahri", "MIDDLE", true, 5, 2, 3), riot.Participant{PUUID: "other", ChampionName: "Zed"}),
			"EUW1_2": match("EUW1_2", me("Ahri", "MIDDLE", false, 1, 4, 2)),
			"EUW1_3": match("EUW1_3", me("Sylas", "JUNGLE", true, 7, 0, 5)),
			// EUW1_4 fails and is skipped.
		},
	}
	rec := &modeRecorder{}
	svc := NewPlayerService(src, 20, time.Second, rec)

	p, err := svc.Resolve(context.Background(), "Hide on bush#KR1", "kr")
	require.NoError(t, err)

	assert.False(t, p.Mock)
	assert.Empty(t, p.Error)
	assert.Equal(t, "Hide on bush#KR1", p.SummonerName)
	assert.Equal(t, "EMERALD II", p.Tier)
	assert.Equal(t, 54, p.LP)
	assert.Equal(t, 3, p.GamesAnalyzed)
	assert.Equal(t, map[models.Role]int{models.RoleMid: 2, models.RoleJungle: 1}, p.RolePreferences)
	assert.Equal(t, models.ConfidenceLow, p.Confidence.Level)

	require.Len(t, p.MostPlayed, 2)
	ahri := p.MostPlayed[0]
	assert.Equal(t, "Ahri", ahri.Champion)
	assert.Equal(t, 2, ahri.Games)
	assert.Equal(t, 1, ahri.Wins)
	assert.Equal(t, 1, ahri.Losses)
	assert.Equal(t, 50.0, ahri.WinRate)
	assert.Equal(t, 1.83, ahri.KDA)
	assert.Equal(t, models.RoleMid, ahri.PrimaryRole)

	sylas := p.MostPlayed[1]
	assert.Equal(t, 12.0, sylas.KDA, "zero deaths divides by one")

	assert.Equal(t, []string{"live"}, rec.modes)
}

func TestResolveDefaultsTagLine(t *testing.T) {
	src := &fakeHistory{key: true, matches: map[string]*riot.Match{}}
	p, err := NewPlayerService(src, 20, time.Second, nil).Resolve(context.Background(), "Caps", "EUW")
	require.NoError(t, err)
	assert.Equal(t, "Caps#EUW", p.SummonerName)
	assert.Equal(t, unrankedTier, p.Tier)
	assert.Equal(t, 0, p.GamesAnalyzed)
}

func TestResolveNotFound(t *testing.T) {
	rec := &modeRecorder{}
	src := &fakeHistory{key: true, accountErr: &riot.StatusError{StatusCode: 404}}

	p, err := NewPlayerService(src, 20, time.Second, rec).Resolve(context.Background(), "nobody#0000", "euw")
	assert.Nil(t, p)

	var notFound *SummonerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nobody#0000", notFound.Summoner)
	assert.Equal(t, "euw", notFound.Region)
	assert.Equal(t, []string{"not_found"}, rec.modes)
}

func TestResolveFallsBackToMock(t *testing.T) {
	tests := []struct {
		name      string
		src       *fakeHistory
		wantError string
	}{
		{"no api key", &fakeHistory{}, "Riot API key not configured. Using mock data."},
		{"upstream down", &fakeHistory{key: true, accountErr: &riot.StatusError{StatusCode: 503}}, "Match history unavailable. Using mock data."},
		{"key rejected", &fakeHistory{key: true, accountErr: &riot.StatusError{StatusCode: 403}}, "Riot API key rejected. Using mock data."},
		{"match list fails", &fakeHistory{key: true, idsErr: errors.New("connection reset")}, "Match history unavailable. Using mock data."},
		{"timeout", &fakeHistory{key: true, block: true}, "Match history unavailable. Using mock data."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &modeRecorder{}
			svc := NewPlayerService(tt.src, 20, 50*time.Millisecond, rec)

			started := time.Now()
			p, err := svc.Resolve(context.Background(), "Faker", "kr")
			require.NoError(t, err)
			assert.Less(t, time.Since(started), 2*time.Second)

			assert.True(t, p.Mock)
			assert.Equal(t, tt.wantError, p.Error)
			assert.NotEmpty(t, p.MostPlayed)
			assert.Equal(t, []string{"mock"}, rec.modes)
		})
	}
}

func TestResolveValidation(t *testing.T) {
	svc := NewPlayerService(&fakeHistory{}, 20, time.Second, nil)

	_, err := svc.Resolve(context.Background(), "  ", "euw")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "summoner", verr.Field)

	_, err = svc.Resolve(context.Background(), "Faker", "mars")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "region", verr.Field)
}

func TestMockProfileDeterministic(t *testing.T) {
	a := MockProfile("Faker", "kr", 20)
	b := MockProfile("  faker ", "kr", 20)
	assert.Equal(t, a.MostPlayed, b.MostPlayed)
	assert.Equal(t, a.Tier, b.Tier)
	assert.Equal(t, a.LP, b.LP)

	for _, name := range []string{"Faker", "Caps", "Chovy", "x"} {
		p := MockProfile(name, "euw", 20)
		assert.True(t, p.Mock)
		assert.LessOrEqual(t, p.GamesAnalyzed, 20, name)

		total := 0
		for i, pref := range p.MostPlayed {
			total += pref.Games
			assert.Equal(t, pref.Games, pref.Wins+pref.Losses)
			if i > 0 {
				assert.GreaterOrEqual(t, p.MostPlayed[i-1].Games, pref.Games)
			}
		}
		assert.Equal(t, p.GamesAnalyzed, total, fmt.Sprintf("%s games add up", name))
	}
}

func TestAggregateMatchesOrderingAndRoles(t *testing.T) {
	matches := []*riot.Match{
		match("1", me("Zed", "MIDDLE", true, 1, 1, 1)),
		match("2", me("Zed", "TOP", false, 1, 1, 1)),
		match("3", me("Ahri", "MIDDLE", true, 1, 1, 1)),
		match("4", me("Yone", "MIDDLE", false, 1, 1, 1)),
		match("5", me("Akali", "", true, 1, 1, 1)),
		nil,
		match("6", riot.Participant{PUUID: "someone-else", ChampionName: "Teemo"}),
	}

	prefs, roles, games := AggregateMatches("puuid-1", matches)
	assert.Equal(t, 5, games)

	got := make([]string, len(prefs))
	for i, p := range prefs {
		got[i] = p.Champion
	}
	assert.Equal(t, []string{"Zed", "Ahri", "Akali", "Yone"}, got)

	assert.Equal(t, models.RoleTop, prefs[0].PrimaryRole, "tie goes to the earlier lane")
	assert.Equal(t, models.Role(""), prefs[2].PrimaryRole)
	assert.Equal(t, map[models.Role]int{models.RoleMid: 3, models.RoleTop: 1}, roles)
}
