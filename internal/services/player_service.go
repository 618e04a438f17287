package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/draftforme-backend/internal/models"
	"github.com/yourusername/draftforme-backend/internal/riot"
)

// MatchHistorySource is the subset of the Riot API a profile needs.
type MatchHistorySource interface {
	HasKey() bool
	GetAccount(ctx context.Context, gameName, tagLine, region string) (*riot.Account, error)
	GetRankedSolo(ctx context.Context, puuid, region string) (*riot.LeagueEntry, error)
	GetMatchIDs(ctx context.Context, puuid, region string, count int) ([]string, error)
	GetMatch(ctx context.Context, matchID, region string) (*riot.Match, error)
}

// ProfileObserver counts profile resolutions by mode (live, mock, not_found).
type ProfileObserver interface {
	ProfileResolved(mode string)
}

const (
	DefaultMatchWindow    = 20
	DefaultProfileTimeout = 5 * time.Second

	matchFetchConcurrency = 4
	unrankedTier          = "UNRANKED"
)

type PlayerService struct {
	source   MatchHistorySource
	window   int
	timeout  time.Duration
	observer ProfileObserver
}

func NewPlayerService(source MatchHistorySource, window int, timeout time.Duration, observer ProfileObserver) *PlayerService {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	if timeout <= 0 {
		timeout = DefaultProfileTimeout
	}
	return &PlayerService{source: source, window: window, timeout: timeout, observer: observer}
}

// Resolve builds the ranked profile of a Riot ID ("Name#TAG"). When the
// history cannot be fetched it returns a deterministic mock profile with
// Mock set; only a summoner the API does not know is an error.
func (s *PlayerService) Resolve(ctx context.Context, summoner, region string) (*models.Profile, error) {
	summoner = strings.TrimSpace(summoner)
	region = strings.ToLower(strings.TrimSpace(region))
	if summoner == "" {
		return nil, &ValidationError{Field: "summoner", Reason: "summoner name is required"}
	}
	if !models.ValidRegion(region) {
		return nil, &ValidationError{Field: "region", Reason: fmt.Sprintf("unknown region '%s'", region)}
	}

	if s.source == nil || !s.source.HasKey() {
		return s.mock(summoner, region, "Riot API key not configured. Using mock data."), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	profile, err := s.fetch(ctx, summoner, region)
	if err != nil {
		var notFound *SummonerNotFoundError
		if errors.As(err, &notFound) {
			s.record("not_found")
			return nil, err
		}
		log.Printf("[WARN] Profile lookup for %s (%s) failed, using mock data: %v", summoner, region, err)
		reason := "Match history unavailable. Using mock data."
		if riot.IsForbidden(err) {
			reason = "Riot API key rejected. Using mock data."
		}
		return s.mock(summoner, region, reason), nil
	}

	s.record("live")
	return profile, nil
}

func (s *PlayerService) fetch(ctx context.Context, summoner, region string) (*models.Profile, error) {
	gameName, tagLine := riot.SplitRiotID(summoner, region)

	account, err := s.source.GetAccount(ctx, gameName, tagLine, region)
	if err != nil {
		if riot.IsNotFound(err) {
			return nil, &SummonerNotFoundError{Summoner: summoner, Region: region}
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	profile := &models.Profile{
		SummonerName: account.GameName + "#" + account.TagLine,
		Region:       region,
		Tier:         unrankedTier,
	}

	entry, err := s.source.GetRankedSolo(ctx, account.PUUID, region)
	if err != nil {
		log.Printf("[WARN] Ranked entry lookup for %s failed: %v", profile.SummonerName, err)
	} else if entry != nil {
		profile.Tier = strings.TrimSpace(entry.Tier + " " + entry.Rank)
		profile.LP = entry.LeaguePoints
	}

	ids, err := s.source.GetMatchIDs(ctx, account.PUUID, region, s.window)
	if err != nil {
		return nil, fmt.Errorf("match ids: %w", err)
	}

	matches := make([]*riot.Match, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matchFetchConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			m, err := s.source.GetMatch(gctx, id, region)
			if err != nil {
				log.Printf("[WARN] Skipping match %s: %v", id, err)
				return nil
			}
			matches[i] = m
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	profile.MostPlayed, profile.RolePreferences, profile.GamesAnalyzed = AggregateMatches(account.PUUID, matches)
	profile.Confidence = CalculateConfidence(profile.GamesAnalyzed, s.window)
	profile.Warnings = GenerateWarnings(profile)

	log.Printf("[INFO] Resolved %s (%s): %d games, %d champions", profile.SummonerName, region, profile.GamesAnalyzed, len(profile.MostPlayed))
	return profile, nil
}

func (s *PlayerService) record(mode string) {
	if s.observer != nil {
		s.observer.ProfileResolved(mode)
	}
}

func (s *PlayerService) mock(summoner, region, reason string) *models.Profile {
	s.record("mock")
	p := MockProfile(summoner, region, s.window)
	p.Error = reason
	return p
}

type championTally struct {
	name                   string
	games, wins            int
	kills, deaths, assists int
	roles                  map[models.Role]int
}

// AggregateMatches folds the puuid's games into per-champion preferences
// sorted by games, then win rate, then name. Nil matches are ignored.
func AggregateMatches(puuid string, matches []*riot.Match) ([]models.PlayerChampionPreference, map[models.Role]int, int) {
	tallies := make(map[string]*championTally)
	rolePrefs := make(map[models.Role]int)
	games := 0

	for _, m := range matches {
		if m == nil {
			continue
		}
		p := m.Find(puuid)
		if p == nil || p.ChampionName == "" {
			continue
		}
		games++

		t, ok := tallies[p.ChampionName]
		if !ok {
			t = &championTally{name: p.ChampionName, roles: make(map[models.Role]int)}
			tallies[p.ChampionName] = t
		}
		t.games++
		if p.Win {
			t.wins++
		}
		t.kills += p.Kills
		t.deaths += p.Deaths
		t.assists += p.Assists

		if role, ok := participantRole(p); ok {
			t.roles[role]++
			rolePrefs[role]++
		}
	}

	prefs := make([]models.PlayerChampionPreference, 0, len(tallies))
	for _, t := range tallies {
		prefs = append(prefs, models.PlayerChampionPreference{
			Champion:    t.name,
			Games:       t.games,
			Wins:        t.wins,
			Losses:      t.games - t.wins,
			WinRate:     round1(100 * float64(t.wins) / float64(t.games)),
			KDA:         math.Round(float64(t.kills+t.assists)/math.Max(1, float64(t.deaths))*100) / 100,
			PrimaryRole: pluralityRole(t.roles),
		})
	}

	sort.Slice(prefs, func(i, j int) bool {
		if prefs[i].Games != prefs[j].Games {
			return prefs[i].Games > prefs[j].Games
		}
		if prefs[i].WinRate != prefs[j].WinRate {
			return prefs[i].WinRate > prefs[j].WinRate
		}
		return prefs[i].Champion < prefs[j].Champion
	})

	return prefs, rolePrefs, games
}

func participantRole(p *riot.Participant) (models.Role, bool) {
	if role, ok := models.ParseRole(p.TeamPosition); ok {
		return role, true
	}
	return models.ParseRole(p.IndividualPosition)
}

// pluralityRole picks the most played role; ties go to the earlier lane.
func pluralityRole(counts map[models.Role]int) models.Role {
	var best models.Role
	bestCount := 0
	for _, r := range models.Roles {
		if counts[r] > bestCount {
			best, bestCount = r, counts[r]
		}
	}
	return best
}

var mockChampions = []struct {
	name string
	role models.Role
}{
	{"Darius", models.RoleTop}, {"Garen", models.RoleTop}, {"Ornn", models.RoleTop},
	{"Lee Sin", models.RoleJungle}, {"Vi", models.RoleJungle}, {"Graves", models.RoleJungle},
	{"Ahri", models.RoleMid}, {"Orianna", models.RoleMid}, {"Syndra", models.RoleMid},
	{"Jinx", models.RoleADC}, {"Kai'Sa", models.RoleADC}, {"Ezreal", models.RoleADC},
	{"Thresh", models.RoleSupport}, {"Lulu", models.RoleSupport}, {"Nautilus", models.RoleSupport},
}

var mockTiers = []string{"SILVER II", "GOLD IV", "GOLD I", "PLATINUM III", "EMERALD IV", "EMERALD II", "DIAMOND IV"}

// MockProfile generates a plausible profile seeded by the summoner name, so
// the same name always yields the same data.
func MockProfile(summoner, region string, window int) *models.Profile {
	if window <= 0 {
		window = DefaultMatchWindow
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(summoner))))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	picks := r.Perm(len(mockChampions))[:4]
	remaining := window
	prefs := make([]models.PlayerChampionPreference, 0, len(picks))
	rolePrefs := make(map[models.Role]int)
	for i, idx := range picks {
		c := mockChampions[idx]
		games := remaining / (len(picks) - i + 1)
		if i == 0 {
			games = window/2 + r.Intn(window/4+1)
		}
		if games <= 0 || games > remaining {
			games = remaining
		}
		if games == 0 {
			break
		}
		remaining -= games

		wins := int(math.Round(float64(games) * (0.42 + 0.2*r.Float64())))
		deaths := games * (3 + r.Intn(4))
		prefs = append(prefs, models.PlayerChampionPreference{
			Champion:    c.name,
			Games:       games,
			Wins:        wins,
			Losses:      games - wins,
			WinRate:     round1(100 * float64(wins) / float64(games)),
			KDA:         math.Round(float64(games*(8+r.Intn(10)))/float64(deaths)*100) / 100,
			PrimaryRole: c.role,
		})
		rolePrefs[c.role] += games
	}

	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Games != prefs[j].Games {
			return prefs[i].Games > prefs[j].Games
		}
		if prefs[i].WinRate != prefs[j].WinRate {
			return prefs[i].WinRate > prefs[j].WinRate
		}
		return prefs[i].Champion < prefs[j].Champion
	})

	analyzed := window - remaining
	p := &models.Profile{
		SummonerName:    summoner,
		Region:          region,
		Tier:            mockTiers[r.Intn(len(mockTiers))],
		LP:              r.Intn(100),
		MostPlayed:      prefs,
		RolePreferences: rolePrefs,
		GamesAnalyzed:   analyzed,
		Confidence:      CalculateConfidence(analyzed, window),
		Mock:            true,
	}
	p.Warnings = GenerateWarnings(p)
	return p
}
