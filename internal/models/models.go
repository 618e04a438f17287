package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is a normalized lane position.
type Role string

const (
	RoleTop     Role = "top"
	RoleJungle  Role = "jungle"
	RoleMid     Role = "mid"
	RoleADC     Role = "adc"
	RoleSupport Role = "support"
)

// Roles lists the lane positions in draft order.
var Roles = []Role{RoleTop, RoleJungle, RoleMid, RoleADC, RoleSupport}

var roleAliases = map[string]Role{
	"top":     RoleTop,
	"jungle":  RoleJungle,
	"jg":      RoleJungle,
	"mid":     RoleMid,
	"middle":  RoleMid,
	"adc":     RoleADC,
	"bottom":  RoleADC,
	"bot":     RoleADC,
	"support": RoleSupport,
	"utility": RoleSupport,
	"sup":     RoleSupport,
}

// ParseRole maps user and upstream spellings ("middle", "UTILITY", ...) to a Role.
func ParseRole(s string) (Role, bool) {
	r, ok := roleAliases[lower(s)]
	return r, ok
}

// Regions supported by the stats and profile upstreams.
var Regions = []string{"euw", "na", "kr", "eune", "oce", "jp", "br", "las", "lan", "ru", "tr"}

// ValidRegion reports whether region is one of Regions.
func ValidRegion(region string) bool {
	region = lower(region)
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Tiers accepted as skill-bracket filters for meta statistics.
var Tiers = []string{
	"all", "iron", "bronze", "silver", "gold", "platinum", "emerald", "diamond",
	"master", "grandmaster", "challenger",
	"gold_plus", "platinum_plus", "emerald_plus", "diamond_plus", "master_plus",
}

// ValidTier reports whether tier is one of Tiers.
func ValidTier(tier string) bool {
	tier = lower(tier)
	for _, t := range Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// ChampionStat is one row of a tier list snapshot. Values are replaced
// wholesale on refresh and never mutated in place.
type ChampionStat struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Role        Role     `json:"role"`
	WinRate     float64  `json:"win_rate"`
	PickRate    float64  `json:"pick_rate"`
	BanRate     float64  `json:"ban_rate"`
	KDA         float64  `json:"kda"`
	CS          float64  `json:"cs"`
	Gold        float64  `json:"gold"`
	GamesPlayed int      `json:"games_played"`
	Rank        int      `json:"rank"`
	Counters    []string `json:"counters"`
}

// TierKey identifies one tier list snapshot.
type TierKey struct {
	Region string
	Tier   string
	Role   Role
}

func (k TierKey) String() string {
	return "tier:" + k.Region + ":" + k.Tier + ":" + string(k.Role)
}

// TierSnapshot is a tier list as persisted in the snapshot stores.
type TierSnapshot struct {
	Region    string         `json:"region"`
	Tier      string         `json:"tier"`
	Role      Role           `json:"role"`
	Stats     []ChampionStat `json:"stats"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// PlayerChampionPreference aggregates one champion over a player's recent games.
type PlayerChampionPreference struct {
	Champion    string  `json:"champion"`
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	KDA         float64 `json:"kda"`
	PrimaryRole Role    `json:"primary_role,omitempty"`

	winRateSet bool
}

// UnmarshalJSON records whether win_rate was sent, so an explicit 0 is told
// apart from an absent rate.
func (p *PlayerChampionPreference) UnmarshalJSON(data []byte) error {
	type plain PlayerChampionPreference
	aux := struct {
		*plain
		WinRate *float64 `json:"win_rate"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.winRateSet = aux.WinRate != nil
	if aux.WinRate != nil {
		p.WinRate = *aux.WinRate
	}
	return nil
}

// HasWinRate reports whether WinRate carries a value: either it was present
// in decoded JSON or it is non-zero.
func (p PlayerChampionPreference) HasWinRate() bool {
	return p.winRateSet || p.WinRate != 0
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

type Confidence struct {
	Level            ConfidenceLevel `json:"level"`
	SampleSize       int             `json:"sample_size"`
	Reasoning        string          `json:"reasoning"`
	ReliabilityScore int             `json:"reliability_score"` // 0-100
}

// Profile is the resolved ranked history of one summoner.
type Profile struct {
	SummonerName    string                     `json:"summoner_name"`
	Region          string                     `json:"region"`
	Tier            string                     `json:"tier"`
	LP              int                        `json:"lp"`
	MostPlayed      []PlayerChampionPreference `json:"most_played"`
	RolePreferences map[Role]int               `json:"role_preferences"`
	GamesAnalyzed   int                        `json:"games_analyzed"`
	Confidence      Confidence                 `json:"confidence"`
	Warnings        []string                   `json:"warnings,omitempty"`
	Mock            bool                       `json:"mock_data"`
	Error           string                     `json:"error,omitempty"`
}

// DraftState is the recommendation request payload.
type DraftState struct {
	Region          string                     `json:"region"`
	Role            Role                       `json:"role"`
	Tier            string                     `json:"tier,omitempty"`
	PriorityWeight  int                        `json:"priority"`
	EnemyPicks      []string                   `json:"enemy_picks"`
	BannedChampions []string                   `json:"banned"`
	AlreadyPicked   []string                   `json:"already_picked"`
	PlayerPool      []PlayerChampionPreference `json:"player_pool"`
}

// MaxEnemyPicks bounds DraftState.EnemyPicks.
const MaxEnemyPicks = 5

type Weights struct {
	Meta    float64 `json:"meta"`
	Player  float64 `json:"player"`
	Counter float64 `json:"counter"`
}

// Sum returns the total of the three weights.
func (w Weights) Sum() float64 {
	return w.Meta + w.Player + w.Counter
}

// StatsSummary is the stats block attached to each recommendation.
type StatsSummary struct {
	WinRate     float64  `json:"win_rate"`
	PickRate    float64  `json:"pick_rate"`
	BanRate     float64  `json:"ban_rate"`
	KDA         float64  `json:"kda"`
	GamesPlayed int      `json:"games_played"`
	CS          float64  `json:"cs"`
	Gold        float64  `json:"gold"`
	Counters    []string `json:"counters"`
	Rank        int      `json:"rank"`
}

type Recommendation struct {
	Champion     string       `json:"champion"`
	MetaScore    float64      `json:"meta_score"`
	PlayerScore  float64      `json:"player_score"`
	CounterScore float64      `json:"counter_score"`
	TotalScore   int          `json:"total_score"`
	Weights      Weights      `json:"weights"`
	IsInPool     bool         `json:"is_in_pool"`
	PlayerGames  int          `json:"player_games"`
	Stats        StatsSummary `json:"stats"`
}

// Matchups lists who a champion beats and who beats it within one tier list.
type Matchups struct {
	Champion      string   `json:"champion"`
	StrongAgainst []string `json:"strong_against"`
	WeakAgainst   []string `json:"weak_against"`
}

type BuildItem struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Build is the detail-view item and skill order for one champion.
type Build struct {
	Champion    string      `json:"champion"`
	Role        Role        `json:"role"`
	CoreItems   []BuildItem `json:"core_items"`
	SkillOrder  string      `json:"skill_order"`
	Unavailable bool        `json:"unavailable,omitempty"`
}

// StaticChampion is one Data Dragon entry.
type StaticChampion struct {
	ID    string   `json:"id"`
	Key   string   `json:"key"`
	Image string   `json:"image"`
	Tags  []string `json:"tags"`
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ChampionKey folds display names and slugs to one comparable form:
// "Lee Sin", "leesin" and "LeeSin" all map to "leesin".
func ChampionKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
