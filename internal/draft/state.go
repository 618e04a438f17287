// Package draft holds the state of one live draft and the websocket session
// that drives it. State values are immutable: every update returns a copy.
package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// ClickMode decides which list a champion click lands in.
type ClickMode int

const (
	ModeEnemy ClickMode = iota
	ModeBan
)

func (m ClickMode) String() string {
	switch m {
	case ModeEnemy:
		return "enemy"
	case ModeBan:
		return "ban"
	default:
		return fmt.Sprintf("ClickMode(%d)", int(m))
	}
}

// ParseClickMode accepts "enemy" or "ban".
func ParseClickMode(s string) (ClickMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enemy":
		return ModeEnemy, nil
	case "ban":
		return ModeBan, nil
	}
	return ModeEnemy, fmt.Errorf("unknown click mode '%s'", s)
}

func (m ClickMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *ClickMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClickMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MaxBans is the number of bans in a ranked draft.
const MaxBans = 10

var (
	ErrEnemyLimit = fmt.Errorf("at most %d enemy picks", models.MaxEnemyPicks)
	ErrBanLimit   = fmt.Errorf("at most %d bans", MaxBans)
	ErrNoChampion = errors.New("champion name is required")
)

// State is one draft as seen by the player.
type State struct {
	Region        string                            `json:"region"`
	Tier          string                            `json:"tier"`
	Role          models.Role                       `json:"role"`
	Priority      int                               `json:"priority"`
	EnemyPicks    []string                          `json:"enemy_picks"`
	Banned        []string                          `json:"banned"`
	AlreadyPicked []string                          `json:"already_picked"`
	Pool          []models.PlayerChampionPreference `json:"player_pool"`
	Mode          ClickMode                         `json:"mode"`
}

// New returns an empty draft with a balanced priority.
func New(region, tier string, role models.Role) State {
	return State{
		Region:        region,
		Tier:          tier,
		Role:          role,
		Priority:      50,
		EnemyPicks:    []string{},
		Banned:        []string{},
		AlreadyPicked: []string{},
		Pool:          []models.PlayerChampionPreference{},
		Mode:          ModeEnemy,
	}
}

func (s State) clone() State {
	s.EnemyPicks = append([]string{}, s.EnemyPicks...)
	s.Banned = append([]string{}, s.Banned...)
	s.AlreadyPicked = append([]string{}, s.AlreadyPicked...)
	s.Pool = append([]models.PlayerChampionPreference{}, s.Pool...)
	return s
}

func indexOf(list []string, champion string) int {
	k := models.ChampionKey(champion)
	for i, c := range list {
		if models.ChampionKey(c) == k {
			return i
		}
	}
	return -1
}

func without(list []string, champion string) []string {
	if i := indexOf(list, champion); i >= 0 {
		return append(list[:i:i], list[i+1:]...)
	}
	return list
}

// Toggle adds champion to the list selected by the click mode, or removes it
// if already there. A champion lives in at most one list.
func Toggle(s State, champion string) (State, error) {
	champion = strings.TrimSpace(champion)
	if models.ChampionKey(champion) == "" {
		return s, ErrNoChampion
	}
	next := s.clone()

	switch s.Mode {
	case ModeBan:
		if indexOf(next.Banned, champion) >= 0 {
			next.Banned = without(next.Banned, champion)
			return next, nil
		}
		if len(next.Banned) >= MaxBans {
			return s, ErrBanLimit
		}
		next.EnemyPicks = without(next.EnemyPicks, champion)
		next.AlreadyPicked = without(next.AlreadyPicked, champion)
		next.Banned = append(next.Banned, champion)
	default:
		if indexOf(next.EnemyPicks, champion) >= 0 {
			next.EnemyPicks = without(next.EnemyPicks, champion)
			return next, nil
		}
		if len(next.EnemyPicks) >= models.MaxEnemyPicks {
			return s, ErrEnemyLimit
		}
		next.Banned = without(next.Banned, champion)
		next.AlreadyPicked = without(next.AlreadyPicked, champion)
		next.EnemyPicks = append(next.EnemyPicks, champion)
	}
	return next, nil
}

// Pick records a champion locked in by an ally.
func Pick(s State, champion string) (State, error) {
	champion = strings.TrimSpace(champion)
	if models.ChampionKey(champion) == "" {
		return s, ErrNoChampion
	}
	if indexOf(s.AlreadyPicked, champion) >= 0 {
		return s, nil
	}
	next := s.clone()
	next.EnemyPicks = without(next.EnemyPicks, champion)
	next.Banned = without(next.Banned, champion)
	next.AlreadyPicked = append(next.AlreadyPicked, champion)
	return next, nil
}

func WithMode(s State, mode ClickMode) State {
	next := s.clone()
	next.Mode = mode
	return next
}

func WithRole(s State, role string) (State, error) {
	r, ok := models.ParseRole(role)
	if !ok {
		return s, fmt.Errorf("unknown role '%s'", role)
	}
	next := s.clone()
	next.Role = r
	return next, nil
}

func WithPriority(s State, priority int) (State, error) {
	if priority < 0 || priority > 100 {
		return s, fmt.Errorf("priority %d outside 0..100", priority)
	}
	next := s.clone()
	next.Priority = priority
	return next, nil
}

func WithPool(s State, pool []models.PlayerChampionPreference) State {
	next := s.clone()
	next.Pool = append([]models.PlayerChampionPreference{}, pool...)
	return next
}

// Reset clears picks and bans but keeps the player's settings.
func Reset(s State) State {
	next := s.clone()
	next.EnemyPicks = []string{}
	next.Banned = []string{}
	next.AlreadyPicked = []string{}
	next.Mode = ModeEnemy
	return next
}

// DraftState is the recommendation request for s.
func (s State) DraftState() models.DraftState {
	s = s.clone()
	return models.DraftState{
		Region:          s.Region,
		Tier:            s.Tier,
		Role:            s.Role,
		PriorityWeight:  s.Priority,
		EnemyPicks:      s.EnemyPicks,
		BannedChampions: s.Banned,
		AlreadyPicked:   s.AlreadyPicked,
		PlayerPool:      s.Pool,
	}
}
