package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// Recommender ranks candidates for a draft.
type Recommender interface {
	Normalize(state *models.DraftState) error
	Recommend(ctx context.Context, state models.DraftState, topN int) ([]models.Recommendation, error)
}

// Message types accepted from the client.
const (
	MsgToggle      = "toggle"
	MsgSetMode     = "set_mode"
	MsgSetRole     = "set_role"
	MsgSetPriority = "set_priority"
	MsgSetPool     = "set_pool"
	MsgPick        = "pick"
	MsgReset       = "reset"
	MsgRefresh     = "refresh"

	MsgState = "state"
)

// ClientMessage is one action sent over the socket.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type actionPayload struct {
	Champion string                            `json:"champion"`
	Mode     string                            `json:"mode"`
	Role     string                            `json:"role"`
	Priority *int                              `json:"priority"`
	Pool     []models.PlayerChampionPreference `json:"pool"`
}

// Reply is sent after every client message.
type Reply struct {
	Type            string                  `json:"type"`
	SessionID       string                  `json:"session_id"`
	State           State                   `json:"state"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Error           string                  `json:"error,omitempty"`
}

// Session owns one draft State. Apply is safe for concurrent use but a
// websocket connection drives it from a single reader.
type Session struct {
	ID string

	rec  Recommender
	topN int

	mu    sync.Mutex
	state State
}

func NewSession(rec Recommender, initial State, topN int) *Session {
	return &Session{
		ID:    uuid.NewString(),
		rec:   rec,
		topN:  topN,
		state: initial.clone(),
	}
}

// State returns a copy of the current draft.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Apply performs msg and returns the resulting state with fresh
// recommendations. A rejected action leaves the state unchanged and is
// reported in Reply.Error.
func (s *Session) Apply(ctx context.Context, msg ClientMessage) Reply {
	s.mu.Lock()
	next, err := apply(s.state, msg)
	if err == nil {
		s.state = next
	}
	current := s.state.clone()
	s.mu.Unlock()

	reply := s.recommend(ctx, current)
	if err != nil {
		log.Printf("[DEBUG] Draft session %s rejected %s: %v", s.ID, msg.Type, err)
		reply.Error = err.Error()
	}
	return reply
}

// Snapshot recommends for the current state without changing it.
func (s *Session) Snapshot(ctx context.Context) Reply {
	return s.recommend(ctx, s.State())
}

func (s *Session) recommend(ctx context.Context, st State) Reply {
	reply := Reply{
		Type:            MsgState,
		SessionID:       s.ID,
		State:           st,
		Recommendations: []models.Recommendation{},
	}

	req := st.DraftState()
	if err := s.rec.Normalize(&req); err != nil {
		reply.Error = err.Error()
		return reply
	}
	recs, err := s.rec.Recommend(ctx, req, s.topN)
	if err != nil {
		log.Printf("[WARN] Draft session %s: recommendation failed: %v", s.ID, err)
		reply.Error = err.Error()
		return reply
	}
	reply.Recommendations = recs
	return reply
}

func apply(st State, msg ClientMessage) (State, error) {
	var p actionPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return st, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
	}

	switch msg.Type {
	case MsgToggle:
		return Toggle(st, p.Champion)
	case MsgPick:
		return Pick(st, p.Champion)
	case MsgSetMode:
		mode, err := ParseClickMode(p.Mode)
		if err != nil {
			return st, err
		}
		return WithMode(st, mode), nil
	case MsgSetRole:
		return WithRole(st, p.Role)
	case MsgSetPriority:
		if p.Priority == nil {
			return st, fmt.Errorf("priority is required")
		}
		return WithPriority(st, *p.Priority)
	case MsgSetPool:
		return WithPool(st, p.Pool), nil
	case MsgReset:
		return Reset(st), nil
	case MsgRefresh:
		return st, nil
	default:
		return st, fmt.Errorf("unknown message type '%s'", msg.Type)
	}
}
