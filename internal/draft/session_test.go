package draft

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/draftforme-backend/internal/models"
)

// echoRecommender returns one recommendation per enemy pick so tests can see
// which state was scored.
type echoRecommender struct {
	mu       sync.Mutex
	requests []models.DraftState
	err      error
}

func (e *echoRecommender) Normalize(state *models.DraftState) error {
	if state.Region == "" {
		state.Region = "euw"
	}
	return nil
}

func (e *echoRecommender) Recommend(ctx context.Context, state models.DraftState, topN int) ([]models.Recommendation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, state)
	if e.err != nil {
		return nil, e.err
	}
	recs := []models.Recommendation{{Champion: "Ahri", TotalScore: 80 - len(state.EnemyPicks)}}
	return recs, nil
}

func msg(t *testing.T, typ string, payload interface{}) ClientMessage {
	t.Helper()
	m := ClientMessage{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		m.Payload = data
	}
	return m
}

func TestSessionApply(t *testing.T) {
	rec := &echoRecommender{}
	s := NewSession(rec, New("euw", "emerald_plus", models.RoleMid), 5)
	ctx := context.Background()

	reply := s.Apply(ctx, msg(t, MsgToggle, map[string]string{"champion": "Zed"}))
	assert.Equal(t, MsgState, reply.Type)
	assert.Equal(t, s.ID, reply.SessionID)
	assert.Empty(t, reply.Error)
	assert.Equal(t, []string{"Zed"}, reply.State.EnemyPicks)
	require.Len(t, reply.Recommendations, 1)
	assert.Equal(t, 79, reply.Recommendations[0].TotalScore)

	reply = s.Apply(ctx, msg(t, MsgSetMode, map[string]string{"mode": "ban"}))
	assert.Equal(t, ModeBan, reply.State.Mode)

	reply = s.Apply(ctx, msg(t, MsgToggle, map[string]string{"champion": "Yasuo"}))
	assert.Equal(t, []string{"Yasuo"}, reply.State.Banned)

	reply = s.Apply(ctx, msg(t, MsgSetPriority, map[string]int{"priority": 90}))
	assert.Equal(t, 90, reply.State.Priority)

	reply = s.Apply(ctx, msg(t, MsgSetRole, map[string]string{"role": "jungle"}))
	assert.Equal(t, models.RoleJungle, reply.State.Role)

	reply = s.Apply(ctx, msg(t, MsgSetPool, map[string]interface{}{
		"pool": []models.PlayerChampionPreference{{Champion: "Lee Sin", Games: 30, WinRate: 55}},
	}))
	require.Len(t, reply.State.Pool, 1)

	reply = s.Apply(ctx, msg(t, MsgPick, map[string]string{"champion": "Jinx"}))
	assert.Equal(t, []string{"Jinx"}, reply.State.AlreadyPicked)

	reply = s.Apply(ctx, msg(t, MsgReset, nil))
	assert.Empty(t, reply.State.EnemyPicks)
	assert.Empty(t, reply.State.Banned)
	assert.Equal(t, 90, reply.State.Priority)

	last := rec.requests[len(rec.requests)-1]
	assert.Equal(t, models.RoleJungle, last.Role)
	assert.Equal(t, 90, last.PriorityWeight)
	assert.Len(t, last.PlayerPool, 1)
}

func TestSessionRejectsBadActions(t *testing.T) {
	s := NewSession(&echoRecommender{}, New("euw", "emerald_plus", models.RoleMid), 5)
	ctx := context.Background()
	before := s.State()

	tests := []struct {
		name string
		msg  ClientMessage
		want string
	}{
		{"unknown type", ClientMessage{Type: "dance"}, "unknown message type"},
		{"bad payload", ClientMessage{Type: MsgToggle, Payload: json.RawMessage(`[1,2]`)}, "invalid toggle payload"},
		{"missing champion", msg(t, MsgToggle, map[string]string{}), "champion name is required"},
		{"bad mode", msg(t, MsgSetMode, map[string]string{"mode": "pick"}), "unknown click mode"},
		{"missing priority", msg(t, MsgSetPriority, map[string]string{}), "priority is required"},
		{"priority out of range", msg(t, MsgSetPriority, map[string]int{"priority": 101}), "outside 0..100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := s.Apply(ctx, tt.msg)
			assert.Contains(t, reply.Error, tt.want)
			assert.Equal(t, before, reply.State)
			assert.Len(t, reply.Recommendations, 1, "recommendations still served")
		})
	}
}

func TestSessionRecommendationFailure(t *testing.T) {
	s := NewSession(&echoRecommender{err: errors.New("stats unavailable")}, New("euw", "emerald_plus", models.RoleTop), 5)

	reply := s.Apply(context.Background(), msg(t, MsgToggle, map[string]string{"champion": "Darius"}))
	assert.Equal(t, "stats unavailable", reply.Error)
	assert.Equal(t, []string{"Darius"}, reply.State.EnemyPicks)
	assert.NotNil(t, reply.Recommendations)
	assert.Empty(t, reply.Recommendations)
}

type sessionCounter struct {
	mu           sync.Mutex
	open, closed int
}

func (c *sessionCounter) SessionOpened() { c.mu.Lock(); c.open++; c.mu.Unlock() }
func (c *sessionCounter) SessionClosed() { c.mu.Lock(); c.closed++; c.mu.Unlock() }

func (c *sessionCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open, c.closed
}

func TestServeWS(t *testing.T) {
	counter := &sessionCounter{}
	srv := NewServer(&echoRecommender{}, "euw", "emerald_plus", 5, []string{"*"}, counter)
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "?role=support&priority=30&region=kr"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial Reply
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, MsgState, initial.Type)
	assert.NotEmpty(t, initial.SessionID)
	assert.Equal(t, models.RoleSupport, initial.State.Role)
	assert.Equal(t, "kr", initial.State.Region)
	assert.Equal(t, 30, initial.State.Priority)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgToggle, Payload: json.RawMessage(`{"champion":"Pyke"}`)}))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, initial.SessionID, reply.SessionID)
	assert.Equal(t, []string{"Pyke"}, reply.State.EnemyPicks)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Contains(t, reply.Error, "malformed message")
	assert.Equal(t, []string{"Pyke"}, reply.State.EnemyPicks)

	open, _ := counter.counts()
	assert.Equal(t, 1, open)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		_, closed := counter.counts()
		return closed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWSRejectsForeignOrigin(t *testing.T) {
	srv := NewServer(&echoRecommender{}, "euw", "emerald_plus", 5, []string{"http://localhost:3000"}, nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	defer ts.Close()

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
