package matchmaking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"quiz-duel-server/analytics"
	"quiz-duel-server/config"
	"quiz-duel-server/game"
	"quiz-duel-server/matcherrors"
	"quiz-duel-server/storage"
	"quiz-duel-server/ws"
)

// Matchmaker pairs waiting players in arrival order. One mutex guards the
// queue and the pairing itself, so no other connection can observe a state
// where a match exists but only one player was told.
type Matchmaker struct {
	mu    sync.Mutex
	queue []*ws.Client

	cfg       *config.Config
	store     storage.GameStore
	registry  *game.Registry
	analytics *analytics.Service
	hub       *ws.Hub
}

// NewMatchmaker creates a new Matchmaker.
func NewMatchmaker(cfg *config.Config, store storage.GameStore, registry *game.Registry, an *analytics.Service, hub *ws.Hub) *Matchmaker {
	return &Matchmaker{
		cfg:       cfg,
		store:     store,
		registry:  registry,
		analytics: an,
		hub:       hub,
	}
}

// Enqueue admits a client to the queue, pairing it immediately when an
// opponent is already waiting. A returned error is a refusal: the hub
// reports it as an error frame and closes the connection.
func (m *Matchmaker) Enqueue(c *ws.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, live := m.registry.MatchFor(c.UserID); live {
		return matcherrors.ErrAlreadyInGame
	}

	for i, waiting := range m.queue {
		if waiting.UserID != c.UserID {
			continue
		}
		if waiting == c {
			return matcherrors.ErrAlreadyQueued
		}
		// Fresh connection from a user we already hold: the newcomer
		// takes over the entry and keeps its queue position.
		m.queue[i] = c
		waiting.SendError("superseded", "Replaced by a newer connection.")
		// Posted off the lock. The hub may be mid-teardown inside
		// OnDisconnect, which needs this mutex before the hub can
		// drain Unregister again.
		go func(old *ws.Client) { m.hub.Unregister <- old }(waiting)
		slog.Info("queue entry superseded", "tag", "matchmaking", "user", c.UserID)
		c.SendJSON(ws.MatchmakingStartMsg{Type: "matchmaking_start", Message: "Searching for an opponent..."})
		return nil
	}

	// At most one entry per user, and this user holds none, so the head
	// waiter is always a valid opponent.
	if len(m.queue) > 0 {
		waiting := m.queue[0]
		m.queue = m.queue[1:]
		m.pair(waiting, c)
		return nil
	}

	m.queue = append(m.queue, c)
	c.SendJSON(ws.MatchmakingStartMsg{Type: "matchmaking_start", Message: "Searching for an opponent..."})
	slog.Info("player queued", "tag", "matchmaking", "user", c.UserID, "name", c.Username, "rating", c.Rating)
	m.analytics.QueueJoined(c.UserID)
	return nil
}

// pair creates the persistent match and its engine, then tells both players.
// Runs with the mutex held so the decision and both match_found frames are
// one atomic step. The waiter seats as player1.
func (m *Matchmaker) pair(p1, p2 *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := m.store.CreateMatchWithRounds(ctx, p1.UserID, p2.UserID, m.cfg.TotalRounds)
	if err != nil {
		slog.Error("creating match", "tag", "matchmaking", "player1", p1.UserID, "player2", p2.UserID, "err", err)
		fail := ws.PairingFailedMsg{Type: "pairing_failed", Reason: matcherrors.Code(err)}
		p1.SendJSON(fail)
		p2.SendJSON(fail)
		return
	}

	g := game.NewGame(rec, m.cfg, m.store, m.analytics)
	g.OnEnd = func(matchID string) {
		m.registry.Remove(matchID)
		m.hub.CloseMatch <- matchID
	}
	m.registry.Add(g)
	go g.Run()

	found := ws.MatchFoundMsg{
		Type: "match_found",
		Match: ws.MatchInfo{
			ID:          rec.ID,
			Player1:     playerInfo(rec.Player1),
			Player2:     playerInfo(rec.Player2),
			TotalRounds: rec.TotalRounds,
		},
	}
	p1.SendJSON(found)
	p2.SendJSON(found)

	slog.Info("match created", "tag", "matchmaking", "match", rec.ID, "player1", p1.UserID, "player2", p2.UserID)
	m.analytics.MatchCreated(rec.ID, rec.Player1.ID, rec.Player2.ID)
}

// Cancel removes the user's queue entry. It reports whether an entry was
// removed; false means the user was not waiting, usually because a pairing
// won the race, and in that case match_found stands.
func (m *Matchmaker) Cancel(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, waiting := range m.queue {
		if waiting.UserID == userID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			slog.Info("player left queue", "tag", "matchmaking", "user", userID)
			return true
		}
	}
	return false
}

// OnDisconnect drops the closing connection's queue entry. Matching is by
// client, not user id: when a newer connection superseded this one the entry
// belongs to the newcomer and must stay.
func (m *Matchmaker) OnDisconnect(c *ws.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, waiting := range m.queue {
		if waiting == c {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			slog.Info("queued player disconnected", "tag", "matchmaking", "user", c.UserID)
			return
		}
	}
}

// Waiting returns the number of players currently parked in the queue.
func (m *Matchmaker) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func playerInfo(u storage.UserRecord) ws.PlayerInfo {
	return ws.PlayerInfo{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Rating: u.Rating}
}
