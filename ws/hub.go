package ws

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"quiz-duel-server/auth"
	"quiz-duel-server/config"
	"quiz-duel-server/game"
	"quiz-duel-server/matcherrors"
	"quiz-duel-server/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MatchmakerInterface defines what the Hub needs from the Matchmaker.
type MatchmakerInterface interface {
	// Enqueue either parks the client or pairs it immediately; the
	// matchmaker itself sends matchmaking_start or match_found. A refusal
	// (AlreadyQueued, AlreadyInGame) comes back as an error.
	Enqueue(c *Client) error
	// Cancel removes the user's queue entry; reports whether one existed.
	Cancel(userID string) bool
	// OnDisconnect removes the queue entry only if it still belongs to
	// this exact client, so a superseding connection is never cancelled
	// by its predecessor's teardown.
	OnDisconnect(c *Client)
}

// Hub maintains the set of active clients, routes connection lifecycle
// events and tears down a match's sessions once its engine has finished.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	CloseMatch chan string

	Matchmaker MatchmakerInterface
	Registry   *game.Registry
	Store      storage.GameStore
	Auth       *auth.Validator
	Config     *config.Config
}

// NewHub creates a new Hub. The matchmaker is attached afterwards; it holds
// clients of this hub, so it is built second.
func NewHub(cfg *config.Config, store storage.GameStore, validator *auth.Validator, registry *game.Registry) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		CloseMatch: make(chan string, 16),
		Registry:   registry,
		Store:      store,
		Auth:       validator,
		Config:     cfg,
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run returns and no longer
// accepts new registrations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Print("Hub: shutdown signal received, stopping")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			log.Printf("Client connected (%s). Total clients: %d", client.UserID, len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				log.Printf("Client disconnected (%s). Total clients: %d", client.UserID, len(h.Clients))
				h.onClose(client)
			}

		case matchID := <-h.CloseMatch:
			// The engine is done; close its sessions. Queued frames
			// (match_end included) drain before the close frame goes out.
			n := 0
			for client := range h.Clients {
				if client.Kind == KindGame && client.MatchID == matchID {
					delete(h.Clients, client)
					close(client.Send)
					n++
				}
			}
			slog.Info("match sessions closed", "tag", "ws", "match", matchID, "sessions", n)
		}
	}
}

// onClose runs the per-kind teardown after a client left the map.
func (h *Hub) onClose(client *Client) {
	switch client.Kind {
	case KindMatchmaking:
		h.Matchmaker.OnDisconnect(client)
	case KindGame:
		if client.Game != nil {
			// Carries the session's channel so a seat already taken over
			// by a newer connection is left attached.
			go client.Game.Post(game.Action{
				Type:   game.ActionPlayerDisconnected,
				UserID: client.UserID,
				Send:   client.Send,
			})
		}
	}

	// Another live session (a superseding connection, or the game session
	// opened after matchmaking) keeps the user online.
	for other := range h.Clients {
		if other.UserID == client.UserID {
			return
		}
	}
	// Presence is best effort; the row flips back on the next connect.
	go func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.Store.SetOnline(ctx, userID, false); err != nil {
			slog.Warn("marking user offline", "tag", "ws", "user", userID, "err", err)
		}
	}(client.UserID)
}

// ServeMatchmaking handles a matchmaking WebSocket connect: authenticate,
// ensure the user row, mark online, upgrade, enqueue.
func (h *Hub) ServeMatchmaking(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := auth.UserIDFromClaims(claims)
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	user, err := h.Store.EnsureUser(ctx, userID, auth.UsernameFromClaims(claims), auth.AvatarFromClaims(claims))
	if err != nil {
		slog.Error("ensuring user", "tag", "ws", "user", userID, "err", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := h.Store.SetOnline(ctx, userID, true); err != nil {
		slog.Warn("marking user online", "tag", "ws", "user", userID, "err", err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Kind:     KindMatchmaking,
		UserID:   user.ID,
		Username: user.Username,
		Rating:   user.Rating,
	}

	h.Register <- client
	go client.WritePump()
	go client.ReadPump()

	if err := h.Matchmaker.Enqueue(client); err != nil {
		// Refused: error frame, then close.
		client.SendError(matcherrors.Code(err), err.Error())
		h.Unregister <- client
	}
}

// ServeGame handles a game WebSocket connect for one match: authenticate,
// verify participation, attach to the live engine.
func (h *Hub) ServeGame(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID := auth.UserIDFromClaims(claims)
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	matchID := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	ok, err := h.Store.VerifyPlayerInMatch(ctx, matchID, userID)
	if err != nil {
		if errors.Is(err, matcherrors.ErrMatchNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		slog.Error("verifying participant", "tag", "ws", "match", matchID, "err", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}

	g, live := h.Registry.Get(matchID)
	if !live {
		http.Error(w, "match is not running", http.StatusGone)
		return
	}

	if err := h.Store.SetOnline(ctx, userID, true); err != nil {
		slog.Warn("marking user online", "tag", "ws", "user", userID, "err", err)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Kind:    KindGame,
		UserID:  userID,
		MatchID: matchID,
		Game:    g,
	}

	h.Register <- client
	go client.WritePump()
	go client.ReadPump()

	g.Post(game.Action{Type: game.ActionJoin, UserID: userID, Send: client.Send})
}

// authenticate pulls the JWT from the query string or Authorization header.
// Browsers cannot set headers on a WebSocket dial, so ?token= is the primary
// path.
func (h *Hub) authenticate(r *http.Request) (jwt.MapClaims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if after, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
			token = after
		}
	}
	return h.Auth.Validate(token)
}
