package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"quiz-duel-server/game"
	"quiz-duel-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Kind tells the hub which protocol a connection speaks.
type Kind int

const (
	KindMatchmaking Kind = iota
	KindGame
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Kind     Kind
	UserID   string
	Username string
	Rating   int

	// Set for game connections only.
	MatchID string
	Game    *game.Game
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "tag", "ws", "user", c.UserID, "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// Malformed frames are dropped without closing the connection.
		slog.Debug("dropping malformed frame", "tag", "ws", "user", c.UserID, "err", err)
		return
	}

	switch c.Kind {
	case KindMatchmaking:
		c.handleMatchmakingAction(envelope)
	case KindGame:
		c.handleGameAction(envelope)
	}
}

func (c *Client) handleMatchmakingAction(envelope InboundEnvelope) {
	switch envelope.Action {
	case "cancel":
		// Only confirm when the entry was actually removed; once paired the
		// cancel is too late and match_found stands.
		if c.Hub.Matchmaker.Cancel(c.UserID) {
			c.SendJSON(MatchmakingCancelledMsg{Type: "matchmaking_cancelled"})
		}
	default:
		c.SendError("unknown_action", "Unknown action: "+envelope.Action)
	}
}

func (c *Client) handleGameAction(envelope InboundEnvelope) {
	if c.Game == nil {
		c.SendError("not_in_match", "No match attached to this session.")
		return
	}

	switch envelope.Action {
	case "ready":
		c.Game.Post(game.Action{Type: game.ActionReady, UserID: c.UserID})
	case "answer":
		var msg AnswerMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil {
			slog.Debug("dropping malformed answer", "tag", "ws", "user", c.UserID, "err", err)
			return
		}
		c.Game.Post(game.Action{
			Type:    game.ActionAnswer,
			UserID:  c.UserID,
			Answer:  msg.Answer,
			TimeSec: msg.Time,
		})
	case "emoji":
		var msg EmojiMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil {
			slog.Debug("dropping malformed emoji", "tag", "ws", "user", c.UserID, "err", err)
			return
		}
		c.Game.Post(game.Action{Type: game.ActionEmoji, UserID: c.UserID, Emoji: msg.Emoji})
	default:
		c.SendError("unknown_action", "Unknown action: "+envelope.Action)
	}
}

// SendJSON marshals v onto the client's send channel, dropping the frame if
// the channel is full or closed.
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling frame", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

// SendError sends an error frame with a short machine-readable code.
func (c *Client) SendError(code, message string) {
	c.SendJSON(ErrorMsg{Type: "error", Code: code, Message: message})
}
