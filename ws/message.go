package ws

import "encoding/json"

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Action field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Action string          `json:"action"`
	Raw    json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	// Unmarshal just the action field
	type actionOnly struct {
		Action string `json:"action"`
	}
	var a actionOnly
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	e.Action = a.Action
	e.Raw = json.RawMessage(data)
	return nil
}

// --- Client-to-Server message payloads ---

// AnswerMsg submits an option for the current round. Time is the
// client-measured latency in seconds; the server clamps it against its own
// clock.
type AnswerMsg struct {
	Action string  `json:"action"`
	Answer string  `json:"answer"`
	Time   float64 `json:"time"`
}

// EmojiMsg relays an emoji to the opponent.
type EmojiMsg struct {
	Action string `json:"action"`
	Emoji  string `json:"emoji"`
}

// --- Server-to-Client messages ---
// In-match frames (question_start, round_end, ...) are owned by the game
// package; the frames here belong to the matchmaking connection.

// ErrorMsg is sent when a client request is invalid. Code is a short
// machine-readable cause; Message is for humans.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// MatchmakingStartMsg confirms the player entered the queue.
type MatchmakingStartMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MatchmakingCancelledMsg confirms the player left the queue.
type MatchmakingCancelledMsg struct {
	Type string `json:"type"`
}

// PlayerInfo describes one paired player in a match_found frame.
type PlayerInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Rating   int    `json:"rating"`
}

// MatchInfo is the pairing summary carried by match_found.
type MatchInfo struct {
	ID          string     `json:"id"`
	Player1     PlayerInfo `json:"player1"`
	Player2     PlayerInfo `json:"player2"`
	TotalRounds int        `json:"total_rounds"`
}

// MatchFoundMsg is sent to both players when they are paired. Clients open
// their game connection with the match id it carries.
type MatchFoundMsg struct {
	Type  string    `json:"type"`
	Match MatchInfo `json:"match"`
}

// PairingFailedMsg is sent to both candidates when match creation fails;
// both stay eligible to queue again.
type PairingFailedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
