package game

import (
	"encoding/json"
	"log/slog"

	"quiz-duel-server/storage"
	"quiz-duel-server/wsutil"
)

// Outbound frames for the in-match protocol. Every frame carries a "type"
// discriminator; clients switch on it.

type ConnectedMsg struct {
	Type         string `json:"type"`
	MatchID      string `json:"match_id"`
	PlayersReady int    `json:"players_ready"`
}

type GameStartMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OptionsView is the answer sheet shown to players.
type OptionsView struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// QuestionView is the question as broadcast at round start. It deliberately
// omits the correct option and the explanation.
type QuestionView struct {
	ID       string      `json:"id"`
	Text     string      `json:"text"`
	Options  OptionsView `json:"options"`
	Category string      `json:"category"`
}

type QuestionStartMsg struct {
	Type     string       `json:"type"`
	Round    int          `json:"round"`
	Question QuestionView `json:"question"`
}

type AnswerSubmittedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// PlayerRoundView is one player's revealed result in a round_end frame.
// Answer is null when the player never answered.
type PlayerRoundView struct {
	Answer  *string `json:"answer"`
	Time    float64 `json:"time"`
	Score   int     `json:"score"`
	Correct bool    `json:"correct"`
}

type RoundResultView struct {
	CorrectAnswer string                     `json:"correct_answer"`
	Explanation   string                     `json:"explanation"`
	Players       map[string]PlayerRoundView `json:"players"`
	TotalScores   map[string]int             `json:"total_scores"`
}

type RoundEndMsg struct {
	Type   string          `json:"type"`
	Round  int             `json:"round"`
	Result RoundResultView `json:"result"`
}

// MatchResultView is the final summary. WinnerID is omitted on a draw;
// Rounds carries the full per-round review including correct options.
type MatchResultView struct {
	WinnerID string                `json:"winner_id,omitempty"`
	Player1  storage.PlayerOutcome `json:"player1"`
	Player2  storage.PlayerOutcome `json:"player2"`
	Rounds   []storage.RoundRecord `json:"rounds"`
}

type MatchEndMsg struct {
	Type   string          `json:"type"`
	Result MatchResultView `json:"result"`
}

type EmojiReceivedMsg struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

func questionView(q storage.QuestionRecord) QuestionView {
	return QuestionView{
		ID:       q.ID,
		Text:     q.Text,
		Options:  OptionsView{A: q.OptionA, B: q.OptionB, C: q.OptionC, D: q.OptionD},
		Category: q.Category,
	}
}

// send marshals v and delivers it to one seat. Seats without an attached
// sink are skipped.
func (g *Game) send(idx int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling frame", "tag", "game", "match", g.MatchID, "err", err)
		return
	}
	if p := g.Players[idx]; p != nil && p.Send != nil {
		wsutil.SafeSend(p.Send, data)
	}
}

func (g *Game) broadcast(v interface{}) {
	for i := 0; i < 2; i++ {
		g.send(i, v)
	}
}
