package storage

import "time"

// InitialRating is the rating assigned to a user on first sight.
const InitialRating = 1000

// Match status values. Transitions are monotonic:
// waiting -> in_progress -> completed. Cancelled is terminal from waiting.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// UserRecord is a persisted player.
type UserRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Rating    int       `json:"rating"`
	Level     int       `json:"level"`
	Wins      int       `json:"wins"`
	Losses    int       `json:"losses"`
	IsOnline  bool      `json:"is_online"`
	IsInGame  bool      `json:"is_in_game"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryRecord is a question category.
type CategoryRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// QuestionRecord is a multiple-choice question. CorrectOption is one of
// "A", "B", "C", "D"; Category is the display name (already joined).
type QuestionRecord struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"correct_option"`
	Explanation   string `json:"explanation"`
	CategoryID    string `json:"-"`
	Category      string `json:"category"`
	Difficulty    int    `json:"difficulty"`
}

// AnswerRecord is one player's result for one round. Answer is nil until the
// round is recorded, and stays nil for a missing answer.
type AnswerRecord struct {
	Answer  *string `json:"answer"`
	TimeSec float64 `json:"time"`
	Score   int     `json:"score"`
	Correct bool    `json:"correct"`
}

// RoundRecord is one round of a match with its question and, once recorded,
// both players' results.
type RoundRecord struct {
	Number   int            `json:"round_number"`
	Question QuestionRecord `json:"question"`
	Player1  AnswerRecord   `json:"player1"`
	Player2  AnswerRecord   `json:"player2"`
	Recorded bool           `json:"-"`
}

// MatchRecord is a persisted match. Rounds are populated by
// CreateMatchWithRounds (questions only) and FinalizeMatch (full results).
type MatchRecord struct {
	ID           string        `json:"id"`
	Player1      UserRecord    `json:"player1"`
	Player2      UserRecord    `json:"player2"`
	Score1       int           `json:"score1"`
	Score2       int           `json:"score2"`
	WinnerID     string        `json:"winner_id,omitempty"`
	Status       string        `json:"status"`
	CurrentRound int           `json:"current_round"`
	TotalRounds  int           `json:"total_rounds"`
	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	Rounds       []RoundRecord `json:"rounds,omitempty"`
}

// RoundResult is the write payload for one finished round.
type RoundResult struct {
	MatchID string
	Number  int
	Player1 AnswerRecord
	Player2 AnswerRecord
}

// PlayerOutcome is one player's final result within a MatchOutcome.
type PlayerOutcome struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Score        int    `json:"score"`
	OldRating    int    `json:"old_rating"`
	NewRating    int    `json:"new_rating"`
	RatingChange int    `json:"rating_change"`
	Level        int    `json:"level"`
	IsWinner     bool   `json:"is_winner"`
}

// MatchOutcome is the committed result of FinalizeMatch: the winner, both
// players' rating movements, and the full per-round review.
type MatchOutcome struct {
	MatchID  string        `json:"match_id"`
	WinnerID string        `json:"winner_id,omitempty"`
	Player1  PlayerOutcome `json:"player1"`
	Player2  PlayerOutcome `json:"player2"`
	Rounds   []RoundRecord `json:"rounds"`
}

// HistoryRecord is one user's view of a completed match. Exactly two rows
// exist per completed match, one per participant.
type HistoryRecord struct {
	ID            string    `json:"id"`
	MatchID       string    `json:"match_id"`
	UserID        string    `json:"user_id"`
	OpponentID    string    `json:"opponent_id"`
	OpponentName  string    `json:"opponent_name"`
	UserScore     int       `json:"user_score"`
	OpponentScore int       `json:"opponent_score"`
	IsWinner      bool      `json:"is_winner"`
	RatingChange  int       `json:"rating_change"`
	PlayedAt      time.Time `json:"played_at"`
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Rating   int    `json:"rating"`
	Level    int    `json:"level"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}
