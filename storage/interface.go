package storage

import "context"

// GameStore is the persistence gateway used by matchmaking, the game engine
// and the HTTP API. *Store implements it against Postgres; *MemStore keeps
// everything in memory for tests and for running without a DATABASE_URL.
type GameStore interface {
	// Users
	EnsureUser(ctx context.Context, id, username, avatar string) (*UserRecord, error)
	GetUser(ctx context.Context, id string) (*UserRecord, error)
	SetOnline(ctx context.Context, userID string, online bool) error

	// Match lifecycle
	CreateMatchWithRounds(ctx context.Context, player1ID, player2ID string, totalRounds int) (*MatchRecord, error)
	VerifyPlayerInMatch(ctx context.Context, matchID, userID string) (bool, error)
	SetCurrentRound(ctx context.Context, matchID string, round int) error
	RecordRoundResult(ctx context.Context, res RoundResult) error
	GetRound(ctx context.Context, matchID string, number int) (*RoundRecord, error)
	GetMatchScores(ctx context.Context, matchID string) (score1, score2 int, err error)
	FinalizeMatch(ctx context.Context, matchID string) (*MatchOutcome, error)

	// Question bank and read APIs
	RandomQuestions(ctx context.Context, n int, categoryID string) ([]QuestionRecord, error)
	ListMatchHistory(ctx context.Context, userID string, limit int) ([]HistoryRecord, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	ListCategories(ctx context.Context) ([]CategoryRecord, error)

	// Lifecycle
	Close()
}

var (
	_ GameStore = (*Store)(nil)
	_ GameStore = (*MemStore)(nil)
)
