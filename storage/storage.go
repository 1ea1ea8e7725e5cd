package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-duel-server/matcherrors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL DEFAULT '',
	avatar     TEXT NOT NULL DEFAULT '',
	rating     INT  NOT NULL DEFAULT 1000,
	level      INT  NOT NULL DEFAULT 1,
	wins       INT  NOT NULL DEFAULT 0,
	losses     INT  NOT NULL DEFAULT 0,
	is_online  BOOLEAN NOT NULL DEFAULT FALSE,
	is_in_game BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_users_rating ON users(rating DESC);
CREATE TABLE IF NOT EXISTS categories (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	icon TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS questions (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	text           TEXT NOT NULL,
	option_a       TEXT NOT NULL,
	option_b       TEXT NOT NULL,
	option_c       TEXT NOT NULL,
	option_d       TEXT NOT NULL,
	correct_option TEXT NOT NULL,
	explanation    TEXT NOT NULL DEFAULT '',
	category_id    TEXT REFERENCES categories(id),
	difficulty     INT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category_id);
CREATE TABLE IF NOT EXISTS matches (
	id            UUID PRIMARY KEY,
	player1_id    TEXT NOT NULL REFERENCES users(id),
	player2_id    TEXT NOT NULL REFERENCES users(id),
	score1        INT  NOT NULL DEFAULT 0,
	score2        INT  NOT NULL DEFAULT 0,
	winner_id     TEXT,
	status        TEXT NOT NULL DEFAULT 'waiting',
	current_round INT  NOT NULL DEFAULT 0,
	total_rounds  INT  NOT NULL DEFAULT 5,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at    TIMESTAMPTZ,
	ended_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches(player1_id);
CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches(player2_id);
CREATE TABLE IF NOT EXISTS rounds (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	match_id       UUID NOT NULL REFERENCES matches(id),
	round_number   INT  NOT NULL,
	question_id    UUID NOT NULL REFERENCES questions(id),
	player1_answer TEXT,
	player2_answer TEXT,
	player1_time   REAL,
	player2_time   REAL,
	player1_score  INT NOT NULL DEFAULT 0,
	player2_score  INT NOT NULL DEFAULT 0,
	UNIQUE (match_id, round_number)
);
CREATE INDEX IF NOT EXISTS idx_rounds_match ON rounds(match_id);
CREATE TABLE IF NOT EXISTS match_history (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id),
	match_id       UUID NOT NULL REFERENCES matches(id),
	opponent_id    TEXT NOT NULL,
	user_score     INT  NOT NULL,
	opponent_score INT  NOT NULL,
	is_winner      BOOLEAN NOT NULL,
	rating_change  INT  NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_match_history_user ON match_history(user_id);
CREATE INDEX IF NOT EXISTS idx_match_history_match ON match_history(match_id);
`

const selectUserSQL = `
	SELECT id, username, avatar, rating, level, wins, losses, is_online, is_in_game, created_at
	FROM users WHERE id = $1`

const selectRoundSQL = `
	SELECT r.round_number, q.id, q.text, q.option_a, q.option_b, q.option_c, q.option_d,
		q.correct_option, q.explanation, COALESCE(q.category_id, ''), COALESCE(c.name, ''), q.difficulty,
		r.player1_answer, r.player2_answer,
		COALESCE(r.player1_time, 0), COALESCE(r.player2_time, 0),
		r.player1_score, r.player2_score
	FROM rounds r
	JOIN questions q ON q.id = r.question_id
	LEFT JOIN categories c ON c.id = q.category_id`

// Store persists users, questions, matches, rounds and history in Postgres.
type Store struct {
	pool   *pgxpool.Pool
	policy RatingPolicy
}

// NewStore connects to Postgres, ensures the schema exists, and returns a
// Store that applies the given rating policy on match finalization.
func NewStore(ctx context.Context, databaseURL string, policy RatingPolicy) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool, policy: policy}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// EnsureUser inserts the user if unseen, refreshes username/avatar when the
// token carries non-empty values, and returns the current row.
func (s *Store) EnsureUser(ctx context.Context, id, username, avatar string) (*UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, avatar, rating, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
			avatar   = COALESCE(NULLIF(EXCLUDED.avatar, ''), users.avatar)
		RETURNING id, username, avatar, rating, level, wins, losses, is_online, is_in_game, created_at`,
		id, username, avatar, InitialRating, s.policy.Level(InitialRating))
	return scanUser(row)
}

// GetUser returns the user row, or (nil, nil) when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, selectUserSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// SetOnline flips the user's online flag.
func (s *Store) SetOnline(ctx context.Context, userID string, online bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET is_online = $2 WHERE id = $1`, userID, online)
	return err
}

// CreateMatchWithRounds creates an in_progress match between the two players,
// draws totalRounds random questions as rounds 1..N, and marks both users
// in-game. Runs in one transaction so a failed pairing leaves nothing behind.
func (s *Store) CreateMatchWithRounds(ctx context.Context, player1ID, player2ID string, totalRounds int) (*MatchRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	p1, err := scanUser(tx.QueryRow(ctx, selectUserSQL, player1ID))
	if err != nil {
		return nil, fmt.Errorf("loading player1: %w", err)
	}
	p2, err := scanUser(tx.QueryRow(ctx, selectUserSQL, player2ID))
	if err != nil {
		return nil, fmt.Errorf("loading player2: %w", err)
	}

	questions, err := randomQuestions(ctx, tx, totalRounds, "")
	if err != nil {
		return nil, err
	}

	matchID := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, status, total_rounds, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		matchID, player1ID, player2ID, StatusInProgress, totalRounds, now)
	if err != nil {
		return nil, err
	}

	rounds := make([]RoundRecord, 0, totalRounds)
	for i, q := range questions {
		_, err = tx.Exec(ctx, `
			INSERT INTO rounds (match_id, round_number, question_id)
			VALUES ($1, $2, $3)`,
			matchID, i+1, q.ID)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, RoundRecord{Number: i + 1, Question: q})
	}

	_, err = tx.Exec(ctx, `UPDATE users SET is_in_game = TRUE WHERE id = $1 OR id = $2`, player1ID, player2ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &MatchRecord{
		ID:          matchID,
		Player1:     *p1,
		Player2:     *p2,
		Status:      StatusInProgress,
		TotalRounds: totalRounds,
		CreatedAt:   now,
		StartedAt:   now,
		Rounds:      rounds,
	}, nil
}

// VerifyPlayerInMatch reports whether userID is one of the match's players.
// Returns ErrMatchNotFound when the match does not exist.
func (s *Store) VerifyPlayerInMatch(ctx context.Context, matchID, userID string) (bool, error) {
	var p1, p2 string
	err := s.pool.QueryRow(ctx, `SELECT player1_id, player2_id FROM matches WHERE id = $1`, matchID).Scan(&p1, &p2)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, matcherrors.ErrMatchNotFound
	}
	if err != nil {
		return false, err
	}
	return userID == p1 || userID == p2, nil
}

// SetCurrentRound persists the round counter at round start.
func (s *Store) SetCurrentRound(ctx context.Context, matchID string, round int) error {
	_, err := s.pool.Exec(ctx, `UPDATE matches SET current_round = $2 WHERE id = $1`, matchID, round)
	return err
}

// RecordRoundResult writes both players' answers, latencies and scores for
// one round and adds the round scores to the match totals atomically.
func (s *Store) RecordRoundResult(ctx context.Context, res RoundResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rounds SET
			player1_answer = $1, player2_answer = $2,
			player1_time = $3, player2_time = $4,
			player1_score = $5, player2_score = $6
		WHERE match_id = $7 AND round_number = $8`,
		res.Player1.Answer, res.Player2.Answer,
		res.Player1.TimeSec, res.Player2.TimeSec,
		res.Player1.Score, res.Player2.Score,
		res.MatchID, res.Number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return matcherrors.ErrMatchNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE matches SET score1 = score1 + $1, score2 = score2 + $2
		WHERE id = $3 AND status = $4`,
		res.Player1.Score, res.Player2.Score, res.MatchID, StatusInProgress)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetRound returns one round with its question and any recorded results.
func (s *Store) GetRound(ctx context.Context, matchID string, number int) (*RoundRecord, error) {
	row := s.pool.QueryRow(ctx, selectRoundSQL+`
		WHERE r.match_id = $1 AND r.round_number = $2`, matchID, number)
	rec, err := scanRound(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, matcherrors.ErrMatchNotFound
	}
	return rec, err
}

// GetMatchScores returns the current match totals.
func (s *Store) GetMatchScores(ctx context.Context, matchID string) (int, int, error) {
	var s1, s2 int
	err := s.pool.QueryRow(ctx, `SELECT score1, score2 FROM matches WHERE id = $1`, matchID).Scan(&s1, &s2)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, matcherrors.ErrMatchNotFound
	}
	return s1, s2, err
}

// FinalizeMatch completes an in_progress match: decides the winner from the
// stored totals, applies the rating policy to both players, clears their
// in-game flags, inserts the two history rows, and loads the round review.
// Everything runs in one transaction; a second call returns ErrMatchFinished.
func (s *Store) FinalizeMatch(ctx context.Context, matchID string) (*MatchOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var p1ID, p2ID, status string
	var score1, score2 int
	err = tx.QueryRow(ctx, `
		SELECT player1_id, player2_id, score1, score2, status
		FROM matches WHERE id = $1 FOR UPDATE`, matchID).
		Scan(&p1ID, &p2ID, &score1, &score2, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, matcherrors.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != StatusInProgress {
		return nil, matcherrors.ErrMatchFinished
	}

	winnerID := ""
	switch {
	case score1 > score2:
		winnerID = p1ID
	case score2 > score1:
		winnerID = p2ID
	}

	out1, err := s.settlePlayer(ctx, tx, p1ID, score1, winnerID)
	if err != nil {
		return nil, err
	}
	out2, err := s.settlePlayer(ctx, tx, p2ID, score2, winnerID)
	if err != nil {
		return nil, err
	}

	var winner *string
	if winnerID != "" {
		winner = &winnerID
	}
	_, err = tx.Exec(ctx, `
		UPDATE matches SET status = $2, winner_id = $3, ended_at = now()
		WHERE id = $1`, matchID, StatusCompleted, winner)
	if err != nil {
		return nil, err
	}

	const historySQL = `
		INSERT INTO match_history (id, user_id, match_id, opponent_id, user_score, opponent_score, is_winner, rating_change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.Exec(ctx, historySQL, uuid.NewString(), p1ID, matchID, p2ID, score1, score2, out1.IsWinner, out1.RatingChange)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, historySQL, uuid.NewString(), p2ID, matchID, p1ID, score2, score1, out2.IsWinner, out2.RatingChange)
	if err != nil {
		return nil, err
	}

	rounds, err := loadRounds(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &MatchOutcome{
		MatchID:  matchID,
		WinnerID: winnerID,
		Player1:  *out1,
		Player2:  *out2,
		Rounds:   rounds,
	}, nil
}

// settlePlayer applies the rating policy and stat increments for one player
// inside the finalization transaction.
func (s *Store) settlePlayer(ctx context.Context, tx pgx.Tx, userID string, ownScore int, winnerID string) (*PlayerOutcome, error) {
	var username string
	var rating, wins, losses int
	err := tx.QueryRow(ctx, `
		SELECT username, rating, wins, losses FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&username, &rating, &wins, &losses)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}

	outcome := OutcomeDraw
	switch winnerID {
	case "":
	case userID:
		outcome = OutcomeWin
		wins++
	default:
		outcome = OutcomeLoss
		losses++
	}
	newRating, delta := s.policy.Apply(rating, outcome)
	level := s.policy.Level(newRating)

	_, err = tx.Exec(ctx, `
		UPDATE users SET rating = $2, level = $3, wins = $4, losses = $5, is_in_game = FALSE
		WHERE id = $1`, userID, newRating, level, wins, losses)
	if err != nil {
		return nil, err
	}
	return &PlayerOutcome{
		ID:           userID,
		Username:     username,
		Score:        ownScore,
		OldRating:    rating,
		NewRating:    newRating,
		RatingChange: delta,
		Level:        level,
		IsWinner:     outcome == OutcomeWin,
	}, nil
}

// RandomQuestions draws n questions uniformly without replacement, optionally
// restricted to a category.
func (s *Store) RandomQuestions(ctx context.Context, n int, categoryID string) ([]QuestionRecord, error) {
	return randomQuestions(ctx, s.pool, n, categoryID)
}

// ListMatchHistory returns the user's history rows, newest first.
func (s *Store) ListMatchHistory(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT h.id, h.match_id, h.user_id, h.opponent_id, COALESCE(u.username, ''),
			h.user_score, h.opponent_score, h.is_winner, h.rating_change, h.created_at
		FROM match_history h
		LEFT JOIN users u ON u.id = h.opponent_id
		WHERE h.user_id = $1
		ORDER BY h.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []HistoryRecord{}
	for rows.Next() {
		var h HistoryRecord
		if err := rows.Scan(&h.ID, &h.MatchID, &h.UserID, &h.OpponentID, &h.OpponentName,
			&h.UserScore, &h.OpponentScore, &h.IsWinner, &h.RatingChange, &h.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListLeaderboard returns users ordered by rating DESC, with optional limit and offset.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, avatar, rating, level, wins, losses
		FROM users
		ORDER BY rating DESC, username ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Avatar, &e.Rating, &e.Level, &e.Wins, &e.Losses); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]CategoryRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryRecord{}
	for rows.Next() {
		var c CategoryRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// randomQuestions draws n random questions, failing with
// ErrInsufficientQuestions when the bank cannot cover the request.
func randomQuestions(ctx context.Context, q querier, n int, categoryID string) ([]QuestionRecord, error) {
	if n <= 0 {
		return []QuestionRecord{}, nil
	}
	sql := `
		SELECT q.id, q.text, q.option_a, q.option_b, q.option_c, q.option_d,
			q.correct_option, q.explanation, COALESCE(q.category_id, ''), COALESCE(c.name, ''), q.difficulty
		FROM questions q
		LEFT JOIN categories c ON c.id = q.category_id`
	args := []any{n}
	if categoryID != "" {
		sql += ` WHERE q.category_id = $2`
		args = append(args, categoryID)
	}
	sql += ` ORDER BY random() LIMIT $1`

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]QuestionRecord, 0, n)
	for rows.Next() {
		var qr QuestionRecord
		if err := rows.Scan(&qr.ID, &qr.Text, &qr.OptionA, &qr.OptionB, &qr.OptionC, &qr.OptionD,
			&qr.CorrectOption, &qr.Explanation, &qr.CategoryID, &qr.Category, &qr.Difficulty); err != nil {
			return nil, err
		}
		out = append(out, qr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) < n {
		return nil, matcherrors.ErrInsufficientQuestions
	}
	return out, nil
}

// loadRounds loads the full round review for a match in round order.
func loadRounds(ctx context.Context, tx pgx.Tx, matchID string) ([]RoundRecord, error) {
	rows, err := tx.Query(ctx, selectRoundSQL+`
		WHERE r.match_id = $1
		ORDER BY r.round_number`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RoundRecord{}
	for rows.Next() {
		rec, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Username, &u.Avatar, &u.Rating, &u.Level,
		&u.Wins, &u.Losses, &u.IsOnline, &u.IsInGame, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanRound(row rowScanner) (*RoundRecord, error) {
	var r RoundRecord
	var t1, t2 float64
	err := row.Scan(&r.Number, &r.Question.ID, &r.Question.Text,
		&r.Question.OptionA, &r.Question.OptionB, &r.Question.OptionC, &r.Question.OptionD,
		&r.Question.CorrectOption, &r.Question.Explanation, &r.Question.CategoryID, &r.Question.Category, &r.Question.Difficulty,
		&r.Player1.Answer, &r.Player2.Answer, &t1, &t2,
		&r.Player1.Score, &r.Player2.Score)
	if err != nil {
		return nil, err
	}
	r.Player1.TimeSec = t1
	r.Player2.TimeSec = t2
	r.Player1.Correct = r.Player1.Answer != nil && *r.Player1.Answer == r.Question.CorrectOption
	r.Player2.Correct = r.Player2.Answer != nil && *r.Player2.Answer == r.Question.CorrectOption
	return &r, nil
}
