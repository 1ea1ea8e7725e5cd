package storage

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-duel-server/matcherrors"
)

// MemStore is an in-memory GameStore. It backs the server when no
// DATABASE_URL is configured and doubles as the test fixture, so it follows
// the same semantics as the Postgres store (one logical mutation per call,
// finalize-once, insufficient-question errors).
type MemStore struct {
	mu         sync.Mutex
	policy     RatingPolicy
	users      map[string]*UserRecord
	categories []CategoryRecord
	questions  []QuestionRecord
	matches    map[string]*MatchRecord
	history    []HistoryRecord
	rng        *rand.Rand
}

// NewMemStore returns an empty MemStore applying the given rating policy.
func NewMemStore(policy RatingPolicy) *MemStore {
	return &MemStore{
		policy:  policy,
		users:   make(map[string]*UserRecord),
		matches: make(map[string]*MatchRecord),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SeedCategories replaces the category list.
func (m *MemStore) SeedCategories(cats []CategoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = append([]CategoryRecord(nil), cats...)
}

// SeedQuestions adds questions to the bank, assigning IDs where missing.
func (m *MemStore) SeedQuestions(qs []QuestionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		m.questions = append(m.questions, q)
	}
}

// SeedUser inserts a user with an explicit rating, for tests.
func (m *MemStore) SeedUser(u UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Level == 0 {
		u.Level = m.policy.Level(u.Rating)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = &u
}

func (m *MemStore) EnsureUser(ctx context.Context, id, username, avatar string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = &UserRecord{
			ID:        id,
			Username:  username,
			Avatar:    avatar,
			Rating:    InitialRating,
			Level:     m.policy.Level(InitialRating),
			CreatedAt: time.Now().UTC(),
		}
		m.users[id] = u
	} else {
		if username != "" {
			u.Username = username
		}
		if avatar != "" {
			u.Avatar = avatar
		}
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) SetOnline(ctx context.Context, userID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.IsOnline = online
	}
	return nil
}

func (m *MemStore) CreateMatchWithRounds(ctx context.Context, player1ID, player2ID string, totalRounds int) (*MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p1, ok := m.users[player1ID]
	if !ok {
		return nil, matcherrors.ErrMatchNotFound
	}
	p2, ok := m.users[player2ID]
	if !ok {
		return nil, matcherrors.ErrMatchNotFound
	}
	if len(m.questions) < totalRounds {
		return nil, matcherrors.ErrInsufficientQuestions
	}

	perm := m.rng.Perm(len(m.questions))
	rounds := make([]RoundRecord, totalRounds)
	for i := 0; i < totalRounds; i++ {
		rounds[i] = RoundRecord{Number: i + 1, Question: m.questions[perm[i]]}
	}

	now := time.Now().UTC()
	rec := &MatchRecord{
		ID:          uuid.NewString(),
		Player1:     *p1,
		Player2:     *p2,
		Status:      StatusInProgress,
		TotalRounds: totalRounds,
		CreatedAt:   now,
		StartedAt:   now,
		Rounds:      rounds,
	}
	m.matches[rec.ID] = rec
	p1.IsInGame = true
	p2.IsInGame = true

	cp := *rec
	cp.Rounds = append([]RoundRecord(nil), rec.Rounds...)
	return &cp, nil
}

func (m *MemStore) VerifyPlayerInMatch(ctx context.Context, matchID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[matchID]
	if !ok {
		return false, matcherrors.ErrMatchNotFound
	}
	return userID == rec.Player1.ID || userID == rec.Player2.ID, nil
}

func (m *MemStore) SetCurrentRound(ctx context.Context, matchID string, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[matchID]
	if !ok {
		return matcherrors.ErrMatchNotFound
	}
	rec.CurrentRound = round
	return nil
}

func (m *MemStore) RecordRoundResult(ctx context.Context, res RoundResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[res.MatchID]
	if !ok {
		return matcherrors.ErrMatchNotFound
	}
	if res.Number < 1 || res.Number > len(rec.Rounds) {
		return matcherrors.ErrMatchNotFound
	}
	r := &rec.Rounds[res.Number-1]
	r.Player1 = res.Player1
	r.Player2 = res.Player2
	r.Recorded = true
	if rec.Status == StatusInProgress {
		rec.Score1 += res.Player1.Score
		rec.Score2 += res.Player2.Score
	}
	return nil
}

func (m *MemStore) GetRound(ctx context.Context, matchID string, number int) (*RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[matchID]
	if !ok || number < 1 || number > len(rec.Rounds) {
		return nil, matcherrors.ErrMatchNotFound
	}
	cp := rec.Rounds[number-1]
	return &cp, nil
}

func (m *MemStore) GetMatchScores(ctx context.Context, matchID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.matches[matchID]
	if !ok {
		return 0, 0, matcherrors.ErrMatchNotFound
	}
	return rec.Score1, rec.Score2, nil
}

func (m *MemStore) FinalizeMatch(ctx context.Context, matchID string) (*MatchOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.matches[matchID]
	if !ok {
		return nil, matcherrors.ErrMatchNotFound
	}
	if rec.Status != StatusInProgress {
		return nil, matcherrors.ErrMatchFinished
	}

	winnerID := ""
	switch {
	case rec.Score1 > rec.Score2:
		winnerID = rec.Player1.ID
	case rec.Score2 > rec.Score1:
		winnerID = rec.Player2.ID
	}

	out1 := m.settlePlayer(rec.Player1.ID, rec.Score1, winnerID)
	out2 := m.settlePlayer(rec.Player2.ID, rec.Score2, winnerID)

	now := time.Now().UTC()
	rec.Status = StatusCompleted
	rec.WinnerID = winnerID
	rec.EndedAt = now

	m.history = append(m.history,
		HistoryRecord{
			ID: uuid.NewString(), MatchID: matchID,
			UserID: rec.Player1.ID, OpponentID: rec.Player2.ID, OpponentName: out2.Username,
			UserScore: rec.Score1, OpponentScore: rec.Score2,
			IsWinner: out1.IsWinner, RatingChange: out1.RatingChange, PlayedAt: now,
		},
		HistoryRecord{
			ID: uuid.NewString(), MatchID: matchID,
			UserID: rec.Player2.ID, OpponentID: rec.Player1.ID, OpponentName: out1.Username,
			UserScore: rec.Score2, OpponentScore: rec.Score1,
			IsWinner: out2.IsWinner, RatingChange: out2.RatingChange, PlayedAt: now,
		})

	rounds := append([]RoundRecord(nil), rec.Rounds...)
	return &MatchOutcome{
		MatchID:  matchID,
		WinnerID: winnerID,
		Player1:  *out1,
		Player2:  *out2,
		Rounds:   rounds,
	}, nil
}

// settlePlayer mirrors the Postgres settlement. Caller holds the lock.
func (m *MemStore) settlePlayer(userID string, ownScore int, winnerID string) *PlayerOutcome {
	u := m.users[userID]

	outcome := OutcomeDraw
	switch winnerID {
	case "":
	case userID:
		outcome = OutcomeWin
		u.Wins++
	default:
		outcome = OutcomeLoss
		u.Losses++
	}
	oldRating := u.Rating
	newRating, delta := m.policy.Apply(oldRating, outcome)
	u.Rating = newRating
	u.Level = m.policy.Level(newRating)
	u.IsInGame = false

	return &PlayerOutcome{
		ID:           userID,
		Username:     u.Username,
		Score:        ownScore,
		OldRating:    oldRating,
		NewRating:    newRating,
		RatingChange: delta,
		Level:        u.Level,
		IsWinner:     outcome == OutcomeWin,
	}
}

func (m *MemStore) RandomQuestions(ctx context.Context, n int, categoryID string) ([]QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		return []QuestionRecord{}, nil
	}
	pool := m.questions
	if categoryID != "" {
		pool = nil
		for _, q := range m.questions {
			if q.CategoryID == categoryID {
				pool = append(pool, q)
			}
		}
	}
	if len(pool) < n {
		return nil, matcherrors.ErrInsufficientQuestions
	}
	perm := m.rng.Perm(len(pool))
	out := make([]QuestionRecord, n)
	for i := 0; i < n; i++ {
		out[i] = pool[perm[i]]
	}
	return out, nil
}

func (m *MemStore) ListMatchHistory(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	out := []HistoryRecord{}
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].UserID == userID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *MemStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	all := make([]LeaderboardEntry, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, LeaderboardEntry{
			UserID: u.ID, Username: u.Username, Avatar: u.Avatar,
			Rating: u.Rating, Level: u.Level, Wins: u.Wins, Losses: u.Losses,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].Username < all[j].Username
	})
	if offset >= len(all) {
		return []LeaderboardEntry{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemStore) ListCategories(ctx context.Context) ([]CategoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]CategoryRecord(nil), m.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() {}
