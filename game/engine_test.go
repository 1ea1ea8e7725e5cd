package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-duel-server/config"
	"quiz-duel-server/matcherrors"
	"quiz-duel-server/storage"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.TotalRounds = 1
	cfg.RoundTimeoutSec = 15
	cfg.VSBannerMS = 10 // Short for testing
	cfg.InterRoundMS = 10
	cfg.PreFinalizeMS = 10
	return cfg
}

// seededStore builds a MemStore with both players and a question bank where
// the correct option is always "A", so tests can answer right or wrong on
// purpose regardless of question order.
func seededStore(t *testing.T, questionCount int) *storage.MemStore {
	t.Helper()
	store := storage.NewMemStore(storage.DefaultRatingPolicy())
	qs := make([]storage.QuestionRecord, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		qs = append(qs, storage.QuestionRecord{
			Text:          fmt.Sprintf("Question %d?", i+1),
			OptionA:       "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectOption: "A",
			Explanation:   "because",
		})
	}
	store.SeedQuestions(qs)
	store.SeedUser(storage.UserRecord{ID: "u1", Username: "Alice", Rating: 1000})
	store.SeedUser(storage.UserRecord{ID: "u2", Username: "Bob", Rating: 1000})
	return store
}

// createTestMatch creates a match between u1 and u2 and builds the engine
// plus one send channel per player. The caller starts the loop with go g.Run().
func createTestMatch(t *testing.T, cfg *config.Config) (*Game, *storage.MemStore, chan []byte, chan []byte) {
	t.Helper()
	store := seededStore(t, cfg.TotalRounds)
	rec, err := store.CreateMatchWithRounds(context.Background(), "u1", "u2", cfg.TotalRounds)
	if err != nil {
		t.Fatalf("CreateMatchWithRounds: %v", err)
	}
	g := NewGame(rec, cfg, store, nil)
	return g, store, make(chan []byte, 100), make(chan []byte, 100)
}

func joinBoth(g *Game, send1, send2 chan []byte) {
	g.Post(Action{Type: ActionJoin, UserID: "u1", Send: send1})
	g.Post(Action{Type: ActionJoin, UserID: "u2", Send: send2})
}

func postAnswer(g *Game, userID, option string, timeSec float64) {
	g.Post(Action{Type: ActionAnswer, UserID: userID, Answer: option, TimeSec: timeSec})
}

// drainChannel reads all available messages from a channel.
func drainChannel(ch chan []byte) [][]byte {
	var msgs [][]byte
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// collectUntil reads frames until one of the given type arrives, returning
// every earlier frame plus the matching one.
func collectUntil(t *testing.T, ch chan []byte, msgType string, timeout time.Duration) ([]map[string]interface{}, map[string]interface{}) {
	t.Helper()
	deadline := time.After(timeout)
	var seen []map[string]interface{}
	for {
		select {
		case raw := <-ch:
			var m map[string]interface{}
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if m["type"] == msgType {
				return seen, m
			}
			seen = append(seen, m)
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", msgType)
			return nil, nil
		}
	}
}

// waitFor discards frames until one of the given type arrives.
func waitFor(t *testing.T, ch chan []byte, msgType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	_, m := collectUntil(t, ch, msgType, timeout)
	return m
}

func countFrames(msgs []map[string]interface{}, msgType string) int {
	n := 0
	for _, m := range msgs {
		if m["type"] == msgType {
			n++
		}
	}
	return n
}

func countRaw(t *testing.T, msgs [][]byte, msgType string) int {
	t.Helper()
	n := 0
	for _, raw := range msgs {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if m["type"] == msgType {
			n++
		}
	}
	return n
}

// sub digs a nested object out of an unmarshaled frame.
func sub(t *testing.T, m map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := m[key].(map[string]interface{})
	if !ok {
		t.Fatalf("frame missing object %q: %v", key, m)
	}
	return v
}

func waitDone(t *testing.T, g *Game, timeout time.Duration) {
	t.Helper()
	select {
	case <-g.Done:
	case <-time.After(timeout):
		t.Fatal("match did not finish in time")
	}
}

// flakyStore delegates to a real store but fails RecordRoundResult a set
// number of times. failures < 0 means fail forever.
type flakyStore struct {
	storage.GameStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) RecordRoundResult(ctx context.Context, res storage.RoundResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return errors.New("store unavailable")
	}
	return f.GameStore.RecordRoundResult(ctx, res)
}

func (f *flakyStore) recordCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewGameSeatsPlayers(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 3
	g, _, _, _ := createTestMatch(t, cfg)

	if g.Phase != PhaseLobby {
		t.Errorf("expected PhaseLobby, got %v", g.Phase)
	}
	if g.Players[0].User.ID != "u1" || g.Players[1].User.ID != "u2" {
		t.Errorf("unexpected seating: %q, %q", g.Players[0].User.ID, g.Players[1].User.ID)
	}
	if len(g.Rounds) != 3 {
		t.Errorf("expected 3 rounds, got %d", len(g.Rounds))
	}
	if g.Round != 0 {
		t.Errorf("expected round 0 before start, got %d", g.Round)
	}
}

func TestBothPlayersJoinedStartsMatch(t *testing.T) {
	g, _, send1, send2 := createTestMatch(t, testConfig())
	go g.Run()

	g.Post(Action{Type: ActionJoin, UserID: "u1", Send: send1})
	m := waitFor(t, send1, "connected", time.Second)
	if got := m["players_ready"].(float64); got != 1 {
		t.Errorf("expected players_ready=1, got %v", got)
	}

	g.Post(Action{Type: ActionJoin, UserID: "u2", Send: send2})
	m = waitFor(t, send2, "connected", time.Second)
	if got := m["players_ready"].(float64); got != 2 {
		t.Errorf("expected players_ready=2, got %v", got)
	}
	waitFor(t, send1, "game_start", time.Second)
	waitFor(t, send2, "game_start", time.Second)

	q := waitFor(t, send1, "question_start", time.Second)
	if got := q["round"].(float64); got != 1 {
		t.Errorf("expected round=1, got %v", got)
	}
	question := sub(t, q, "question")
	if _, leaked := question["correct_option"]; leaked {
		t.Error("question frame must not carry the correct option")
	}
	if _, leaked := question["explanation"]; leaked {
		t.Error("question frame must not carry the explanation")
	}
	opts := sub(t, question, "options")
	if opts["A"] != "a" || opts["D"] != "d" {
		t.Errorf("unexpected options: %v", opts)
	}

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitDone(t, g, 2*time.Second)
}

func TestRoundScoringBrackets(t *testing.T) {
	g, store, send1, send2 := createTestMatch(t, testConfig())
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 1.5) // under 3s: 100
	postAnswer(g, "u2", "a", 5)   // lowercase accepted, 3-7s: 70

	end := waitFor(t, send1, "round_end", time.Second)
	res := sub(t, end, "result")
	if res["correct_answer"] != "A" {
		t.Errorf("expected correct_answer=A, got %v", res["correct_answer"])
	}
	if res["explanation"] != "because" {
		t.Errorf("expected explanation in reveal, got %v", res["explanation"])
	}
	players := sub(t, res, "players")
	p1 := sub(t, players, "u1")
	if p1["answer"] != "A" || p1["score"].(float64) != 100 || p1["correct"] != true {
		t.Errorf("unexpected u1 result: %v", p1)
	}
	p2 := sub(t, players, "u2")
	if p2["answer"] != "A" || p2["score"].(float64) != 70 {
		t.Errorf("unexpected u2 result: %v", p2)
	}
	totals := sub(t, res, "total_scores")
	if totals["u1"].(float64) != 100 || totals["u2"].(float64) != 70 {
		t.Errorf("unexpected totals: %v", totals)
	}

	final := waitFor(t, send2, "match_end", 2*time.Second)
	fres := sub(t, final, "result")
	if fres["winner_id"] != "u1" {
		t.Errorf("expected winner u1, got %v", fres["winner_id"])
	}
	fp1 := sub(t, fres, "player1")
	if fp1["new_rating"].(float64) != 1020 || fp1["is_winner"] != true {
		t.Errorf("unexpected winner outcome: %v", fp1)
	}
	fp2 := sub(t, fres, "player2")
	if fp2["new_rating"].(float64) != 985 {
		t.Errorf("expected loser rating 985, got %v", fp2["new_rating"])
	}
	rounds, ok := fres["rounds"].([]interface{})
	if !ok || len(rounds) != 1 {
		t.Errorf("expected 1 round in review, got %v", fres["rounds"])
	}

	waitDone(t, g, 2*time.Second)
	if g.Phase != PhaseCompleted {
		t.Errorf("expected PhaseCompleted, got %v", g.Phase)
	}

	// The persisted round must agree with what the reveal showed.
	stored, err := store.GetRound(context.Background(), g.MatchID, 1)
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if stored.Player1.Score != 100 || stored.Player2.Score != 70 {
		t.Errorf("stored round diverges from the reveal: %d/%d", stored.Player1.Score, stored.Player2.Score)
	}
}

func TestDrawLeavesRatingsUntouched(t *testing.T) {
	g, _, send1, send2 := createTestMatch(t, testConfig())
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)

	final := waitFor(t, send1, "match_end", 2*time.Second)
	res := sub(t, final, "result")
	if _, present := res["winner_id"]; present {
		t.Errorf("draw must omit winner_id, got %v", res["winner_id"])
	}
	for _, key := range []string{"player1", "player2"} {
		p := sub(t, res, key)
		if p["is_winner"] != false {
			t.Errorf("%s flagged winner on a draw", key)
		}
		if p["new_rating"].(float64) != 1000 {
			t.Errorf("%s rating moved on a draw: %v", key, p["new_rating"])
		}
	}
	waitDone(t, g, 2*time.Second)
}

func TestRoundTimeoutChargesSilentPlayer(t *testing.T) {
	cfg := testConfig()
	cfg.RoundTimeoutSec = 1
	g, _, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 0.5)
	// u2 stays silent; the deadline closes the round.

	seen, end := collectUntil(t, send2, "round_end", 3*time.Second)
	if n := countFrames(seen, "answer_submitted"); n != 1 {
		t.Errorf("expected 1 answer_submitted frame, got %d", n)
	}
	players := sub(t, sub(t, end, "result"), "players")
	p2 := sub(t, players, "u2")
	if p2["answer"] != nil {
		t.Errorf("expected null answer for silent player, got %v", p2["answer"])
	}
	if p2["time"].(float64) != 1 {
		t.Errorf("expected full timeout charged as latency, got %v", p2["time"])
	}
	if p2["score"].(float64) != 0 || p2["correct"] != false {
		t.Errorf("unexpected silent player result: %v", p2)
	}

	// An answer after the round closed is dropped without a trace.
	postAnswer(g, "u2", "A", 0.2)
	seen, final := collectUntil(t, send2, "match_end", 2*time.Second)
	if n := countFrames(seen, "answer_submitted"); n != 0 {
		t.Errorf("late answer leaked %d answer_submitted frames", n)
	}
	if sub(t, final, "result")["winner_id"] != "u1" {
		t.Errorf("expected winner u1")
	}
	waitDone(t, g, 2*time.Second)
}

func TestDuplicateAnswerIgnored(t *testing.T) {
	g, _, send1, send2 := createTestMatch(t, testConfig())
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "B", 1) // wrong, locks the seat
	postAnswer(g, "u1", "A", 1) // second submission, dropped
	postAnswer(g, "u2", "A", 1)

	seen, end := collectUntil(t, send2, "round_end", time.Second)
	if n := countFrames(seen, "answer_submitted"); n != 2 {
		t.Errorf("expected 2 answer_submitted frames, got %d", n)
	}
	players := sub(t, sub(t, end, "result"), "players")
	p1 := sub(t, players, "u1")
	if p1["answer"] != "B" || p1["score"].(float64) != 0 || p1["correct"] != false {
		t.Errorf("duplicate overwrote the first answer: %v", p1)
	}

	final := waitFor(t, send1, "match_end", 2*time.Second)
	if sub(t, final, "result")["winner_id"] != "u2" {
		t.Errorf("expected winner u2")
	}
	waitDone(t, g, 2*time.Second)
}

func TestEmojiRoutingAndBudget(t *testing.T) {
	cfg := testConfig()
	cfg.EmojiLimitPerMatch = 2
	g, _, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)
	drainChannel(send2)

	for i := 0; i < 3; i++ {
		g.Post(Action{Type: ActionEmoji, UserID: "u1", Emoji: "🔥"})
	}
	g.Post(Action{Type: ActionEmoji, UserID: "u2", Emoji: "🙈"})
	time.Sleep(50 * time.Millisecond)

	if n := countRaw(t, drainChannel(send2), "emoji_received"); n != 2 {
		t.Errorf("opponent should receive exactly the budget of 2, got %d", n)
	}
	// The sender is never echoed; u1 only sees u2's emoji.
	msgs := drainChannel(send1)
	if n := countRaw(t, msgs, "emoji_received"); n != 1 {
		t.Errorf("expected exactly 1 emoji for u1, got %d", n)
	}
	for _, raw := range msgs {
		var m map[string]interface{}
		json.Unmarshal(raw, &m)
		if m["type"] == "emoji_received" && m["emoji"] != "🙈" {
			t.Errorf("u1 received its own emoji: %v", m["emoji"])
		}
	}

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitDone(t, g, 2*time.Second)
}

func TestDisconnectMidMatchKeepsRunning(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 2
	cfg.RoundTimeoutSec = 1
	g, _, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 0.5)
	postAnswer(g, "u2", "A", 0.5)
	waitFor(t, send2, "round_end", time.Second)

	g.Post(Action{Type: ActionPlayerDisconnected, UserID: "u1"})

	q2 := waitFor(t, send2, "question_start", time.Second)
	if q2["round"].(float64) != 2 {
		t.Errorf("expected round 2, got %v", q2["round"])
	}
	postAnswer(g, "u2", "A", 0.5)

	// The absent player is scored like a timeout once the deadline passes.
	end := waitFor(t, send2, "round_end", 3*time.Second)
	players := sub(t, sub(t, end, "result"), "players")
	if score := sub(t, players, "u1")["score"].(float64); score != 0 {
		t.Errorf("expected 0 for the absent player, got %v", score)
	}

	final := waitFor(t, send2, "match_end", 2*time.Second)
	if sub(t, final, "result")["winner_id"] != "u2" {
		t.Errorf("expected winner u2")
	}
	waitDone(t, g, 2*time.Second)
	if g.Phase != PhaseCompleted {
		t.Errorf("expected PhaseCompleted, got %v", g.Phase)
	}
}

func TestRejoinReattachesWithoutReplay(t *testing.T) {
	cfg := testConfig()
	cfg.VSBannerMS = 300 // long enough to swap sinks before round one
	g, _, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "game_start", time.Second)

	g.Post(Action{Type: ActionPlayerDisconnected, UserID: "u1"})
	replacement := make(chan []byte, 100)
	g.Post(Action{Type: ActionJoin, UserID: "u1", Send: replacement})

	m := waitFor(t, replacement, "connected", time.Second)
	if m["players_ready"].(float64) != 2 {
		t.Errorf("expected players_ready=2 on rejoin, got %v", m["players_ready"])
	}

	// The match resumes on the new sink without re-announcing or replaying.
	seen, _ := collectUntil(t, replacement, "question_start", time.Second)
	if countFrames(seen, "game_start") != 0 {
		t.Error("rejoin must not replay the match announcement")
	}

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitDone(t, g, 2*time.Second)
}

func TestAbandonedMatchForceFinalizes(t *testing.T) {
	cfg := testConfig()
	cfg.AbandonTimeoutSec = 1
	g, store, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	g.Post(Action{Type: ActionPlayerDisconnected, UserID: "u1"})
	g.Post(Action{Type: ActionPlayerDisconnected, UserID: "u2"})

	waitDone(t, g, 3*time.Second)
	if g.Phase != PhaseCompleted {
		t.Errorf("expected PhaseCompleted after abandonment, got %v", g.Phase)
	}
	// The 0-0 draw was settled durably.
	if _, err := store.FinalizeMatch(context.Background(), g.MatchID); !errors.Is(err, matcherrors.ErrMatchFinished) {
		t.Errorf("expected ErrMatchFinished after settlement, got %v", err)
	}
}

func TestStaleRoundTimerIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.TotalRounds = 2
	g, _, send1, send2 := createTestMatch(t, cfg)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitFor(t, send1, "round_end", time.Second)
	waitFor(t, send1, "question_start", time.Second)

	// A deadline left over from round one must not close round two.
	g.Post(Action{Type: ActionRoundTimeout, Round: 1})
	time.Sleep(50 * time.Millisecond)
	if n := countRaw(t, drainChannel(send1), "round_end"); n != 0 {
		t.Error("stale deadline closed the active round")
	}

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitFor(t, send2, "match_end", 2*time.Second)
	waitDone(t, g, 2*time.Second)
}

func TestNonParticipantIgnored(t *testing.T) {
	g, _, send1, send2 := createTestMatch(t, testConfig())
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)
	drainChannel(send2)

	intruder := make(chan []byte, 10)
	g.Post(Action{Type: ActionJoin, UserID: "u3", Send: intruder})
	g.Post(Action{Type: ActionAnswer, UserID: "u3", Answer: "A", TimeSec: 1})
	time.Sleep(50 * time.Millisecond)

	if n := len(drainChannel(intruder)); n != 0 {
		t.Errorf("non-participant received %d frames", n)
	}
	if n := countRaw(t, drainChannel(send2), "answer_submitted"); n != 0 {
		t.Errorf("intruder answer produced %d answer_submitted frames", n)
	}

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "A", 1)
	waitDone(t, g, 2*time.Second)
}

func TestTransientRoundWriteRetries(t *testing.T) {
	cfg := testConfig()
	mem := seededStore(t, cfg.TotalRounds)
	flaky := &flakyStore{GameStore: mem, failures: 2}
	rec, err := mem.CreateMatchWithRounds(context.Background(), "u1", "u2", cfg.TotalRounds)
	if err != nil {
		t.Fatalf("CreateMatchWithRounds: %v", err)
	}
	g := NewGame(rec, cfg, flaky, nil)
	send1 := make(chan []byte, 100)
	send2 := make(chan []byte, 100)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "B", 1)

	waitFor(t, send1, "round_end", 3*time.Second)
	if n := flaky.recordCalls(); n != 3 {
		t.Errorf("expected 3 write attempts, got %d", n)
	}
	waitFor(t, send2, "match_end", 2*time.Second)
	waitDone(t, g, 2*time.Second)
	if g.Phase != PhaseCompleted {
		t.Errorf("expected PhaseCompleted, got %v", g.Phase)
	}
}

func TestPersistenceOutageEndsWithStandingTotals(t *testing.T) {
	cfg := testConfig()
	mem := seededStore(t, cfg.TotalRounds)
	flaky := &flakyStore{GameStore: mem, failures: -1}
	rec, err := mem.CreateMatchWithRounds(context.Background(), "u1", "u2", cfg.TotalRounds)
	if err != nil {
		t.Fatalf("CreateMatchWithRounds: %v", err)
	}
	g := NewGame(rec, cfg, flaky, nil)
	send1 := make(chan []byte, 100)
	send2 := make(chan []byte, 100)
	go g.Run()
	joinBoth(g, send1, send2)
	waitFor(t, send1, "question_start", time.Second)

	postAnswer(g, "u1", "A", 1)
	postAnswer(g, "u2", "B", 1)

	seen, final := collectUntil(t, send2, "match_end", 5*time.Second)
	if n := countFrames(seen, "round_end"); n != 0 {
		t.Errorf("round_end broadcast despite the write never landing")
	}
	res := sub(t, final, "result")
	if res["winner_id"] != "u1" {
		t.Errorf("expected winner u1 from standing totals, got %v", res["winner_id"])
	}
	p1 := sub(t, res, "player1")
	if p1["score"].(float64) != 100 || p1["is_winner"] != true {
		t.Errorf("unexpected winner summary: %v", p1)
	}
	if p1["old_rating"].(float64) != 1000 || p1["new_rating"].(float64) != 1000 {
		t.Error("ratings must stay untouched when settlement is skipped")
	}
	rounds, ok := res["rounds"].([]interface{})
	if !ok || len(rounds) != 1 {
		t.Errorf("expected the played round in the review, got %v", res["rounds"])
	}

	waitDone(t, g, 2*time.Second)
	if g.Phase != PhaseAborted {
		t.Errorf("expected PhaseAborted, got %v", g.Phase)
	}
	// The match row is still open for later reconciliation.
	if _, err := mem.FinalizeMatch(context.Background(), g.MatchID); err != nil {
		t.Errorf("match should still be open, got %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseLobby, "lobby"},
		{PhaseRoundActive, "round_active"},
		{PhaseRoundReveal, "round_reveal"},
		{PhaseFinalizing, "finalizing"},
		{PhaseCompleted, "completed"},
		{PhaseAborted, "aborted"},
	}

	for _, test := range tests {
		if got := test.phase.String(); got != test.expected {
			t.Errorf("Phase(%d).String() = %q, want %q", test.phase, got, test.expected)
		}
	}
}
