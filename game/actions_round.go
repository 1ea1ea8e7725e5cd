package game

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"quiz-duel-server/matcherrors"
	"quiz-duel-server/storage"
)

// retryBackoff is the delay before each persistence retry.
var retryBackoff = []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond}

// handleRoundStart begins round n: stamps the clock, persists the round
// counter, broadcasts the question and arms the deadline.
func (g *Game) handleRoundStart(n int) {
	if n != g.Round+1 {
		return
	}
	if g.Phase != PhaseLobby && g.Phase != PhaseRoundReveal {
		return
	}
	g.Round = n
	g.Phase = PhaseRoundActive
	g.RoundStartedAt = time.Now()
	for i := 0; i < 2; i++ {
		g.Players[i].answer = nil
	}

	ctx, cancel := storeCtx()
	err := g.Store.SetCurrentRound(ctx, g.MatchID, n)
	cancel()
	if err != nil {
		slog.Warn("persisting current round", "tag", "game", "match", g.MatchID, "round", n, "err", err)
	}

	g.broadcast(QuestionStartMsg{
		Type:     "question_start",
		Round:    n,
		Question: questionView(g.Rounds[n-1].Question),
	})
	g.startRoundTimer(n)
}

// handleAnswer accepts at most one answer per player per round. Late,
// duplicate and out-of-round submissions are dropped silently.
func (g *Game) handleAnswer(userID, answer string, reportedSec float64) {
	if g.Phase != PhaseRoundActive {
		return
	}
	idx := g.seatFor(userID)
	if idx < 0 {
		return
	}
	p := g.Players[idx]
	if p.answer != nil {
		return
	}

	option := strings.ToUpper(strings.TrimSpace(answer))
	elapsed := time.Since(g.RoundStartedAt).Seconds()
	latency := effectiveLatency(reportedSec, elapsed)
	q := g.Rounds[g.Round-1].Question
	correct := option == strings.ToUpper(q.CorrectOption)
	p.answer = &roundAnswer{
		option:  option,
		timeSec: latency,
		score:   scoreFor(correct, latency, g.Config.RoundTimeoutSeconds()),
		correct: correct,
	}

	// The choice itself stays hidden until the reveal.
	g.broadcast(AnswerSubmittedMsg{Type: "answer_submitted", UserID: userID})

	if g.Players[0].answer != nil && g.Players[1].answer != nil {
		g.endRound()
	}
}

// handleRoundTimeout ends the round when the deadline passes. The round
// number guard drops a timer that lost the race against both answers
// arriving and the next round starting.
func (g *Game) handleRoundTimeout(round int) {
	if g.roundTimerCancel == nil {
		return
	}
	if round != g.Round || g.Phase != PhaseRoundActive {
		return
	}
	g.endRound()
}

// endRound scores the round, persists it, reveals the result to both
// players and schedules the next round or the finalization pause.
func (g *Game) endRound() {
	g.cancelRoundTimer()
	g.Phase = PhaseRoundReveal

	var rec [2]storage.AnswerRecord
	for i := 0; i < 2; i++ {
		a := g.Players[i].answer
		if a == nil {
			// Missing answer: incorrect, with the full timeout as latency.
			rec[i] = storage.AnswerRecord{TimeSec: g.Config.RoundTimeoutSeconds()}
			continue
		}
		opt := a.option
		rec[i] = storage.AnswerRecord{Answer: &opt, TimeSec: a.timeSec, Score: a.score, Correct: a.correct}
	}

	round := &g.Rounds[g.Round-1]
	round.Player1 = rec[0]
	round.Player2 = rec[1]
	round.Recorded = true
	g.Totals[0] += rec[0].Score
	g.Totals[1] += rec[1].Score

	res := storage.RoundResult{MatchID: g.MatchID, Number: g.Round, Player1: rec[0], Player2: rec[1]}
	if err := g.persistRound(res); err != nil {
		slog.Error("recording round", "tag", "game", "match", g.MatchID, "round", g.Round, "err", err)
		g.abortWithTotals()
		return
	}

	q := round.Question
	g.broadcast(RoundEndMsg{
		Type:  "round_end",
		Round: g.Round,
		Result: RoundResultView{
			CorrectAnswer: q.CorrectOption,
			Explanation:   q.Explanation,
			Players: map[string]PlayerRoundView{
				g.Players[0].User.ID: {Answer: rec[0].Answer, Time: rec[0].TimeSec, Score: rec[0].Score, Correct: rec[0].Correct},
				g.Players[1].User.ID: {Answer: rec[1].Answer, Time: rec[1].TimeSec, Score: rec[1].Score, Correct: rec[1].Correct},
			},
			TotalScores: map[string]int{
				g.Players[0].User.ID: g.Totals[0],
				g.Players[1].User.ID: g.Totals[1],
			},
		},
	})
	g.Analytics.RoundCompleted(g.MatchID, g.Round, g.Players[0].User.ID, g.Players[1].User.ID, rec[0].Score, rec[1].Score)

	if g.Round < len(g.Rounds) {
		g.postAfter(time.Duration(g.Config.InterRoundMS)*time.Millisecond, Action{Type: ActionRoundStart, Round: g.Round + 1})
	} else {
		g.postAfter(time.Duration(g.Config.PreFinalizeMS)*time.Millisecond, Action{Type: ActionFinalize})
	}
}

// persistRound writes the round result, retrying transient failures with a
// short backoff before giving up.
func (g *Game) persistRound(res storage.RoundResult) error {
	var err error
	for attempt := 0; ; attempt++ {
		ctx, cancel := storeCtx()
		err = g.Store.RecordRoundResult(ctx, res)
		cancel()
		if err == nil || attempt >= len(retryBackoff) {
			return err
		}
		slog.Warn("retrying round write", "tag", "game", "match", g.MatchID, "round", res.Number, "attempt", attempt+1, "err", err)
		time.Sleep(retryBackoff[attempt])
	}
}

// handleFinalize completes the match after the pre-finalize pause.
func (g *Game) handleFinalize() {
	if g.Phase != PhaseRoundReveal {
		return
	}
	g.finalizeNow()
}

// finalizeNow settles the match durably and broadcasts the final summary.
// Reached from the normal end-of-match path and from the abandonment timer.
func (g *Game) finalizeNow() {
	g.Phase = PhaseFinalizing

	var out *storage.MatchOutcome
	var err error
	for attempt := 0; ; attempt++ {
		ctx, cancel := storeCtx()
		out, err = g.Store.FinalizeMatch(ctx, g.MatchID)
		cancel()
		if err == nil || errors.Is(err, matcherrors.ErrMatchFinished) || attempt >= len(retryBackoff) {
			break
		}
		slog.Warn("retrying finalization", "tag", "game", "match", g.MatchID, "attempt", attempt+1, "err", err)
		time.Sleep(retryBackoff[attempt])
	}
	if errors.Is(err, matcherrors.ErrMatchFinished) {
		slog.Warn("match already finalized", "tag", "game", "match", g.MatchID)
		g.finish(PhaseCompleted)
		return
	}
	if err != nil {
		slog.Error("finalizing match", "tag", "game", "match", g.MatchID, "err", err)
		g.abortWithTotals()
		return
	}

	g.broadcast(MatchEndMsg{Type: "match_end", Result: MatchResultView{
		WinnerID: out.WinnerID,
		Player1:  out.Player1,
		Player2:  out.Player2,
		Rounds:   out.Rounds,
	}})
	g.Analytics.MatchCompleted(g.MatchID, out.WinnerID, out.Player1.ID, out.Player2.ID, out.Player1.Score, out.Player2.Score, false)
	slog.Info("match completed", "tag", "game", "match", g.MatchID, "winner", out.WinnerID,
		"score1", out.Player1.Score, "score2", out.Player2.Score)
	g.finish(PhaseCompleted)
}

// abortWithTotals ends the match from engine state alone, for when
// persistence is unavailable: the summary is broadcast with the standing
// totals, ratings stay untouched and the match row stays in_progress for
// later reconciliation.
func (g *Game) abortWithTotals() {
	winnerID := ""
	switch {
	case g.Totals[0] > g.Totals[1]:
		winnerID = g.Players[0].User.ID
	case g.Totals[1] > g.Totals[0]:
		winnerID = g.Players[1].User.ID
	}
	var out [2]storage.PlayerOutcome
	for i := 0; i < 2; i++ {
		u := g.Players[i].User
		out[i] = storage.PlayerOutcome{
			ID:        u.ID,
			Username:  u.Username,
			Score:     g.Totals[i],
			OldRating: u.Rating,
			NewRating: u.Rating,
			Level:     u.Level,
			IsWinner:  winnerID != "" && winnerID == u.ID,
		}
	}
	g.broadcast(MatchEndMsg{Type: "match_end", Result: MatchResultView{
		WinnerID: winnerID,
		Player1:  out[0],
		Player2:  out[1],
		Rounds:   g.recordedRounds(),
	}})
	g.Analytics.MatchCompleted(g.MatchID, winnerID, out[0].ID, out[1].ID, g.Totals[0], g.Totals[1], true)
	g.finish(PhaseAborted)
}

// recordedRounds returns the rounds that already have results, for the
// end-of-match review.
func (g *Game) recordedRounds() []storage.RoundRecord {
	out := make([]storage.RoundRecord, 0, len(g.Rounds))
	for _, r := range g.Rounds {
		if r.Recorded {
			out = append(out, r)
		}
	}
	return out
}
