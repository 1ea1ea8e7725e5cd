package game

import (
	"context"
	"time"

	"quiz-duel-server/analytics"
	"quiz-duel-server/config"
	"quiz-duel-server/storage"
)

// Phase represents where a match currently is in its lifecycle.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseRoundActive
	PhaseRoundReveal
	PhaseFinalizing
	PhaseCompleted
	PhaseAborted
)

// String returns the protocol string for a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseRoundActive:
		return "round_active"
	case PhaseRoundReveal:
		return "round_reveal"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ActionType enumerates the kinds of actions a match can process.
type ActionType int

const (
	ActionJoin ActionType = iota
	ActionReady
	ActionAnswer
	ActionEmoji
	ActionPlayerDisconnected
	ActionRoundStart     // internal: fired when the VS banner or inter-round delay elapses
	ActionRoundTimeout   // internal: fired when the round deadline expires
	ActionFinalize       // internal: fired after the pre-finalize pause
	ActionAbandonTimeout // internal: fired when both seats stay empty past the grace period
)

// Action represents a message sent into the match's action channel.
type Action struct {
	Type    ActionType
	UserID  string
	Send    chan []byte // for ActionJoin/ActionPlayerDisconnected: the session's send channel
	Answer  string      // for ActionAnswer
	TimeSec float64     // for ActionAnswer: client-reported latency in seconds
	Emoji   string      // for ActionEmoji
	Round   int         // for ActionRoundStart / ActionRoundTimeout: the round the timer belongs to
}

// Game runs a single quiz match between two players. All state is owned by
// the Run goroutine; sessions and timers only post Actions.
type Game struct {
	MatchID string
	Config  *config.Config
	Store   storage.GameStore

	Players [2]*Player
	Rounds  []storage.RoundRecord
	Phase   Phase
	Round   int // 1-based; 0 before the first question
	Totals  [2]int

	RoundStartedAt time.Time
	Finished       bool

	roundTimerCancel   chan struct{}
	abandonTimerCancel chan struct{}

	Analytics *analytics.Service

	Actions chan Action
	Done    chan struct{}

	// OnEnd is called exactly once when the match reaches a terminal phase,
	// on the Run goroutine. Set by the matchmaker for registry cleanup.
	OnEnd func(matchID string)
}

// NewGame creates a match engine from a freshly created match record. The
// caller starts it with `go g.Run()`; sessions attach later via ActionJoin.
func NewGame(rec *storage.MatchRecord, cfg *config.Config, store storage.GameStore, an *analytics.Service) *Game {
	return &Game{
		MatchID: rec.ID,
		Config:  cfg,
		Store:   store,
		Players: [2]*Player{
			NewPlayer(rec.Player1),
			NewPlayer(rec.Player2),
		},
		Rounds:  append([]storage.RoundRecord(nil), rec.Rounds...),
		Phase:   PhaseLobby,
		Actions: make(chan Action, 16),
		Done:    make(chan struct{}),

		Analytics: an,
	}
}

// Run is the main match loop. It processes actions sequentially.
// It should be run as a goroutine.
func (g *Game) Run() {
	defer close(g.Done)

	// Both seats start empty; if nobody ever connects the grace timer
	// finalizes the match with the scores as they stand.
	g.startAbandonTimer()

	for {
		action, ok := <-g.Actions
		if !ok || g.Finished {
			return
		}
		switch action.Type {
		case ActionJoin:
			g.handleJoin(action.UserID, action.Send)
		case ActionReady:
			g.handleReady(action.UserID)
		case ActionAnswer:
			g.handleAnswer(action.UserID, action.Answer, action.TimeSec)
		case ActionEmoji:
			g.handleEmoji(action.UserID, action.Emoji)
		case ActionPlayerDisconnected:
			g.handlePlayerDisconnected(action.UserID, action.Send)
		case ActionRoundStart:
			g.handleRoundStart(action.Round)
		case ActionRoundTimeout:
			g.handleRoundTimeout(action.Round)
		case ActionFinalize:
			g.handleFinalize()
		case ActionAbandonTimeout:
			g.handleAbandonTimeout()
		}
		if g.Finished {
			return
		}
	}
}

// Post delivers an action to the match, dropping it if the match has
// already stopped.
func (g *Game) Post(a Action) {
	select {
	case g.Actions <- a:
	case <-g.Done:
	}
}

// seatFor returns the seat index for a user id, or -1.
func (g *Game) seatFor(userID string) int {
	for i := 0; i < 2; i++ {
		if g.Players[i] != nil && g.Players[i].User.ID == userID {
			return i
		}
	}
	return -1
}

// postAfter delivers an action after the given delay unless the match stops
// first. Stale deliveries are filtered by phase and round guards on receipt.
func (g *Game) postAfter(d time.Duration, a Action) {
	go func() {
		select {
		case <-time.After(d):
			select {
			case g.Actions <- a:
			case <-g.Done:
			}
		case <-g.Done:
		}
	}()
}

// cancelRoundTimer closes the round timer cancel channel so the timer
// goroutine exits. Safe if already nil.
func (g *Game) cancelRoundTimer() {
	if g.roundTimerCancel != nil {
		close(g.roundTimerCancel)
		g.roundTimerCancel = nil
	}
}

// startRoundTimer schedules the deadline for the given round. The timeout
// action carries the round number so a stale timer cannot end a later round.
func (g *Game) startRoundTimer(round int) {
	g.cancelRoundTimer()
	g.roundTimerCancel = make(chan struct{})
	cancel := g.roundTimerCancel
	limit := time.Duration(g.Config.RoundTimeoutSec) * time.Second
	go func() {
		select {
		case <-time.After(limit):
			select {
			case g.Actions <- Action{Type: ActionRoundTimeout, Round: round}:
			case <-g.Done:
			}
		case <-cancel:
		}
	}()
}

func (g *Game) cancelAbandonTimer() {
	if g.abandonTimerCancel != nil {
		close(g.abandonTimerCancel)
		g.abandonTimerCancel = nil
	}
}

// startAbandonTimer starts the grace period that force-finalizes a match
// both players have walked away from.
func (g *Game) startAbandonTimer() {
	g.cancelAbandonTimer()
	g.abandonTimerCancel = make(chan struct{})
	cancel := g.abandonTimerCancel
	limit := time.Duration(g.Config.AbandonTimeoutSec) * time.Second
	go func() {
		select {
		case <-time.After(limit):
			select {
			case g.Actions <- Action{Type: ActionAbandonTimeout}:
			case <-g.Done:
			}
		case <-cancel:
		}
	}()
}

// finish moves the match to a terminal phase and fires the OnEnd hook.
func (g *Game) finish(phase Phase) {
	g.cancelRoundTimer()
	g.cancelAbandonTimer()
	g.Phase = phase
	g.Finished = true
	if g.OnEnd != nil {
		g.OnEnd(g.MatchID)
	}
}

// storeCtx bounds a persistence call made from the match loop.
func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
