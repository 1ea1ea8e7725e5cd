package game

import (
	"log/slog"
	"time"
)

// handleJoin attaches a session's send channel to the player's seat. The
// first time both seats are occupied the match announces itself and
// schedules round one after the VS banner.
func (g *Game) handleJoin(userID string, send chan []byte) {
	idx := g.seatFor(userID)
	if idx < 0 {
		slog.Warn("join from non-participant", "tag", "game", "match", g.MatchID, "user", userID)
		return
	}
	p := g.Players[idx]
	rejoin := p.Joined
	p.Send = send
	p.Joined = true
	p.Connected = true
	g.cancelAbandonTimer()

	joined := 0
	for i := 0; i < 2; i++ {
		if g.Players[i].Joined {
			joined++
		}
	}
	g.send(idx, ConnectedMsg{Type: "connected", MatchID: g.MatchID, PlayersReady: joined})

	if rejoin {
		// Reattached sink; frames missed while away are not replayed.
		slog.Info("player rejoined", "tag", "game", "match", g.MatchID, "user", userID)
		return
	}
	if joined == 2 && g.Phase == PhaseLobby {
		g.broadcast(GameStartMsg{Type: "game_start", Message: "Both players connected. Get ready!"})
		g.postAfter(time.Duration(g.Config.VSBannerMS)*time.Millisecond, Action{Type: ActionRoundStart, Round: 1})
	}
}

// handleReady records the client's ready signal. Round pacing is driven by
// the engine's own timers, so this is informational only.
func (g *Game) handleReady(userID string) {
	if idx := g.seatFor(userID); idx >= 0 {
		g.Players[idx].Ready = true
	}
}

// handleEmoji relays an emoji to the opponent only. Each player gets a
// fixed budget per match; frames over the budget are dropped.
func (g *Game) handleEmoji(userID, emoji string) {
	idx := g.seatFor(userID)
	if idx < 0 || emoji == "" {
		return
	}
	p := g.Players[idx]
	if p.EmojiCount >= g.Config.EmojiLimitPerMatch {
		slog.Debug("emoji budget exhausted", "tag", "game", "match", g.MatchID, "user", userID)
		return
	}
	p.EmojiCount++
	g.send(1-idx, EmojiReceivedMsg{Type: "emoji_received", Emoji: emoji})
}

// handlePlayerDisconnected detaches a seat's sink. The match keeps running
// for the remaining player; only when both seats are empty does the
// abandonment grace period start. When the closing session's channel is
// provided, a seat already taken over by a newer session is left alone.
func (g *Game) handlePlayerDisconnected(userID string, send chan []byte) {
	idx := g.seatFor(userID)
	if idx < 0 {
		return
	}
	p := g.Players[idx]
	if send != nil && p.Send != send {
		return
	}
	p.Connected = false
	p.Send = nil
	slog.Info("player disconnected", "tag", "game", "match", g.MatchID, "user", userID)

	if !g.Players[0].Connected && !g.Players[1].Connected {
		g.startAbandonTimer()
	}
}

// handleAbandonTimeout force-finalizes a match both players walked away
// from, settling whatever scores stand.
func (g *Game) handleAbandonTimeout() {
	// The timer may have been cancelled by a join racing the timeout.
	if g.abandonTimerCancel == nil {
		return
	}
	if g.Players[0].Connected || g.Players[1].Connected {
		return
	}
	slog.Info("match abandoned by both players", "tag", "game", "match", g.MatchID)
	g.cancelRoundTimer()
	g.finalizeNow()
}
