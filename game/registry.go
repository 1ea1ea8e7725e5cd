package game

import "sync"

// Registry tracks the live match engines: sessions use it to find their
// match and the matchmaker uses it to refuse players who are already in one.
// It holds handles, never match state.
type Registry struct {
	mu       sync.RWMutex
	byMatch  map[string]*Game
	byPlayer map[string]*Game
}

func NewRegistry() *Registry {
	return &Registry{
		byMatch:  make(map[string]*Game),
		byPlayer: make(map[string]*Game),
	}
}

// Add registers a match under its id and both player ids.
func (r *Registry) Add(g *Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMatch[g.MatchID] = g
	r.byPlayer[g.Players[0].User.ID] = g
	r.byPlayer[g.Players[1].User.ID] = g
}

// Remove drops a match and its player entries. Idempotent; a player entry
// is only removed when it still points at the same match.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.byMatch[matchID]
	if !ok {
		return
	}
	delete(r.byMatch, matchID)
	for i := 0; i < 2; i++ {
		id := g.Players[i].User.ID
		if r.byPlayer[id] == g {
			delete(r.byPlayer, id)
		}
	}
}

// Get returns the live engine for a match id.
func (r *Registry) Get(matchID string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byMatch[matchID]
	return g, ok
}

// MatchFor returns the live engine a player currently belongs to, if any.
func (r *Registry) MatchFor(playerID string) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byPlayer[playerID]
	return g, ok
}

// Count returns the number of live matches.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMatch)
}
