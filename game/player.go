package game

import "quiz-duel-server/storage"

// roundAnswer is one player's accepted answer for the current round.
type roundAnswer struct {
	option  string
	timeSec float64
	score   int
	correct bool
}

// Player represents one seat in a match. Joined stays true once the player
// has attached a session at least once; Connected tracks the live sink.
type Player struct {
	User      storage.UserRecord
	Send      chan []byte // reference to the session's send channel; nil while detached
	Joined    bool
	Ready     bool
	Connected bool

	EmojiCount int

	// answer is reset at each round start; nil until the player answers.
	answer *roundAnswer
}

// NewPlayer creates a seat for the given user with no session attached.
func NewPlayer(user storage.UserRecord) *Player {
	return &Player{User: user}
}
