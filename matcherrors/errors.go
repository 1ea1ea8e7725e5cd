package matcherrors

import "errors"

// Matchmaking/game sentinel errors. Used by the matchmaking, ws, game and
// storage packages to avoid circular imports.
var (
	ErrAlreadyQueued         = errors.New("already in matchmaking queue")
	ErrAlreadyInGame         = errors.New("already in a live match")
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchFinished         = errors.New("match already finished")
	ErrInsufficientQuestions = errors.New("not enough questions available")
)

// Code returns the short wire code for a sentinel error, or "internal_error"
// for anything else. Error frames carry this code; internal detail stays out
// of the frame.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, ErrAlreadyInGame):
		return "already_in_game"
	case errors.Is(err, ErrMatchNotFound):
		return "match_not_found"
	case errors.Is(err, ErrMatchFinished):
		return "match_finished"
	case errors.Is(err, ErrInsufficientQuestions):
		return "insufficient_questions"
	default:
		return "internal_error"
	}
}
