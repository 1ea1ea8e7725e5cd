package storage

// Outcome classifies one player's result in a finished match.
type Outcome int

const (
	OutcomeLoss Outcome = iota
	OutcomeWin
	OutcomeDraw
)

// RatingPolicy maps a match outcome to a rating movement. Ratings move by
// fixed deltas and never drop below Floor; the level is a derived display
// tier, recomputed whenever the rating changes.
type RatingPolicy struct {
	WinDelta     int
	LossDelta    int // applied as a subtraction
	DrawDelta    int
	Floor        int
	LevelDivisor int
}

// DefaultRatingPolicy returns the production policy: +20 on a win, -15 on a
// loss floored at 0, no movement on a draw, one level per 200 rating.
func DefaultRatingPolicy() RatingPolicy {
	return RatingPolicy{WinDelta: 20, LossDelta: 15, DrawDelta: 0, Floor: 0, LevelDivisor: 200}
}

// Apply returns the new rating and the actually applied delta for the given
// outcome. The delta can differ from the nominal one when the floor bites
// (a loss at rating 10 applies -10, not -15).
func (p RatingPolicy) Apply(rating int, outcome Outcome) (newRating, delta int) {
	switch outcome {
	case OutcomeWin:
		newRating = rating + p.WinDelta
	case OutcomeLoss:
		newRating = rating - p.LossDelta
	default:
		newRating = rating + p.DrawDelta
	}
	if newRating < p.Floor {
		newRating = p.Floor
	}
	return newRating, newRating - rating
}

// Level derives the display tier from a rating.
func (p RatingPolicy) Level(rating int) int {
	if p.LevelDivisor <= 0 {
		return 1
	}
	return rating/p.LevelDivisor + 1
}
