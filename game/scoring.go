package game

// Latency brackets for correct answers, in seconds. An answer inside the
// fast bracket scores full points; the slow bracket covers everything up to
// the round timeout.
const (
	fastAnswerSec   = 3.0
	mediumAnswerSec = 7.0

	scoreFast   = 100
	scoreMedium = 70
	scoreSlow   = 40
)

// scoreFor returns the points for one answer. Wrong or missing answers score
// zero regardless of latency; a correct answer later than the round timeout
// also scores zero.
func scoreFor(correct bool, latencySec, timeoutSec float64) int {
	if !correct {
		return 0
	}
	switch {
	case latencySec < fastAnswerSec:
		return scoreFast
	case latencySec < mediumAnswerSec:
		return scoreMedium
	case latencySec <= timeoutSec:
		return scoreSlow
	default:
		return 0
	}
}

// effectiveLatency clamps the client-reported latency by the server-side
// elapsed time so a client cannot understate how long it took. A reported
// 0 s on an answer that arrived after 12 s counts as 12 s.
func effectiveLatency(reportedSec, elapsedSec float64) float64 {
	if reportedSec < 0 {
		reportedSec = 0
	}
	if elapsedSec > reportedSec {
		return elapsedSec
	}
	return reportedSec
}
