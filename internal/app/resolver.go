package app

import "math-rush-service/internal/domain"

// Resolve picks the legitimate winner from a round's accumulated
// submissions: the correct submission with the minimum server-observed
// arrival timestamp. Ties on the timestamp are broken by first-seen order
// in the log. A set with no correct submissions yields no winner, which is
// a legitimate outcome, not an error.
//
// Callers must always pass the full round log, never just the latest
// drained batch: a later pass may discover a correct submission that is
// strictly earlier than a previously declared winner, and the declared
// winner must track the global minimum.
func Resolve(submissions []domain.Submission, questionStartedAt int64) (domain.WinnerOutcome, bool) {
	var best *domain.Submission
	for i := range submissions {
		s := &submissions[i]
		if !s.Correct {
			continue
		}
		// Strict less keeps the earlier log entry on equal timestamps.
		if best == nil || s.Timestamp < best.Timestamp {
			best = s
		}
	}
	if best == nil {
		return domain.WinnerOutcome{}, false
	}
	return domain.WinnerOutcome{
		Username:     best.Username,
		Answer:       best.Answer,
		ResponseTime: best.Timestamp - questionStartedAt,
	}, true
}
