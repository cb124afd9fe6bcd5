package domain

// Problem is a generated question text with its canonical numeric answer.
type Problem struct {
	Text   string
	Answer float64
}

// Question is the round's active question as seen by participants.
// The canonical answer deliberately lives outside this struct so it can
// never leak into a broadcast payload.
type Question struct {
	ID        int64  `json:"id"`
	Text      string `json:"question"`
	StartedAt int64  `json:"timestamp"` // server clock, unix milliseconds
}

// Submission is one participant's timestamped attempt at the active question.
// Immutable after creation; Timestamp is the server-observed arrival time in
// milliseconds, never a client-claimed value.
type Submission struct {
	Username  string
	Answer    string
	Timestamp int64
	Correct   bool
}

// WinnerOutcome summarizes a resolution pass that found a winner.
type WinnerOutcome struct {
	Username     string
	Answer       string
	ResponseTime int64 // milliseconds from question start to winning arrival
}

// UserStats is the cumulative record kept per participant.
type UserStats struct {
	Wins     int    `json:"wins"`
	Answered int    `json:"answered"`
	BestTime *int64 `json:"bestTime"`
}

// LeaderboardEntry is one row of the top-N ranking by win count.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Answered int    `json:"answered"`
	BestTime *int64 `json:"bestTime"`
}
