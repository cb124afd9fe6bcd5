package app

import "math-rush-service/internal/domain"

// Event is one frame on the participant connection. The coordinator emits
// events through the Broadcaster capability; the transport layer only
// serializes them.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster is the server-push capability the coordinator holds instead
// of iterating over connection objects, which keeps it testable without a
// real transport.
type Broadcaster interface {
	// Send delivers an event to a single connection.
	Send(connID string, ev Event)
	// SendUser delivers an event to every connection identified as username.
	SendUser(username string, ev Event)
	// BroadcastAll delivers an event to all connected participants.
	BroadcastAll(ev Event)
	// Count reports the number of open connections.
	Count() int
}

type questionPayload struct {
	ID           int64  `json:"id"`
	Text         string `json:"question"`
	StartedAt    int64  `json:"timestamp"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type winnerPayload struct {
	Username     string `json:"username"`
	Answer       string `json:"answer"`
	Question     string `json:"question"`
	ResponseTime int64  `json:"responseTime"`
}

type tooLatePayload struct {
	Winner string `json:"winner"`
}

type statsPayload struct {
	TotalPlayers int     `json:"totalPlayers"`
	LastWinner   *string `json:"lastWinner"`
}

type sessionRestoredPayload struct {
	Username string           `json:"username"`
	Stats    domain.UserStats `json:"stats"`
}

func questionEvent(q domain.Question, sessionToken string) Event {
	return Event{Type: "question", Payload: questionPayload{
		ID:           q.ID,
		Text:         q.Text,
		StartedAt:    q.StartedAt,
		SessionToken: sessionToken,
	}}
}

func winnerEvent(outcome domain.WinnerOutcome, questionText string) Event {
	return Event{Type: "winner", Payload: winnerPayload{
		Username:     outcome.Username,
		Answer:       outcome.Answer,
		Question:     questionText,
		ResponseTime: outcome.ResponseTime,
	}}
}

func tooLateEvent(winner string) Event {
	return Event{Type: "tooLate", Payload: tooLatePayload{Winner: winner}}
}

func statsEvent(totalPlayers int, lastWinner string) Event {
	p := statsPayload{TotalPlayers: totalPlayers}
	if lastWinner != "" {
		p.LastWinner = &lastWinner
	}
	return Event{Type: "stats", Payload: p}
}

func sessionRestoredEvent(username string, stats domain.UserStats) Event {
	return Event{Type: "sessionRestored", Payload: sessionRestoredPayload{Username: username, Stats: stats}}
}

func leaderboardEvent(entries []domain.LeaderboardEntry) Event {
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return Event{Type: "leaderboard", Payload: entries}
}

// WrongAnswerEvent is the immediate per-participant response to a
// submission that fails the tolerance check.
func WrongAnswerEvent() Event {
	return Event{Type: "wrongAnswer"}
}
