package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session token does not resolve
	// to a known participant.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoActiveRound indicates a submission arrived before the first
	// round started.
	ErrNoActiveRound = errors.New("no active round")
)
