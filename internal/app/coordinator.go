package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"math-rush-service/internal/domain"
)

// SessionStore abstracts the external session credential collaborator.
type SessionStore interface {
	// CreateSession issues a fresh opaque credential for username.
	CreateSession(ctx context.Context, username string) (string, error)
	// RestoreSession resolves a credential back to a username and its
	// accumulated stats. Returns domain.ErrSessionNotFound for unknown or
	// expired tokens.
	RestoreSession(ctx context.Context, token string) (string, domain.UserStats, error)
}

// StatsStore accumulates per-participant win/response-time statistics.
// Calls are best-effort; failures never block round progression.
type StatsStore interface {
	RecordAnswered(ctx context.Context, username string) error
	RecordWin(ctx context.Context, username string, responseTimeMs int64) error
}

// LeaderboardSource reads the top-N participants by win count.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Config carries the coordinator's timing knobs.
type Config struct {
	// BufferWindow is the fairness window after the first submission of a
	// burst during which further submissions are still collected.
	BufferWindow time.Duration
	// NextRoundDelay is the pause between the winner announcement and the
	// next question.
	NextRoundDelay time.Duration
	// LeaderboardSize bounds the getLeaderboard response.
	LeaderboardSize int
}

const (
	defaultBufferWindow    = 100 * time.Millisecond
	defaultNextRoundDelay  = 3 * time.Second
	defaultLeaderboardSize = 10
	statsUpdateTimeout     = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferWindow <= 0 {
		c.BufferWindow = defaultBufferWindow
	}
	if c.NextRoundDelay <= 0 {
		c.NextRoundDelay = defaultNextRoundDelay
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = defaultLeaderboardSize
	}
	return c
}

// Coordinator owns the lifecycle of the question round: it timestamps
// concurrent submissions, buffers them over the fairness window, resolves
// the legitimate winner, and drives the transition to the next round.
type Coordinator struct {
	cfg         Config
	clock       clockwork.Clock
	state       *RoundState
	buffer      *AnswerBuffer
	sessions    SessionStore
	stats       StatsStore
	leaderboard LeaderboardSource
	broadcaster Broadcaster

	// mu serializes resolution passes and round transitions.
	mu         sync.Mutex
	lastWinner string

	stampMu   sync.Mutex
	lastStamp int64
}

func NewCoordinator(
	cfg Config,
	clock clockwork.Clock,
	questions QuestionSource,
	sessions SessionStore,
	stats StatsStore,
	leaderboard LeaderboardSource,
	broadcaster Broadcaster,
) *Coordinator {
	return &Coordinator{
		cfg:         cfg.withDefaults(),
		clock:       clock,
		state:       NewRoundState(questions),
		buffer:      NewAnswerBuffer(clock),
		sessions:    sessions,
		stats:       stats,
		leaderboard: leaderboard,
		broadcaster: broadcaster,
	}
}

// Start generates the first question so that the earliest connection
// always receives one.
func (c *Coordinator) Start() {
	q := c.state.StartRound(c.stamp())
	log.Info().Int64("question_id", q.ID).Str("question", q.Text).Msg("first round started")
}

// OnConnect sends the current question to a participant joining mid-round
// and refreshes the stats broadcast. There is no replay of prior
// submissions or winner state.
func (c *Coordinator) OnConnect(connID string) {
	if q, ok := c.state.CurrentQuestion(); ok {
		c.broadcaster.Send(connID, questionEvent(q, ""))
	}
	c.broadcastStats()
}

// OnDisconnect discards the departing participant's pending buffer entries
// and refreshes the stats broadcast. Submissions already recorded in the
// round log remain valid evidence; a disconnected participant can still win
// a round in flight.
func (c *Coordinator) OnDisconnect(username string) {
	if username != "" {
		c.buffer.RemoveParticipant(username)
	}
	c.broadcastStats()
}

// SetUsername establishes identity for a connection, creates a session,
// and replies with the restored-session frame plus the current question
// carrying the piggy-backed credential.
func (c *Coordinator) SetUsername(ctx context.Context, connID, rawName, fallback string) string {
	username := strings.TrimSpace(rawName)
	if username == "" {
		username = fallback
	}

	token, err := c.sessions.CreateSession(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("create session failed")
		return username
	}

	c.broadcaster.Send(connID, sessionRestoredEvent(username, domain.UserStats{}))
	if q, ok := c.state.CurrentQuestion(); ok {
		c.broadcaster.Send(connID, questionEvent(q, token))
	}
	return username
}

// RestoreSession resolves a session credential. Unknown or expired tokens
// are a silent no-op; the client falls back to the join screen.
func (c *Coordinator) RestoreSession(ctx context.Context, connID, token string) string {
	username, stats, err := c.sessions.RestoreSession(ctx, token)
	if err != nil {
		log.Debug().Err(err).Msg("session restore rejected")
		return ""
	}
	c.broadcaster.Send(connID, sessionRestoredEvent(username, stats))
	return username
}

// SubmitAnswer timestamps the submission at the instant the coordinator
// accepts it, records it against the active round, and feeds correct
// submissions into the buffering pipeline. Reports whether the answer
// passed the tolerance check.
func (c *Coordinator) SubmitAnswer(username, rawAnswer string) (bool, error) {
	ts := c.stamp()

	correct, err := c.state.RecordSubmission(username, rawAnswer, ts)
	if err != nil {
		return false, err
	}
	if !correct {
		return false, nil
	}

	c.buffer.Add(domain.Submission{Username: username, Answer: rawAnswer, Timestamp: ts, Correct: true})
	if c.buffer.ArmTimerIfNeeded(c.cfg.BufferWindow, c.resolvePass) {
		log.Debug().Str("username", username).Dur("window", c.cfg.BufferWindow).Msg("buffer window armed")
	}
	return true, nil
}

// SendLeaderboard answers a getLeaderboard request. A failing read is
// degraded to an empty board; the ranking is best-effort, never
// authoritative for round fairness.
func (c *Coordinator) SendLeaderboard(ctx context.Context, connID string) {
	entries, err := c.leaderboard.Leaderboard(ctx, c.cfg.LeaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard read failed")
		entries = nil
	}
	c.broadcaster.Send(connID, leaderboardEvent(entries))
}

// resolvePass runs when the buffer timer fires: it drains the window and
// resolves the winner against the full round log, so a pass never ignores
// evidence visible to an earlier pass.
func (c *Coordinator) resolvePass() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The batch may have shrunk (or emptied) since the timer was armed if a
	// participant disconnected; the log is what resolution trusts, so the
	// pass still runs.
	batch := c.buffer.DrainAll()

	q, ok := c.state.CurrentQuestion()
	if !ok {
		return
	}

	outcome, ok := Resolve(c.state.Submissions(), q.StartedAt)
	if !ok {
		// No correct submissions this round yet; participants keep submitting.
		return
	}

	previous, changed := c.state.DeclareWinner(outcome.Username)
	if changed {
		c.lastWinner = outcome.Username
		if previous != "" {
			log.Info().
				Str("previous", previous).
				Str("winner", outcome.Username).
				Int64("response_time_ms", outcome.ResponseTime).
				Msg("winner corrected by earlier timestamp")
		} else {
			log.Info().
				Str("winner", outcome.Username).
				Int64("response_time_ms", outcome.ResponseTime).
				Msg("winner declared")
		}
		c.broadcaster.BroadcastAll(winnerEvent(outcome, q.Text))
		c.recordWinAsync(outcome)
	}

	c.notifyLosers(batch, outcome.Username)

	if previous == "" {
		// First announcement this round: schedule the transition. The delay
		// always runs to completion once armed.
		c.clock.AfterFunc(c.cfg.NextRoundDelay, c.nextRound)
	}
}

// notifyLosers tells every participant in the drained batch whose correct
// submission lost the tie-break, and records their answered stat.
func (c *Coordinator) notifyLosers(batch []domain.Submission, winner string) {
	seen := make(map[string]struct{}, len(batch))
	for _, sub := range batch {
		if sub.Username == winner {
			continue
		}
		if _, dup := seen[sub.Username]; dup {
			continue
		}
		seen[sub.Username] = struct{}{}
		c.broadcaster.SendUser(sub.Username, tooLateEvent(winner))
		c.recordAnsweredAsync(sub.Username)
	}
}

// nextRound swaps the question and clears the log atomically, then
// broadcasts the new question. The winner broadcast for the finished round
// always precedes this one.
func (c *Coordinator) nextRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stale := c.buffer.DrainAll(); len(stale) > 0 {
		log.Debug().Int("count", len(stale)).Msg("discarded buffered submissions at round transition")
	}

	q := c.state.StartRound(c.stamp())
	log.Info().Int64("question_id", q.ID).Str("question", q.Text).Msg("round started")
	c.broadcaster.BroadcastAll(questionEvent(q, ""))
}

func (c *Coordinator) broadcastStats() {
	c.mu.Lock()
	last := c.lastWinner
	c.mu.Unlock()
	c.broadcaster.BroadcastAll(statsEvent(c.broadcaster.Count(), last))
}

// recordWinAsync updates the winner's stats without blocking the round.
// A transient store failure is a lost update, not a reason to stall.
func (c *Coordinator) recordWinAsync(outcome domain.WinnerOutcome) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), statsUpdateTimeout)
		defer cancel()
		if err := c.stats.RecordWin(ctx, outcome.Username, outcome.ResponseTime); err != nil {
			log.Error().Err(err).Str("username", outcome.Username).Msg("record win failed")
		}
	}()
}

func (c *Coordinator) recordAnsweredAsync(username string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), statsUpdateTimeout)
		defer cancel()
		if err := c.stats.RecordAnswered(ctx, username); err != nil {
			log.Error().Err(err).Str("username", username).Msg("record answered failed")
		}
	}()
}

// stamp returns a monotonically non-decreasing millisecond timestamp; it is
// the single fairness anchor for submission ordering in this process.
func (c *Coordinator) stamp() int64 {
	c.stampMu.Lock()
	defer c.stampMu.Unlock()
	now := c.clock.Now().UnixMilli()
	if now < c.lastStamp {
		now = c.lastStamp
	}
	c.lastStamp = now
	return now
}
