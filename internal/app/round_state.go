package app

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"math-rush-service/internal/domain"
)

// answerTolerance absorbs floating-point input noise when comparing a
// parsed answer against the canonical one.
const answerTolerance = 0.01

// QuestionSource produces the next round's problem on demand.
type QuestionSource interface {
	Next() domain.Problem
}

// RoundState owns the active question, its canonical answer, and the
// ordered-by-arrival submission log for the round. The question swap and
// the log clear happen under one lock acquisition, so a submission is never
// evaluated against a half-initialized round and never against a
// superseded question.
type RoundState struct {
	questions QuestionSource

	mu       sync.Mutex
	seq      int64
	current  *domain.Question
	answer   float64
	log      []domain.Submission
	winner   string
	answered bool
}

func NewRoundState(questions QuestionSource) *RoundState {
	return &RoundState{questions: questions}
}

// StartRound asks the question source for a new problem, assigns it the
// next sequential id, and resets the submission log and winner flag.
func (s *RoundState) StartRound(startedAt int64) domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.questions.Next()
	s.seq++
	q := domain.Question{ID: s.seq, Text: p.Text, StartedAt: startedAt}
	s.current = &q
	s.answer = p.Answer
	s.log = nil
	s.winner = ""
	s.answered = false
	return q
}

// RecordSubmission computes correctness once at arrival and appends an
// immutable submission to the log regardless of the outcome. Incorrect
// submissions are retained for audit, not just correct ones.
func (s *RoundState) RecordSubmission(username, rawAnswer string, arrivedAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false, domain.ErrNoActiveRound
	}

	correct := false
	if v, err := strconv.ParseFloat(strings.TrimSpace(rawAnswer), 64); err == nil {
		correct = math.Abs(v-s.answer) < answerTolerance
	}

	s.log = append(s.log, domain.Submission{
		Username:  username,
		Answer:    rawAnswer,
		Timestamp: arrivedAt,
		Correct:   correct,
	})
	return correct, nil
}

// CurrentQuestion returns the active question, if any.
func (s *RoundState) CurrentQuestion() (domain.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Question{}, false
	}
	return *s.current, true
}

// Submissions returns a copy of the round's full submission log.
func (s *RoundState) Submissions() []domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Submission, len(s.log))
	copy(out, s.log)
	return out
}

// Winner reports the provisionally declared winner for this round.
func (s *RoundState) Winner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner, s.answered
}

// DeclareWinner records the winner for this round, overwriting a previous
// declaration when a later resolution pass finds an earlier correct
// submission. It returns the previous winner and whether the identity
// changed.
func (s *RoundState) DeclareWinner(username string) (previous string, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.winner
	changed = s.winner != username
	s.winner = username
	s.answered = true
	return previous, changed
}
