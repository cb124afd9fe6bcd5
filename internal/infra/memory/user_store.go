package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"math-rush-service/internal/domain"
)

type userRecord struct {
	username   string
	token      string
	wins       int
	answered   int
	bestTime   *int64
	lastActive time.Time
}

// UserStore is the in-memory session/stats store, used when no Postgres is
// configured and in unit tests.
type UserStore struct {
	now func() time.Time

	mu     sync.Mutex
	users  map[string]*userRecord
	tokens map[string]string // token -> username
}

func NewUserStore() *UserStore {
	return NewUserStoreWithClock(time.Now)
}

// NewUserStoreWithClock allows deterministic timestamps in tests.
func NewUserStoreWithClock(now func() time.Time) *UserStore {
	return &UserStore{
		now:    now,
		users:  make(map[string]*userRecord),
		tokens: make(map[string]string),
	}
}

func (s *UserStore) CreateSession(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsertLocked(username)
	if rec.token != "" {
		delete(s.tokens, rec.token)
	}
	rec.token = uuid.NewString()
	rec.lastActive = s.now()
	s.tokens[rec.token] = username
	return rec.token, nil
}

func (s *UserStore) RestoreSession(_ context.Context, token string) (string, domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.tokens[token]
	if !ok {
		return "", domain.UserStats{}, domain.ErrSessionNotFound
	}
	rec := s.users[username]
	rec.lastActive = s.now()
	return username, statsOf(rec), nil
}

func (s *UserStore) RecordAnswered(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsertLocked(username)
	rec.answered++
	rec.lastActive = s.now()
	return nil
}

func (s *UserStore) RecordWin(_ context.Context, username string, responseTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsertLocked(username)
	rec.wins++
	rec.answered++
	if rec.bestTime == nil || responseTimeMs < *rec.bestTime {
		rt := responseTimeMs
		rec.bestTime = &rt
	}
	rec.lastActive = s.now()
	return nil
}

func (s *UserStore) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.LeaderboardEntry, 0, len(s.users))
	for _, rec := range s.users {
		entries = append(entries, domain.LeaderboardEntry{
			Username: rec.username,
			Wins:     rec.wins,
			Answered: rec.answered,
			BestTime: rec.bestTime,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		bi, bj := entries[i].BestTime, entries[j].BestTime
		if bi != nil && bj != nil && *bi != *bj {
			return *bi < *bj
		}
		if (bi == nil) != (bj == nil) {
			return bi != nil
		}
		return entries[i].Username < entries[j].Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *UserStore) upsertLocked(username string) *userRecord {
	if rec, ok := s.users[username]; ok {
		return rec
	}
	rec := &userRecord{username: username}
	s.users[username] = rec
	return rec
}

func statsOf(rec *userRecord) domain.UserStats {
	return domain.UserStats{Wins: rec.wins, Answered: rec.answered, BestTime: rec.bestTime}
}
