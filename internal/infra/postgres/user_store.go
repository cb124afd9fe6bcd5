package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"math-rush-service/internal/domain"
)

// UserStore persists sessions and cumulative stats in Postgres. Each call
// is a single statement, so the store is its own transactional boundary
// per participant.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) CreateSession(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, session_token, last_active)
		VALUES ($1, $2, now())
		ON CONFLICT (username)
		DO UPDATE SET session_token = EXCLUDED.session_token, last_active = now()`,
		username, token)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (s *UserStore) RestoreSession(ctx context.Context, token string) (string, domain.UserStats, error) {
	var (
		username string
		stats    domain.UserStats
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET last_active = now()
		WHERE session_token = $1
		RETURNING username, wins, answered, best_time`,
		token).Scan(&username, &stats.Wins, &stats.Answered, &stats.BestTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.UserStats{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return "", domain.UserStats{}, fmt.Errorf("restore session: %w", err)
	}
	return username, stats, nil
}

func (s *UserStore) RecordAnswered(ctx context.Context, username string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, answered, last_active)
		VALUES ($1, 1, now())
		ON CONFLICT (username)
		DO UPDATE SET answered = users.answered + 1, last_active = now()`,
		username)
	if err != nil {
		return fmt.Errorf("record answered: %w", err)
	}
	return nil
}

func (s *UserStore) RecordWin(ctx context.Context, username string, responseTimeMs int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, wins, answered, best_time, last_active)
		VALUES ($1, 1, 1, $2, now())
		ON CONFLICT (username)
		DO UPDATE SET
			wins = users.wins + 1,
			answered = users.answered + 1,
			best_time = CASE
				WHEN users.best_time IS NULL OR $2 < users.best_time THEN $2
				ELSE users.best_time
			END,
			last_active = now()`,
		username, responseTimeMs)
	if err != nil {
		return fmt.Errorf("record win: %w", err)
	}
	return nil
}

func (s *UserStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT username, wins, answered, best_time
		FROM users
		ORDER BY wins DESC, best_time ASC NULLS LAST, username ASC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Wins, &e.Answered, &e.BestTime); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard rows: %w", err)
	}
	return entries, nil
}
