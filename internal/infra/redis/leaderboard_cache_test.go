package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"math-rush-service/internal/domain"
	"math-rush-service/internal/infra/memory"
)

type countingSource struct {
	Source
	calls int
}

func (s *countingSource) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.calls++
	return s.Source.Leaderboard(ctx, limit)
}

func TestLeaderboardCacheStoresSnapshotInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	store := memory.NewUserStore()
	store.RecordWin(ctx, "alice", 150)
	store.RecordWin(ctx, "bob", 90)
	store.RecordWin(ctx, "bob", 80)

	source := &countingSource{Source: store}
	cache := NewLeaderboardCache(client, source, time.Minute)

	entries, err := cache.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 || entries[0].Username != "bob" {
		t.Fatalf("expected bob leading, got %+v", entries)
	}
	if source.calls != 1 {
		t.Fatalf("expected one source read, got %d", source.calls)
	}
	if !mr.Exists("leaderboard:top:10") {
		t.Fatalf("expected snapshot key in redis")
	}

	// Second read hits the snapshot.
	if _, err := cache.Leaderboard(ctx, 10); err != nil {
		t.Fatalf("leaderboard 2: %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.calls)
	}

	// Snapshot expiry forces a reload.
	mr.FastForward(2 * time.Minute)
	if _, err := cache.Leaderboard(ctx, 10); err != nil {
		t.Fatalf("leaderboard 3: %v", err)
	}
	if source.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d", source.calls)
	}
}
