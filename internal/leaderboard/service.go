package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/score"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
	defaultResolveLimit    = 8
)

// Directory resolves a user id to the name shown on the board.
type Directory interface {
	DisplayName(ctx context.Context, userID string) string
}

type DirectoryFunc func(ctx context.Context, userID string) string

func (f DirectoryFunc) DisplayName(ctx context.Context, userID string) string {
	return f(ctx, userID)
}

type Config struct {
	EventBus *event.Bus
	Score    *score.Service
	Names    Directory
	Redis    redis.UniversalClient
	Prefix   string

	// PublishInterval is the minimum delay between two leaderboard.updated events of a group.
	PublishInterval time.Duration
	// ResolveLimit bounds concurrent name lookups of one request.
	ResolveLimit int
}

type Service struct {
	eb           *event.Bus
	score        *score.Service
	names        Directory
	redis        redis.UniversalClient
	prefix       string
	interval     time.Duration
	resolveLimit int
}

func NewService(c Config) *Service {
	s := &Service{
		eb:           c.EventBus,
		score:        c.Score,
		names:        c.Names,
		redis:        c.Redis,
		prefix:       c.Prefix,
		interval:     c.PublishInterval,
		resolveLimit: c.ResolveLimit,
	}
	if s.interval <= 0 {
		s.interval = defaultPublishInterval
	}
	if s.resolveLimit <= 0 {
		s.resolveLimit = defaultResolveLimit
	}
	if s.names == nil {
		s.names = DirectoryFunc(func(_ context.Context, id string) string { return id })
	}

	event.On(s.eb, domain.EventNameResultRecorded, s.scheduleLeaderboardUpdate)

	return s
}

type GetLeaderboardRequest struct {
	GroupID string
}

// GetLeaderboard returns the ranked results of a group with player names resolved.
// A group without results has an empty leaderboard.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	results, err := s.score.ListResults(ctx, score.ListResultsRequest{GroupID: req.GroupID})
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	ranked := Rank(req.GroupID, results)
	names := s.resolveNames(ctx, ranked)

	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for i, r := range ranked {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:       i + 1,
			ResultID:   r.ResultID,
			PlayerID:   r.Player,
			PlayerName: names[r.Player],
			Score:      r.Score,
			Correct:    r.Correct,
			Total:      r.Total,
			CreateTime: r.CreateTime,
		})
	}

	return &domain.Leaderboard{
		GroupID: req.GroupID,
		Entries: entries,
	}, nil
}

// resolveNames looks up every distinct player once. The directory never fails,
// it falls back to the raw id.
func (s *Service) resolveNames(ctx context.Context, results []domain.QuizResult) map[string]string {
	var (
		mu    sync.Mutex
		names = make(map[string]string)
		seen  = make(map[string]bool)
		g     errgroup.Group
	)
	g.SetLimit(s.resolveLimit)

	for _, r := range results {
		if seen[r.Player] {
			continue
		}
		seen[r.Player] = true

		id := r.Player
		g.Go(func() error {
			name := s.names.DisplayName(ctx, id)
			if name == "" {
				name = id
			}

			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return names
}

// scheduleLeaderboardUpdate publishes the group's leaderboard once per interval.
// The first result of a window takes the Redis lock, waits for the window to
// close and publishes a leaderboard including every result recorded meanwhile.
func (s *Service) scheduleLeaderboardUpdate(ctx context.Context, e domain.EventResultRecorded) error {
	groupID := e.Result.GroupID

	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(groupID), e.Result.CreateTime.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		slog.DebugContext(ctx, "leaderboard: update already scheduled", "group", groupID)
		return nil
	}

	select {
	case <-time.After(s.interval):
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.publishLeaderboard(ctx, groupID)
}

func (s *Service) publishLeaderboard(ctx context.Context, groupID string) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		GroupID: groupID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: group=%s: %w", groupID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardTimeKey(groupID string) string {
	return fmt.Sprintf("%s:%s:leaderboard:time", s.prefix, groupID)
}
