// Package feed is the change notification feed. Changes are published on Redis
// channels named after the document path they concern.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quotient/internal/telemetry"
)

type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Change tells subscribers that the document at Path changed. Subscribers
// re-fetch instead of trusting Payload.
type Change struct {
	Path    string          `json:"path"`
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

func GroupPath(groupID string) string {
	return "groups/" + groupID
}

func QuotesPath(groupID string) string {
	return "groups/" + groupID + "/quotes"
}

func LeaderboardPath(groupID string) string {
	return "groups/" + groupID + "/leaderboard"
}

// UserGroupsPath carries changes to the set of groups a user belongs to.
func UserGroupsPath(userID string) string {
	return "users/" + userID + "/groups"
}

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	// Buffer is the per-subscription queue length. Changes beyond it are dropped.
	Buffer int
}

type Feed struct {
	redis  redis.UniversalClient
	prefix string
	buffer int
}

func New(c Config) *Feed {
	f := &Feed{
		redis:  c.Redis,
		prefix: c.Prefix,
		buffer: c.Buffer,
	}
	if f.buffer <= 0 {
		f.buffer = 16
	}

	return f
}

// Publish sends a change to every subscriber of path.
func (f *Feed) Publish(ctx context.Context, path string, payload any, ev EventType) error {
	ch := Change{
		Path:  path,
		Event: ev,
		Time:  time.Now().UTC(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		ch.Payload = b
	}

	b, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	if err := f.redis.Publish(ctx, f.channel(path), b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	telemetry.FeedChanges.WithLabelValues(string(ev)).Inc()

	return nil
}

// Subscription is an open subscription to one path. Callers must Close it.
type Subscription struct {
	path    string
	ps      *redis.PubSub
	changes chan Change
	done    chan struct{}
	once    sync.Once
}

// Subscribe returns once Redis confirmed the subscription, so no change
// published afterwards is missed.
func (f *Feed) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	ps := f.redis.Subscribe(ctx, f.channel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	s := &Subscription{
		path:    path,
		ps:      ps,
		changes: make(chan Change, f.buffer),
		done:    make(chan struct{}),
	}
	go s.run()

	return s, nil
}

func (s *Subscription) run() {
	defer close(s.changes)

	for msg := range s.ps.Channel() {
		var ch Change
		if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
			slog.Error("feed: malformed change", "path", s.path, "error", err)
			continue
		}

		select {
		case s.changes <- ch:
		case <-s.done:
			return
		default:
			slog.Warn("feed: subscriber too slow, change dropped", "path", s.path)
		}
	}
}

// Changes is closed after Close.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

// Watch calls fn for every change of path until ctx is done or the returned
// subscription is closed. fn runs on the watch goroutine and should only
// schedule work.
func (f *Feed) Watch(ctx context.Context, path string, fn func(Change)) (*Subscription, error) {
	s, err := f.Subscribe(ctx, path)
	if err != nil {
		return nil, err
	}

	go func() {
		defer s.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-s.Changes():
				if !ok {
					return
				}
				fn(ch)
			}
		}
	}()

	return s, nil
}

func (f *Feed) channel(path string) string {
	return f.prefix + ":" + strings.Trim(path, "/")
}
