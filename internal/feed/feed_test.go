package feed_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quotient/internal/feed"
)

func makeFeed(t *testing.T) (*feed.Feed, redis.UniversalClient) {
	t.Helper()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	t.Cleanup(func() { _ = rc.Close() })

	return feed.New(feed.Config{Redis: rc, Prefix: "test"}), rc
}

func TestFeed_SubscribeReceivesPublishedChanges(t *testing.T) {
	f, _ := makeFeed(t)
	ctx := context.Background()

	sub, err := f.Subscribe(ctx, feed.QuotesPath("g1"))
	require.NoError(t, err)
	defer sub.Close()

	other, err := f.Subscribe(ctx, feed.QuotesPath("g2"))
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, f.Publish(ctx, feed.QuotesPath("g1"), map[string]string{"id": "q1"}, feed.EventCreate))

	select {
	case ch := <-sub.Changes():
		assert.Equal(t, "groups/g1/quotes", ch.Path)
		assert.Equal(t, feed.EventCreate, ch.Event)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(ch.Payload, &payload))
		assert.Equal(t, "q1", payload["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("change not received")
	}

	select {
	case ch := <-other.Changes():
		t.Fatalf("unexpected change on another path: %+v", ch)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscription_Close(t *testing.T) {
	f, _ := makeFeed(t)

	sub, err := f.Subscribe(context.Background(), feed.GroupPath("g1"))
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "closing twice is a no-op")

	select {
	case _, ok := <-sub.Changes():
		assert.False(t, ok, "changes channel is closed")
	case <-time.After(2 * time.Second):
		t.Fatal("changes channel not closed")
	}
}

func TestFeed_WatchStopsWhenContextIsCancelled(t *testing.T) {
	f, rc := makeFeed(t)
	path := feed.LeaderboardPath("g1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	_, err := f.Watch(ctx, path, func(feed.Change) {
		calls.Add(1)
	})
	require.NoError(t, err)

	require.NoError(t, f.Publish(context.Background(), path, nil, feed.EventUpdate))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		n, err := rc.PubSubNumSub(context.Background(), "test:"+path).Result()
		return err == nil && n["test:"+path] == 0
	}, 2*time.Second, 10*time.Millisecond, "watch should unsubscribe")

	require.NoError(t, f.Publish(context.Background(), path, nil, feed.EventUpdate))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
