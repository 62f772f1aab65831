package event_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quotient/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a single subscriber should receive only the events it subscribed to": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quote.created"),
						eventWithName("quote.deleted"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quote.created"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created")}, out.received["s1"])
			},
		},

		"a single subscriber should receive all dispatched event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quote.created"),
						eventWithName("quote.created"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quote.created"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created"), eventWithName("quote.created")}, out.received["s1"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quote.created"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quote.created"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"quote.created"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"quote.created"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created")}, out.received["s3"])
			},
		},

		"multiple events should be dispatched correctly multiple subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quote.created"),
						eventWithName("quote.deleted"),
						eventWithName("quote.created"),
						eventWithName("result.recorded"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quote.created"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"quote.created", "quote.deleted"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"result.recorded", "quote.deleted"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created"), eventWithName("quote.created")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.created"), eventWithName("quote.created"), eventWithName("quote.deleted")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quote.deleted"), eventWithName("result.recorded")}, out.received["s3"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestOn_TypedHandler(t *testing.T) {
	b := event.NewBus()

	var (
		mu  sync.Mutex
		got []resultRecorded
	)
	event.On(b, "result.recorded", func(_ context.Context, e resultRecorded) error {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), resultRecorded{score: 80})
	// Same name, wrong type: dropped by the typed handler.
	b.Publish(context.Background(), eventWithName("result.recorded"))
	b.Stop()

	require.Equal(t, []resultRecorded{{score: 80}}, got)
}

func TestBus_SlowHandlerDoesNotBlockOthers(t *testing.T) {
	b := event.NewBus(event.WithPoolSize(1), event.WithTimeout(time.Second))

	release := make(chan struct{})
	fast := make(chan struct{}, 2)

	b.Subscribe("quote.created", func(ctx context.Context, _ event.Event) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	b.Subscribe("quote.created", func(context.Context, event.Event) error {
		fast <- struct{}{}
		return nil
	})

	b.Publish(context.Background(), eventWithName("quote.created"))

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast handler was not called")
	}

	close(release)
	b.Stop()
}

func TestBus_HandlerContext(t *testing.T) {
	tests := map[string]struct {
		handler func(ctx context.Context) error
		assert  func(t *testing.T, ctxErr error)
	}{
		"survives cancellation of the publisher": {
			handler: func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			},
			assert: func(t *testing.T, ctxErr error) {
				assert.NoError(t, ctxErr)
			},
		},
		"is bounded by the bus timeout": {
			handler: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			assert: func(t *testing.T, ctxErr error) {
				assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b := event.NewBus(event.WithTimeout(50 * time.Millisecond))

			var ctxErr error
			b.Subscribe("leaderboard.updated", func(ctx context.Context, _ event.Event) error {
				err := tt.handler(ctx)
				ctxErr = ctx.Err()
				return err
			})

			ctx, cancel := context.WithCancel(context.Background())
			b.Publish(ctx, eventWithName("leaderboard.updated"))
			cancel()
			b.Stop()

			tt.assert(t, ctxErr)
		})
	}
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	b := event.NewBus()

	done := make(chan struct{})
	b.Subscribe("group.created", func(context.Context, event.Event) error {
		panic("boom")
	})
	b.Subscribe("group.created", func(context.Context, event.Event) error {
		close(done)
		return nil
	})

	b.Publish(context.Background(), eventWithName("group.created"))
	b.Stop()

	select {
	case <-done:
	default:
		t.Fatal("second handler was not called")
	}
}

type resultRecorded struct {
	score int
}

func (resultRecorded) Name() string { return "result.recorded" }

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
