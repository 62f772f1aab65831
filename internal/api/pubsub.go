package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/feed"
)

const maxConcurrent = 100

func (a *API) PublishGroupCreated(ctx context.Context, e domain.EventGroupCreated) error {
	return a.publishGroup(ctx, e.Group, feed.EventCreate)
}

func (a *API) PublishGroupUpdated(ctx context.Context, e domain.EventGroupUpdated) error {
	return a.publishGroup(ctx, e.Group, feed.EventUpdate)
}

// publishGroup notifies the group page and the group list of every member.
func (a *API) publishGroup(ctx context.Context, g domain.Group, ev feed.EventType) error {
	data := toGroup(&g)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.feed.Publish(ctx, feed.GroupPath(g.GroupID), data, ev)
	})
	for _, member := range g.Members {
		eg.Go(func() error {
			return a.feed.Publish(ctx, feed.UserGroupsPath(member), data, ev)
		})
	}

	return eg.Wait()
}

func (a *API) PublishQuoteCreated(ctx context.Context, e domain.EventQuoteCreated) error {
	return a.feed.Publish(ctx, feed.QuotesPath(e.Quote.GroupID), toQuote(&e.Quote), feed.EventCreate)
}

func (a *API) PublishQuoteUpdated(ctx context.Context, e domain.EventQuoteUpdated) error {
	return a.feed.Publish(ctx, feed.QuotesPath(e.Quote.GroupID), toQuote(&e.Quote), feed.EventUpdate)
}

func (a *API) PublishQuoteDeleted(ctx context.Context, e domain.EventQuoteDeleted) error {
	return a.feed.Publish(ctx, feed.QuotesPath(e.Quote.GroupID), toQuote(&e.Quote), feed.EventDelete)
}

func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard
	return a.feed.Publish(ctx, feed.LeaderboardPath(l.GroupID), l, feed.EventUpdate)
}
