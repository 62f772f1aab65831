package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/feed"
	"github.com/victornm/quotient/internal/group"
	"github.com/victornm/quotient/internal/leaderboard"
	"github.com/victornm/quotient/internal/quote"
	"github.com/victornm/quotient/internal/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	TopicGroup       = "group"
	TopicQuotes      = "quotes"
	TopicLeaderboard = "leaderboard"
	TopicGroups      = "groups"
)

// FeedMessage is sent on the WebSocket each time the watched data changed.
// Data is a fresh read, not the change itself.
type FeedMessage struct {
	Topic string         `json:"topic"`
	Event feed.EventType `json:"event,omitempty"`
	Data  any            `json:"data,omitempty"`
	Error *errors.Error  `json:"error,omitempty"`
}

type fetchFunc func(ctx context.Context) (any, error)

// WatchGroup streams one topic of a group: the group itself, its quotes or its leaderboard.
func (a *API) WatchGroup(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("groupID")

	if _, err := a.groups.GetMemberGroup(ctx, groupID, actor(c).UserID); err != nil {
		abortWithError(c, err)
		return
	}

	var (
		topic = c.DefaultQuery("topic", TopicGroup)
		path  string
		fetch fetchFunc
	)
	switch topic {
	case TopicGroup:
		path = feed.GroupPath(groupID)
		fetch = func(ctx context.Context) (any, error) {
			g, err := a.groups.GetGroup(ctx, group.GetGroupRequest{GroupID: groupID})
			if err != nil {
				return nil, err
			}
			return toGroup(g), nil
		}
	case TopicQuotes:
		path = feed.QuotesPath(groupID)
		fetch = func(ctx context.Context) (any, error) {
			qs, err := a.quotes.ListQuotes(ctx, quote.ListQuotesRequest{GroupID: groupID})
			if err != nil {
				return nil, err
			}
			return toQuotes(qs), nil
		}
	case TopicLeaderboard:
		path = feed.LeaderboardPath(groupID)
		fetch = func(ctx context.Context) (any, error) {
			return a.lb.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{GroupID: groupID})
		}
	default:
		abortWithError(c, errors.Validation("topic", "unknown topic %q", topic))
		return
	}

	a.serveFeed(c, topic, path, fetch)
}

// WatchMyGroups streams the list of groups of the current user.
func (a *API) WatchMyGroups(c *gin.Context) {
	userID := actor(c).UserID

	a.serveFeed(c, TopicGroups, feed.UserGroupsPath(userID), func(ctx context.Context) (any, error) {
		gs, err := a.groups.ListGroups(ctx, group.ListGroupsRequest{Member: userID})
		if err != nil {
			return nil, err
		}
		return toGroups(gs), nil
	})
}

// serveFeed upgrades the connection and sends a snapshot, then one more per change.
// Change callbacks only queue a re-fetch; queued re-fetches coalesce into one.
func (a *API) serveFeed(c *gin.Context, topic, path string, fetch fetchFunc) {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}

	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "feed: upgrade failed", "path", path, "error", err)
		return
	}
	defer conn.Close()

	telemetry.FeedSubscribers.Inc()
	defer telemetry.FeedSubscribers.Dec()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(a.ctx, cancel)
	defer stop()

	refetch := make(chan feed.EventType, 1)
	refetch <- ""

	sub, err := a.feed.Watch(ctx, path, func(ch feed.Change) {
		select {
		case refetch <- ch.Event:
		default:
		}
	})
	if err != nil {
		_ = conn.WriteJSON(FeedMessage{Topic: topic, Error: errors.Convert(err)})
		slog.ErrorContext(ctx, "feed: watch failed", "path", path, "error", err)
		return
	}
	defer sub.Close()

	// The client sends nothing we care about; reading detects disconnects and handles pongs.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case ev := <-refetch:
			msg := FeedMessage{Topic: topic, Event: ev}

			data, err := fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				msg.Error = errors.Convert(err)
			} else {
				msg.Data = data
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.DebugContext(ctx, "feed: write failed", "path", path, "error", err)
				return
			}
		}
	}
}

// checkOrigin accepts same-host requests and the configured web app.
func (a *API) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	return a.publicURL != "" && strings.EqualFold(origin, strings.TrimRight(a.publicURL, "/"))
}
