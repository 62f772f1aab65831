package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/event"
	"github.com/victornm/quotient/internal/feed"
	"github.com/victornm/quotient/internal/group"
	"github.com/victornm/quotient/internal/identity"
	"github.com/victornm/quotient/internal/leaderboard"
	"github.com/victornm/quotient/internal/quote"
	"github.com/victornm/quotient/internal/session"
)

// Identity is the account service used for authentication.
type Identity interface {
	CreateAccount(ctx context.Context, req identity.CreateAccountRequest) (*domain.User, error)
	Login(ctx context.Context, req identity.LoginRequest) (*identity.Session, error)
	Logout(ctx context.Context, secret string) error
	CurrentUser(ctx context.Context, secret string) (*domain.User, error)
}

type Config struct {
	EventBus    *event.Bus
	Identity    Identity
	Groups      *group.Service
	Quotes      *quote.Service
	Sessions    *session.Service
	Leaderboard *leaderboard.Service
	Feed        *feed.Feed

	// PublicURL is the address of the web app, used to build invite links.
	PublicURL    string
	SecureCookie bool
}

type API struct {
	identity Identity
	groups   *group.Service
	quotes   *quote.Service
	sessions *session.Service
	lb       *leaderboard.Service
	feed     *feed.Feed

	publicURL    string
	secureCookie bool

	// ctx is cancelled by Close and ends every open feed.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(c Config) *API {
	ctx, cancel := context.WithCancel(context.Background())
	a := &API{
		ctx:          ctx,
		cancel:       cancel,
		identity:     c.Identity,
		groups:       c.Groups,
		quotes:       c.Quotes,
		sessions:     c.Sessions,
		lb:           c.Leaderboard,
		feed:         c.Feed,
		publicURL:    c.PublicURL,
		secureCookie: c.SecureCookie,
	}

	// Forward domain events to the change feed
	event.On(c.EventBus, domain.EventNameGroupCreated, a.PublishGroupCreated)
	event.On(c.EventBus, domain.EventNameGroupUpdated, a.PublishGroupUpdated)
	event.On(c.EventBus, domain.EventNameQuoteCreated, a.PublishQuoteCreated)
	event.On(c.EventBus, domain.EventNameQuoteUpdated, a.PublishQuoteUpdated)
	event.On(c.EventBus, domain.EventNameQuoteDeleted, a.PublishQuoteDeleted)
	event.On(c.EventBus, domain.EventNameLeaderboardUpdated, a.PublishLeaderboardUpdated)

	return a
}

// Register mounts the HTTP API on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")

	v1.POST("/account", a.CreateAccount)
	v1.POST("/sessions", a.Login)

	authed := v1.Group("", a.authenticate())
	authed.DELETE("/sessions/current", a.Logout)
	authed.GET("/me", a.Me)
	authed.GET("/me/feed", a.WatchMyGroups)

	authed.GET("/groups", a.ListGroups)
	authed.POST("/groups", a.CreateGroup)
	authed.GET("/groups/:groupID", a.GetGroup)
	authed.POST("/groups/:groupID/members", a.JoinGroup)
	authed.GET("/groups/:groupID/invite.png", a.Invite)
	authed.GET("/groups/:groupID/feed", a.WatchGroup)

	authed.GET("/groups/:groupID/quotes", a.ListQuotes)
	authed.POST("/groups/:groupID/quotes", a.AddQuote)
	authed.PATCH("/quotes/:quoteID", a.EditQuote)
	authed.DELETE("/quotes/:quoteID", a.DeleteQuote)

	authed.POST("/groups/:groupID/attempts", a.StartAttempt)
	authed.GET("/attempts/:attemptID", a.GetAttempt)
	authed.PUT("/attempts/:attemptID/answers/:index", a.RecordAnswer)
	authed.POST("/attempts/:attemptID/submit", a.SubmitAttempt)

	authed.GET("/groups/:groupID/leaderboard", a.GetLeaderboard)
}

// Close ends open WebSocket feeds. Hijacked connections are not tracked by http.Server.Shutdown.
func (a *API) Close() {
	a.cancel()
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
