package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quotient/internal/domain"
	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/telemetry"
)

const (
	cookieSession = "quotient_session"

	keyUser   = "user"
	keySecret = "secret"
)

// authenticate resolves the session secret to the acting user. Handlers read
// it with actor and never look it up on their own.
func (a *API) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := sessionSecret(c.Request)
		if secret == "" {
			abortWithError(c, errors.Unauthenticated(nil))
			return
		}

		u, err := a.identity.CurrentUser(c.Request.Context(), secret)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(keyUser, u)
		c.Set(keySecret, secret)
		c.Next()
	}
}

func sessionSecret(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if ck, err := r.Cookie(cookieSession); err == nil {
		return ck.Value
	}

	return ""
}

func actor(c *gin.Context) *domain.User {
	return c.MustGet(keyUser).(*domain.User)
}

// Logger logs every request once it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		telemetry.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		slog.Log(c.Request.Context(), level, "http: request completed",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", time.Since(start),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		)
	}
}

type errorResponse struct {
	Error *errors.Error `json:"error"`
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		slog.ErrorContext(c.Request.Context(), "http: request failed",
			"route", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{Error: e})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, errors.Validation("body", "invalid request body: %v", err))
		return false
	}
	return true
}
