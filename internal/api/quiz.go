package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quotient/internal/errors"
	"github.com/victornm/quotient/internal/leaderboard"
	"github.com/victornm/quotient/internal/session"
)

func (a *API) StartAttempt(c *gin.Context) {
	resp, err := a.sessions.StartAttempt(c.Request.Context(), session.StartAttemptRequest{
		GroupID: c.Param("groupID"),
		Player:  actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Empty {
		status = http.StatusOK
	}
	c.JSON(status, toAttempt(&resp.Attempt, resp.Empty))
}

func (a *API) GetAttempt(c *gin.Context) {
	at, err := a.sessions.GetAttempt(c.Request.Context(), session.GetAttemptRequest{
		AttemptID: c.Param("attemptID"),
		Player:    actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAttempt(at, false))
}

type recordAnswerRequest struct {
	Text string `json:"text"`
}

func (a *API) RecordAnswer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, errors.Validation("index", "answer index must be a number: %q", c.Param("index")))
		return
	}

	var req recordAnswerRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := a.sessions.RecordAnswer(c.Request.Context(), session.RecordAnswerRequest{
		AttemptID: c.Param("attemptID"),
		Player:    actor(c).UserID,
		Index:     index,
		Text:      req.Text,
	}); err != nil {
		abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type submitAttemptRequest struct {
	Answers []string `json:"answers"`
}

// SubmitAttempt answers 200 even when the result could not be stored; the
// body then has saved=false and a saveError.
func (a *API) SubmitAttempt(c *gin.Context) {
	var req submitAttemptRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	resp, err := a.sessions.SubmitAttempt(c.Request.Context(), session.SubmitAttemptRequest{
		AttemptID: c.Param("attemptID"),
		Player:    actor(c).UserID,
		Answers:   req.Answers,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSubmission(resp))
}

func (a *API) GetLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	groupID := c.Param("groupID")

	if _, err := a.groups.GetMemberGroup(ctx, groupID, actor(c).UserID); err != nil {
		abortWithError(c, err)
		return
	}

	l, err := a.lb.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{GroupID: groupID})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}
