package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/victornm/quotient/internal/group"
)

const inviteQRSize = 256

func (a *API) ListGroups(c *gin.Context) {
	groups, err := a.groups.ListGroups(c.Request.Context(), group.ListGroupsRequest{
		Member: actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": toGroups(groups)})
}

type createGroupRequest struct {
	Name   string `json:"name"`
	Invite string `json:"invite"`
}

func (a *API) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	g, err := a.groups.CreateGroup(c.Request.Context(), group.CreateGroupRequest{
		Name:    req.Name,
		Creator: actor(c).UserID,
		Invite:  req.Invite,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toGroup(g))
}

// GetGroup is open to any signed-in user so invitees can see what they join.
func (a *API) GetGroup(c *gin.Context) {
	g, err := a.groups.GetGroup(c.Request.Context(), group.GetGroupRequest{
		GroupID: c.Param("groupID"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGroup(g))
}

func (a *API) JoinGroup(c *gin.Context) {
	g, err := a.groups.JoinGroup(c.Request.Context(), group.JoinGroupRequest{
		GroupID: c.Param("groupID"),
		UserID:  actor(c).UserID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGroup(g))
}

// Invite renders a QR code of the group's join link.
func (a *API) Invite(c *gin.Context) {
	g, err := a.groups.GetMemberGroup(c.Request.Context(), c.Param("groupID"), actor(c).UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	png, err := qrcode.Encode(a.inviteURL(g.GroupID), qrcode.Medium, inviteQRSize)
	if err != nil {
		abortWithError(c, fmt.Errorf("encode invite qr: %w", err))
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

func (a *API) inviteURL(groupID string) string {
	return fmt.Sprintf("%s/groups/%s/join", strings.TrimRight(a.publicURL, "/"), groupID)
}
