package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quotient/internal/identity"
)

type createAccountRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

func (a *API) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := a.identity.CreateAccount(c.Request.Context(), identity.CreateAccountRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUser(u, identity.DisplayName(u)))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	UserID     string    `json:"userId"`
	Secret     string    `json:"secret"`
	ExpireTime time.Time `json:"expireTime"`
}

// Login opens a session. The secret is returned for bearer use and set as a cookie for browsers.
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	ss, err := a.identity.Login(c.Request.Context(), identity.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	maxAge := 0
	if !ss.ExpireTime.IsZero() {
		maxAge = int(time.Until(ss.ExpireTime).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieSession, ss.Secret, maxAge, "/", "", a.secureCookie, true)

	c.JSON(http.StatusCreated, loginResponse{
		UserID:     ss.UserID,
		Secret:     ss.Secret,
		ExpireTime: ss.ExpireTime,
	})
}

func (a *API) Logout(c *gin.Context) {
	if err := a.identity.Logout(c.Request.Context(), c.GetString(keySecret)); err != nil {
		abortWithError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieSession, "", -1, "/", "", a.secureCookie, true)
	c.Status(http.StatusNoContent)
}

func (a *API) Me(c *gin.Context) {
	u := actor(c)
	c.JSON(http.StatusOK, toUser(u, identity.DisplayName(u)))
}
