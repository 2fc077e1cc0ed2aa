package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"devblog/pkg/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func (h *Handler) AuthRequired(c *gin.Context) {
	session := sessions.Default(c)
	token, _ := session.Get(sessionTokenKey).(string)
	rawUser, _ := session.Get(sessionUserKey).(string)

	var user models.Identity
	if token != "" && rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			user = models.Identity{}
		}
	}
	if token == "" || user.Login == "" {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
		} else {
			c.Redirect(http.StatusFound, "/login/github")
			c.Abort()
		}
		return
	}

	c.Set(contextSession, models.Session{Token: token, User: user})
	c.Next()
}

func (h *Handler) GithubLogin(c *gin.Context) {
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(sessionStateKey, state)
	if err := session.Save(); err != nil {
		c.String(http.StatusInternalServerError, "Session save failed")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// AuthCallback exchanges the authorization code, looks up the GitHub
// identity and stores both in the session.
func (h *Handler) AuthCallback(c *gin.Context) {
	session := sessions.Default(c)
	expected, _ := session.Get(sessionStateKey).(string)
	session.Delete(sessionStateKey)

	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "Missing authorization code")
		return
	}
	if expected == "" || c.Query("state") != expected {
		c.String(http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	ctx := context.WithValue(c.Request.Context(), oauth2.HTTPClient, h.http)
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "OAuth Exchange Failed")
		return
	}

	user, err := h.client(c, models.Session{Token: token.AccessToken}).GetUser(c.Request.Context())
	if err != nil {
		h.log.Warn("fetching github user failed", zap.Error(err))
		c.String(http.StatusBadGateway, "Fetching GitHub user failed")
		return
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		c.String(http.StatusInternalServerError, "Session encode failed")
		return
	}

	session.Set(sessionTokenKey, token.AccessToken)
	session.Set(sessionUserKey, string(rawUser))
	if err := session.Save(); err != nil {
		c.String(http.StatusInternalServerError, "Session save failed")
		return
	}

	h.log.Info("signed in", zap.String("login", user.Login))
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Redirect(http.StatusFound, "/login/github")
}

func (h *Handler) Me(c *gin.Context) {
	sess := c.MustGet(contextSession).(models.Session)
	c.JSON(http.StatusOK, gin.H{
		"user":       sess.User,
		"repository": sess.User.Login + "/" + h.site.Repository,
	})
}
