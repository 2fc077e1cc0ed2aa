package handlers

import (
	"net/http"
	"time"

	"devblog/pkg/config"
	"devblog/pkg/models"
	"devblog/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	sessionTokenKey = "access_token"
	sessionUserKey  = "user"
	sessionStateKey = "oauth_state"
	contextSession  = "session"

	githubTimeout = 30 * time.Second
)

// Handler serves the blog API for signed-in users. Every request builds its
// own GitHub client from the caller's session.
type Handler struct {
	site     config.Site
	oauth    *oauth2.Config
	apiURL   string
	log      *zap.Logger
	renderer *services.MarkdownRenderer
	http     *http.Client
	now      func() time.Time
}

type Option func(*Handler)

// WithClock sets the time source passed to the synchronizer.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func New(cfg *config.Config, site config.Site, oauth *oauth2.Config, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		site:   site,
		oauth:  oauth,
		apiURL: cfg.GitHubAPIURL,
		log:    log,
		renderer: &services.MarkdownRenderer{
			RawBaseURL: cfg.GitHubRawURL,
			Repository: site.Repository,
			Branch:     site.Branch,
		},
		http: &http.Client{Timeout: githubTimeout},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all routes on r. The sessions middleware must already be
// installed.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/login/github", h.GithubLogin)
	r.GET("/auth/callback", h.AuthCallback)
	r.GET("/logout", h.Logout)

	authorized := r.Group("/")
	authorized.Use(h.AuthRequired)
	{
		authorized.GET("/", h.Me)

		api := authorized.Group("/api")
		{
			api.GET("/me", h.Me)
			api.GET("/posts", h.ListPosts)
			api.GET("/posts/:slug", h.GetPost)
			api.POST("/posts", h.CreatePost)
			api.PUT("/posts/:slug", h.UpdatePost)
			api.DELETE("/posts/:slug", h.DeletePost)
			api.POST("/preview", h.Preview)
			api.POST("/media", h.UploadMedia)
			api.POST("/folders", h.CreateFolder)
		}
	}
}

func (h *Handler) client(c *gin.Context, sess models.Session) *services.GitHubClient {
	return services.NewGitHubClient(c.Request.Context(), sess,
		services.WithBaseURL(h.apiURL),
		services.WithHTTPClient(h.http),
	)
}

func (h *Handler) synchronizer(c *gin.Context) (*services.Synchronizer, models.Session) {
	sess := c.MustGet(contextSession).(models.Session)
	sync := services.NewSynchronizer(h.client(c, sess), h.site, h.log, services.WithClock(h.now))
	return sync, sess
}

// respondError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code := http.StatusBadGateway, "upstream_error"
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
		session := sessions.Default(c)
		session.Clear()
		_ = session.Save()
	case errors.Is(err, services.ErrPostNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrNoPostsFolder):
		status, code = http.StatusNotFound, "no_posts_folder"
	case errors.Is(err, services.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrAlreadyExists):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, services.ErrRepositoryUnavailable):
		status, code = http.StatusForbidden, "repository_unavailable"
	case errors.Is(err, services.ErrUnsupportedMedia):
		status, code = http.StatusUnsupportedMediaType, "unsupported_media"
	case errors.Is(err, services.ErrInvalidTitle),
		errors.Is(err, services.ErrInvalidSlug),
		errors.Is(err, services.ErrInvalidFolder),
		errors.Is(err, services.ErrMissingVersionToken):
		status, code = http.StatusBadRequest, "invalid_request"
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		h.log.Info("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
