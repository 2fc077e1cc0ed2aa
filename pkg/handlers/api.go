package handlers

import (
	"net/http"
	"strings"

	"devblog/pkg/models"
	"devblog/pkg/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPosts(c *gin.Context) {
	sync, sess := h.synchronizer(c)
	posts, err := sync.ListPosts(c.Request.Context(), sess.User.Login)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) GetPost(c *gin.Context) {
	sync, sess := h.synchronizer(c)
	post, err := sync.GetPost(c.Request.Context(), sess.User.Login, c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	html, err := h.renderer.Render(sess.User.Login, post.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "html": html})
}

func (h *Handler) CreatePost(c *gin.Context) {
	var in models.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: " + err.Error(), "code": "invalid_request"})
		return
	}
	in.Slug = ""

	sync, sess := h.synchronizer(c)
	post, err := sync.SavePost(c.Request.Context(), sess.User.Login, in, "")
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created", "post": post})
}

type updatePostRequest struct {
	Title        string            `json:"title" binding:"required"`
	Body         string            `json:"body" binding:"required"`
	Date         string            `json:"date"`
	Meta         map[string]string `json:"meta"`
	VersionToken string            `json:"version_token" binding:"required"`
}

// UpdatePost saves an edit. The slug in the URL is kept even if the title
// changed.
func (h *Handler) UpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: " + err.Error(), "code": "invalid_request"})
		return
	}

	in := models.PostInput{
		Slug:  c.Param("slug"),
		Title: req.Title,
		Body:  req.Body,
		Date:  req.Date,
		Meta:  req.Meta,
	}
	sync, sess := h.synchronizer(c)
	post, err := sync.SavePost(c.Request.Context(), sess.User.Login, in, req.VersionToken)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "post": post})
}

func (h *Handler) DeletePost(c *gin.Context) {
	sync, sess := h.synchronizer(c)
	err := sync.DeletePost(c.Request.Context(), sess.User.Login, c.Param("slug"), c.Query("version_token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type previewRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Preview shows the file that a save would write and its rendered HTML.
func (h *Handler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "code": "invalid_request"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	sess := c.MustGet(contextSession).(models.Session)
	html, err := h.renderer.Render(sess.User.Login, req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render preview"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"raw":  services.EncodeFrontmatter(title, h.now().Format("2006-01-02"), req.Body),
		"slug": services.CreateSlug(title),
		"html": html,
	})
}

type folderRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateFolder initializes one of the posts folders in the blog repository.
func (h *Handler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "code": "invalid_request"})
		return
	}

	sync, sess := h.synchronizer(c)
	file, err := sync.InitFolder(c.Request.Context(), sess.User.Login, strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created", "path": file.Path})
}
