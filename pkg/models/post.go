package models

// Post is a blog entry backed by one Markdown file in the blog repository.
type Post struct {
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	Date         string            `json:"date"`
	Content      string            `json:"content"`
	Excerpt      string            `json:"excerpt"`
	VersionToken string            `json:"version_token"`
	Path         string            `json:"path"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// PostInput is the write payload for creating or editing a post.
// A non-empty Slug means the post already exists and keeps that slug.
type PostInput struct {
	Slug  string            `json:"slug"`
	Title string            `json:"title" binding:"required"`
	Body  string            `json:"body" binding:"required"`
	Date  string            `json:"date,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// RepositoryFile is one entry of the contents API, either from a directory
// listing or a single file fetch.
type RepositoryFile struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	VersionToken string `json:"sha"`
	Size         int64  `json:"size"`
	Content      string `json:"content,omitempty"`  // base64, file fetches only
	Encoding     string `json:"encoding,omitempty"` // "base64"
}
