package models

// Identity is the authenticated GitHub user. Login doubles as the owner of
// the blog repository.
type Identity struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email,omitempty"`
}

// Session carries the bearer credential and identity for one signed-in user.
type Session struct {
	Token string
	User  Identity
}

type MediaFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"` // Repository-relative, e.g. images/1700000000000-diagram.png
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
