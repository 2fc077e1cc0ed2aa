package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnauthorized = errors.New("github: unauthorized")

	// ErrPostNotFound is reportable: a freshly written post may take a few
	// seconds to appear in listings.
	ErrPostNotFound = errors.New("post not found; if it was just created, wait a few seconds and retry")

	// ErrConflict means the stored file moved past the version token the
	// caller loaded. The caller must reload; writes are never retried.
	ErrConflict = errors.New("post was changed by someone else; reload and try again")

	ErrAlreadyExists         = errors.New("already exists")
	ErrNoPostsFolder         = errors.New("no posts folder found in the blog repository")
	ErrRepositoryUnavailable = errors.New("blog repository is not accessible")
	ErrInvalidTitle          = errors.New("title produces an empty slug")
	ErrInvalidSlug           = errors.New("invalid slug")
	ErrMissingVersionToken   = errors.New("version token is required")
	ErrUnsupportedMedia      = errors.New("unsupported media type")
	ErrInvalidFolder         = errors.New("folder is not a configured posts folder")
)

// APIError is a non-2xx response from the GitHub API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Details    []string // messages of the "errors" array, if any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github api: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github api: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) mentions(s string) bool {
	if strings.Contains(strings.ToLower(e.Message), s) {
		return true
	}
	for _, d := range e.Details {
		if strings.Contains(strings.ToLower(d), s) {
			return true
		}
	}
	return false
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// StatusCode reports the HTTP status of the APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// kindError tags a cause with one of the sentinels above while keeping the
// cause (usually an *APIError) reachable through Unwrap.
type kindError struct {
	kind  error
	cause error
}

func withKind(kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

func (e *kindError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }
