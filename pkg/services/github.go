package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"devblog/pkg/models"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const DefaultGitHubAPIURL = "https://api.github.com"

// ContentStore is the subset of the GitHub contents API the blog relies on.
type ContentStore interface {
	GetUser(ctx context.Context) (models.Identity, error)
	ListDirectory(ctx context.Context, owner, repo, dir string, allowMissing bool) ([]models.RepositoryFile, error)
	GetFile(ctx context.Context, owner, repo, path string) (string, error)
	PutFile(ctx context.Context, owner, repo, path string, content []byte, message, versionToken string) (*models.RepositoryFile, error)
	DeleteFile(ctx context.Context, owner, repo, path, versionToken, message string) error
	RepoExists(ctx context.Context, owner, repo string) (bool, error)
	CreateRepo(ctx context.Context, name, description string, private bool) error
	UploadBinary(ctx context.Context, owner, repo, path string, data []byte, message string) (*models.RepositoryFile, error)
}

// GitHubClient talks to the GitHub REST API on behalf of one session.
type GitHubClient struct {
	baseURL string
	http    *http.Client
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL string
	base    *http.Client
}

func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithHTTPClient sets the client the bearer-token transport wraps.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.base = c }
}

// NewGitHubClient returns a client that authenticates every request with the
// session's bearer token.
func NewGitHubClient(ctx context.Context, session models.Session, opts ...ClientOption) *GitHubClient {
	o := clientOptions{baseURL: DefaultGitHubAPIURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: session.Token, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	if o.base != nil {
		hc.Timeout = o.base.Timeout
	}
	return &GitHubClient{
		baseURL: strings.TrimRight(o.baseURL, "/"),
		http:    hc,
	}
}

// do sends a request and decodes a 2xx JSON response into out (when non-nil).
// With allow404 a 404 returns (false, nil); otherwise found is true on success.
func (c *GitHubClient) do(ctx context.Context, method, endpoint string, body, out any, allow404 bool) (bool, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return false, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "github api: %s %s", method, endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if allow404 && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, newAPIError(method, endpoint, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return true, errors.Wrapf(err, "github api: decode %s %s", method, endpoint)
	}
	return true, nil
}

func newAPIError(method, endpoint string, resp *http.Response) *APIError {
	apiErr := &APIError{Method: method, Path: endpoint, StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Message = payload.Message
		for _, e := range payload.Errors {
			if e.Message != "" {
				apiErr.Details = append(apiErr.Details, e.Message)
			}
		}
	}
	return apiErr
}

func (c *GitHubClient) GetUser(ctx context.Context) (models.Identity, error) {
	var user models.Identity
	if _, err := c.do(ctx, http.MethodGet, "/user", nil, &user, false); err != nil {
		return models.Identity{}, err
	}
	if user.Login == "" {
		return models.Identity{}, errors.New("github api: /user response has no login")
	}
	return user, nil
}

// ListDirectory lists dir. With allowMissing a missing dir yields (nil, nil),
// which callers use to probe for folder existence.
func (c *GitHubClient) ListDirectory(ctx context.Context, owner, repo, dir string, allowMissing bool) ([]models.RepositoryFile, error) {
	var raw json.RawMessage
	found, err := c.do(ctx, http.MethodGet, contentsPath(owner, repo, dir), nil, &raw, allowMissing)
	if err != nil || !found {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.Errorf("github api: %s/%s/%s is not a directory", owner, repo, dir)
	}
	files := []models.RepositoryFile{}
	if err := json.Unmarshal(trimmed, &files); err != nil {
		return nil, errors.Wrapf(err, "github api: decode listing of %s", dir)
	}
	return files, nil
}

// GetFileEntry fetches a single file entry including its base64 payload.
func (c *GitHubClient) GetFileEntry(ctx context.Context, owner, repo, path string) (*models.RepositoryFile, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, contentsPath(owner, repo, path), nil, &raw, false); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.Errorf("github api: %s/%s/%s is not a file", owner, repo, path)
	}
	var file models.RepositoryFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, errors.Wrapf(err, "github api: decode file %s", path)
	}
	return &file, nil
}

// GetFile returns the decoded text of path. A missing or undecodable payload
// yields "" without error; only transport failures are errors.
func (c *GitHubClient) GetFile(ctx context.Context, owner, repo, path string) (string, error) {
	file, err := c.GetFileEntry(ctx, owner, repo, path)
	if err != nil {
		return "", err
	}
	return decodeContent(file), nil
}

func decodeContent(file *models.RepositoryFile) string {
	if file == nil || file.Content == "" || file.Encoding != "base64" {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(file.Content))
	if err != nil {
		return ""
	}
	return string(data)
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content *models.RepositoryFile `json:"content"`
}

// PutFile creates path when versionToken is empty, or updates it only if the
// stored version still matches versionToken.
func (c *GitHubClient) PutFile(ctx context.Context, owner, repo, path string, content []byte, message, versionToken string) (*models.RepositoryFile, error) {
	body := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     versionToken,
	}
	var out putResponse
	if _, err := c.do(ctx, http.MethodPut, contentsPath(owner, repo, path), body, &out, false); err != nil {
		return nil, classifyWriteError(err, versionToken == "")
	}
	if out.Content == nil {
		return nil, errors.Errorf("github api: put %s returned no content", path)
	}
	return out.Content, nil
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
}

func (c *GitHubClient) DeleteFile(ctx context.Context, owner, repo, path, versionToken, message string) error {
	if versionToken == "" {
		return ErrMissingVersionToken
	}
	body := deleteRequest{Message: message, SHA: versionToken}
	if _, err := c.do(ctx, http.MethodDelete, contentsPath(owner, repo, path), body, nil, false); err != nil {
		return classifyWriteError(err, false)
	}
	return nil
}

func (c *GitHubClient) RepoExists(ctx context.Context, owner, repo string) (bool, error) {
	return c.do(ctx, http.MethodGet, "/repos/"+url.PathEscape(owner)+"/"+url.PathEscape(repo), nil, nil, true)
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

// CreateRepo creates a repository for the authenticated user with an initial
// README. Creating an existing name fails with ErrAlreadyExists; other
// validation failures are returned as the *APIError.
func (c *GitHubClient) CreateRepo(ctx context.Context, name, description string, private bool) error {
	body := createRepoRequest{Name: name, Description: description, Private: private, AutoInit: true}
	if _, err := c.do(ctx, http.MethodPost, "/user/repos", body, nil, false); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity && apiErr.mentions("already exists") {
			return withKind(ErrAlreadyExists, err)
		}
		return errors.Wrapf(err, "create repository %s", name)
	}
	return nil
}

// UploadBinary stores data at path as a new file.
func (c *GitHubClient) UploadBinary(ctx context.Context, owner, repo, path string, data []byte, message string) (*models.RepositoryFile, error) {
	return c.PutFile(ctx, owner, repo, path, data, message, "")
}

func classifyWriteError(err error, create bool) error {
	switch StatusCode(err) {
	case http.StatusConflict:
		return withKind(ErrConflict, err)
	case http.StatusUnprocessableEntity:
		if create {
			return withKind(ErrAlreadyExists, err)
		}
	}
	return err
}

func contentsPath(owner, repo, p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/contents/" + strings.Join(segments, "/")
}
