// Package testsupport provides an in-memory GitHub contents API for tests.
package testsupport

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// Commit records one write accepted by the fake.
type Commit struct {
	Method  string
	Repo    string
	Path    string
	Message string
	SHA     string // version token sent by the client, "" on create
}

// FakeGitHub serves the subset of the GitHub REST API the blog uses:
// /user, /user/repos, /repos/{o}/{r} and /repos/{o}/{r}/contents/{path}.
// Version tokens are git blob hashes of the stored content.
type FakeGitHub struct {
	Server *httptest.Server

	// Token is the bearer credential every request must carry.
	Token string
	User  map[string]any

	mu      sync.Mutex
	repos   map[string]map[string][]byte // "owner/repo" -> path -> content
	fail    map[string]int               // "owner/repo/path" -> status for GETs
	commits []Commit
}

func NewFakeGitHub(login, token string) *FakeGitHub {
	f := &FakeGitHub{
		Token: token,
		User: map[string]any{
			"login":      login,
			"name":       "Test User",
			"avatar_url": "https://avatars.example.com/" + login,
			"email":      login + "@example.com",
		},
		repos: make(map[string]map[string][]byte),
		fail:  make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *FakeGitHub) URL() string { return f.Server.URL }

func (f *FakeGitHub) Close() { f.Server.Close() }

// AddRepo creates an empty repository.
func (f *FakeGitHub) AddRepo(owner, repo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := owner + "/" + repo
	if _, ok := f.repos[key]; !ok {
		f.repos[key] = make(map[string][]byte)
	}
}

// SetFile writes content directly, bypassing version checks. It creates the
// repository when needed and returns the new version token.
func (f *FakeGitHub) SetFile(owner, repo, path, content string) string {
	f.AddRepo(owner, repo)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[owner+"/"+repo][path] = []byte(content)
	return BlobSHA([]byte(content))
}

// File returns the stored content of path.
func (f *FakeGitHub) File(owner, repo, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files, ok := f.repos[owner+"/"+repo]
	if !ok {
		return "", false
	}
	content, ok := files[path]
	return string(content), ok
}

func (f *FakeGitHub) HasRepo(owner, repo string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.repos[owner+"/"+repo]
	return ok
}

// FailGet makes GET requests for path answer with status.
func (f *FakeGitHub) FailGet(owner, repo, path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[owner+"/"+repo+"/"+path] = status
}

func (f *FakeGitHub) Commits() []Commit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Commit(nil), f.commits...)
}

// BlobSHA is the git blob hash of content.
func BlobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

func (f *FakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	if f.Token != "" && r.Header.Get("Authorization") != "Bearer "+f.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case p == "user" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, f.User)
	case p == "user/repos" && r.Method == http.MethodPost:
		f.createRepo(w, r)
	case strings.HasPrefix(p, "repos/"):
		parts := strings.SplitN(strings.TrimPrefix(p, "repos/"), "/", 4)
		if len(parts) < 2 {
			notFound(w)
			return
		}
		key := parts[0] + "/" + parts[1]
		files, ok := f.repos[key]
		if !ok {
			notFound(w)
			return
		}
		if len(parts) == 2 {
			if r.Method != http.MethodGet {
				notFound(w)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"name": parts[1], "full_name": key, "private": true})
			return
		}
		if parts[2] != "contents" {
			notFound(w)
			return
		}
		path := ""
		if len(parts) == 4 {
			path = strings.Trim(parts[3], "/")
		}
		f.contents(w, r, key, files, path)
	default:
		notFound(w)
	}
}

func (f *FakeGitHub) createRepo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		AutoInit bool   `json:"auto_init"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || strings.ContainsAny(req.Name, "/ ") {
		repoCreationFailed(w, "invalid", "name is invalid")
		return
	}
	key := fmt.Sprint(f.User["login"]) + "/" + req.Name
	if _, ok := f.repos[key]; ok {
		repoCreationFailed(w, "custom", "name already exists on this account")
		return
	}
	files := make(map[string][]byte)
	if req.AutoInit {
		files["README.md"] = []byte("# " + req.Name + "\n")
	}
	f.repos[key] = files
	writeJSON(w, http.StatusCreated, map[string]any{"name": req.Name, "full_name": key})
}

func repoCreationFailed(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Repository creation failed.",
		"errors": []map[string]string{
			{"resource": "Repository", "code": code, "field": "name", "message": message},
		},
	})
}

func (f *FakeGitHub) contents(w http.ResponseWriter, r *http.Request, key string, files map[string][]byte, path string) {
	switch r.Method {
	case http.MethodGet:
		if status, ok := f.fail[key+"/"+path]; ok {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		if content, ok := files[path]; ok {
			writeJSON(w, http.StatusOK, fileEntry(path, content, true))
			return
		}
		listing := listDir(files, path)
		if listing == nil {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, listing)

	case http.MethodPut:
		var req struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
			return
		}
		current, exists := files[path]
		switch {
		case exists && req.SHA == "":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request. \"sha\" wasn't supplied."})
			return
		case exists && req.SHA != BlobSHA(current):
			writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + req.SHA})
			return
		case !exists && req.SHA != "":
			writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + req.SHA})
			return
		}
		files[path] = data
		f.commits = append(f.commits, Commit{Method: r.Method, Repo: key, Path: path, Message: req.Message, SHA: req.SHA})
		status := http.StatusCreated
		if exists {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"content": fileEntry(path, data, false)})

	case http.MethodDelete:
		var req struct {
			Message string `json:"message"`
			SHA     string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		current, exists := files[path]
		switch {
		case !exists:
			notFound(w)
			return
		case req.SHA == "":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request. \"sha\" wasn't supplied."})
			return
		case req.SHA != BlobSHA(current):
			writeJSON(w, http.StatusConflict, map[string]string{"message": path + " does not match " + req.SHA})
			return
		}
		delete(files, path)
		f.commits = append(f.commits, Commit{Method: r.Method, Repo: key, Path: path, Message: req.Message, SHA: req.SHA})
		writeJSON(w, http.StatusOK, map[string]any{"content": nil})

	default:
		notFound(w)
	}
}

func fileEntry(path string, content []byte, withContent bool) entry {
	e := entry{
		Name: path[strings.LastIndex(path, "/")+1:],
		Path: path,
		SHA:  BlobSHA(content),
		Size: len(content),
		Type: "file",
	}
	if withContent {
		// GitHub wraps the payload at 60 characters.
		enc := base64.StdEncoding.EncodeToString(content)
		var b strings.Builder
		for len(enc) > 60 {
			b.WriteString(enc[:60] + "\n")
			enc = enc[60:]
		}
		b.WriteString(enc)
		e.Content = b.String()
		e.Encoding = "base64"
	}
	return e
}

// listDir returns the direct children of dir, or nil when dir does not exist.
func listDir(files map[string][]byte, dir string) []entry {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := map[string]bool{}
	var out []entry
	for p, content := range files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			sub := rest[:i]
			if !seen[sub] {
				seen[sub] = true
				out = append(out, entry{Name: sub, Path: prefix + sub, Type: "dir", SHA: BlobSHA([]byte(prefix + sub))})
			}
			continue
		}
		out = append(out, fileEntry(p, content, false))
	}
	if out == nil && dir != "" {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if out == nil {
		out = []entry{}
	}
	return out
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
