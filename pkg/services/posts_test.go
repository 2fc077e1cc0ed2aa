package services

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"devblog/pkg/config"
	"devblog/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func TestListPostsCreatesMissingRepository(t *testing.T) {
	fake, sync := newTestSynchronizer(t)

	_, err := sync.ListPosts(context.Background(), testOwner)
	if !errors.Is(err, ErrNoPostsFolder) {
		t.Fatalf("expected ErrNoPostsFolder on a fresh repository, got %v", err)
	}
	if !fake.HasRepo(testOwner, testRepo) {
		t.Fatalf("expected repository to be created")
	}
}

func TestListPostsSortsNewestFirst(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.SetFile(testOwner, testRepo, "blog/a.md", "---\ntitle: A\ndate: 2024-05-01\n---\n\nA body")
	fake.SetFile(testOwner, testRepo, "blog/b.md", "no frontmatter at all")
	fake.SetFile(testOwner, testRepo, "blog/c.md", "---\ntitle: C\ndate: not a date\n---\n\nC body")
	fake.SetFile(testOwner, testRepo, "blog/d.mdx", "---\ntitle: D\ndate: 2023-01-01T08:30:00Z\n---\n\nD body")
	fake.SetFile(testOwner, testRepo, "blog/notes.txt", "ignored")
	fake.SetFile(testOwner, testRepo, "blog/drafts/e.md", "ignored")

	posts, err := sync.ListPosts(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}

	var slugs []string
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	if got := strings.Join(slugs, ","); got != "b,c,a,d" {
		t.Fatalf("unexpected order %s", got)
	}

	b := posts[0]
	if b.Title != "b" || b.Content != "no frontmatter at all" {
		t.Fatalf("post without frontmatter decoded wrongly: %#v", b)
	}
	if b.Date != testNow.Format(time.RFC3339) {
		t.Fatalf("missing date should default to now, got %q", b.Date)
	}
	if posts[1].Date != "not a date" {
		t.Fatalf("unparsable date should be kept verbatim, got %q", posts[1].Date)
	}
	if posts[2].Path != "blog/a.md" || posts[2].VersionToken == "" {
		t.Fatalf("unexpected post %#v", posts[2])
	}
}

func TestListPostsDropsFailedFiles(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.SetFile(testOwner, testRepo, "posts/good.md", "---\ntitle: Good\ndate: 2024-01-01\n---\n\nok")
	fake.SetFile(testOwner, testRepo, "posts/bad.md", "---\ntitle: Bad\n---\n")
	fake.FailGet(testOwner, testRepo, "posts/bad.md", http.StatusInternalServerError)

	posts, err := sync.ListPosts(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Good" {
		t.Fatalf("expected only the good post, got %#v", posts)
	}
}

func TestListPostsExcerpt(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	long := strings.Repeat("word ", 60)
	fake.SetFile(testOwner, testRepo, "blog/long.md", "---\ntitle: Long\ndate: 2024-01-01\n---\n\n"+long)
	fake.SetFile(testOwner, testRepo, "blog/short.md", "---\ntitle: Short\ndate: 2024-01-02\nexcerpt: Custom summary\n---\n\nbody")

	posts, err := sync.ListPosts(context.Background(), testOwner)
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if posts[0].Excerpt != "Custom summary" {
		t.Fatalf("explicit excerpt ignored: %q", posts[0].Excerpt)
	}
	want := strings.TrimSpace(long[:150]) + "..."
	if posts[1].Excerpt != want {
		t.Fatalf("excerpt mismatch:\n got %q\nwant %q", posts[1].Excerpt, want)
	}
}

func TestGetPost(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	token := fake.SetFile(testOwner, testRepo, "posts/hello.md", "---\ntitle: Hello\ndate: 2024-03-03\nauthor: me\n---\n\nHi there")

	post, err := sync.GetPost(context.Background(), testOwner, "hello")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Title != "Hello" || post.Content != "Hi there" || post.VersionToken != token || post.Meta["author"] != "me" {
		t.Fatalf("unexpected post %#v", post)
	}

	if _, err := sync.GetPost(context.Background(), testOwner, "nope"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestSavePostCreatesNewFile(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.AddRepo(testOwner, testRepo)

	post, err := sync.SavePost(context.Background(), testOwner, models.PostInput{Title: "My First Post!", Body: "Hello."}, "")
	if err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	if post.Slug != "my-first-post" || post.Path != "blog/my-first-post.md" {
		t.Fatalf("unexpected post %#v", post)
	}

	content, ok := fake.File(testOwner, testRepo, "blog/my-first-post.md")
	if !ok {
		t.Fatalf("file not written")
	}
	if want := "---\ntitle: My First Post!\ndate: 2025-01-01\n---\n\nHello."; content != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", content, want)
	}

	commits := fake.Commits()
	if len(commits) != 1 || commits[0].SHA != "" || commits[0].Message != "Create post: My First Post!" {
		t.Fatalf("unexpected commits %#v", commits)
	}
}

func TestSavePostUsesExistingFolder(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.SetFile(testOwner, testRepo, "posts/README.md", "readme")

	post, err := sync.SavePost(context.Background(), testOwner, models.PostInput{Title: "In Posts", Body: "x"}, "")
	if err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	if post.Path != "posts/in-posts.md" {
		t.Fatalf("expected posts folder, got %q", post.Path)
	}
}

func TestSavePostEditKeepsSlugAndPath(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.SetFile(testOwner, testRepo, "blog/unrelated.md", "x")
	token := fake.SetFile(testOwner, testRepo, "posts/original.mdx", "---\ntitle: Original\ndate: 2024-01-01\n---\n\nold")

	in := models.PostInput{Slug: "original", Title: "A Completely New Title", Body: "new"}
	post, err := sync.SavePost(context.Background(), testOwner, in, token)
	if err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	if post.Slug != "original" || post.Path != "posts/original.mdx" {
		t.Fatalf("edit moved the post: %#v", post)
	}
	content, _ := fake.File(testOwner, testRepo, "posts/original.mdx")
	if !strings.Contains(content, "title: A Completely New Title") || !strings.HasSuffix(content, "\n\nnew") {
		t.Fatalf("unexpected content %q", content)
	}
	commits := fake.Commits()
	if commits[len(commits)-1].SHA != token || commits[len(commits)-1].Message != "Update post: A Completely New Title" {
		t.Fatalf("unexpected commit %#v", commits[len(commits)-1])
	}
	if post.VersionToken == token {
		t.Fatalf("expected a new version token")
	}
}

func TestSavePostConflict(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	stale := fake.SetFile(testOwner, testRepo, "blog/p.md", "---\ntitle: P\ndate: 2024-01-01\n---\n\nv1")
	fake.SetFile(testOwner, testRepo, "blog/p.md", "---\ntitle: P\ndate: 2024-01-01\n---\n\nchanged elsewhere")

	_, err := sync.SavePost(context.Background(), testOwner, models.PostInput{Slug: "p", Title: "P", Body: "mine"}, stale)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	content, _ := fake.File(testOwner, testRepo, "blog/p.md")
	if !strings.HasSuffix(content, "changed elsewhere") {
		t.Fatalf("conflicting save overwrote content: %q", content)
	}
}

func TestSavePostValidation(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.SetFile(testOwner, testRepo, "blog/taken.md", "x")
	ctx := context.Background()

	if _, err := sync.SavePost(ctx, testOwner, models.PostInput{Title: "!!!", Body: "x"}, ""); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if _, err := sync.SavePost(ctx, testOwner, models.PostInput{Slug: "taken", Title: "T", Body: "x"}, ""); !errors.Is(err, ErrMissingVersionToken) {
		t.Fatalf("expected ErrMissingVersionToken, got %v", err)
	}
	if _, err := sync.SavePost(ctx, testOwner, models.PostInput{Slug: "../etc", Title: "T", Body: "x"}, "sha"); !errors.Is(err, ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
	if _, err := sync.SavePost(ctx, testOwner, models.PostInput{Title: "Taken", Body: "x"}, ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for slug collision, got %v", err)
	}
}

func TestSavePostFrontmatterPreservation(t *testing.T) {
	in := models.PostInput{Title: "Meta", Body: "x", Date: "2024-06-01", Meta: map[string]string{"tags": "go"}}

	fake, sync := newTestSynchronizer(t)
	fake.AddRepo(testOwner, testRepo)
	if _, err := sync.SavePost(context.Background(), testOwner, in, ""); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	content, _ := fake.File(testOwner, testRepo, "blog/meta.md")
	if want := "---\ntitle: Meta\ndate: 2024-06-01\ntags: go\n---\n\nx"; content != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", content, want)
	}

	fake, sync = newTestSynchronizer(t, func(s *config.Site) { s.PreserveFrontmatter = false })
	fake.AddRepo(testOwner, testRepo)
	if _, err := sync.SavePost(context.Background(), testOwner, in, ""); err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	content, _ = fake.File(testOwner, testRepo, "blog/meta.md")
	if strings.Contains(content, "tags") {
		t.Fatalf("meta should be dropped when preservation is off: %q", content)
	}
}

func TestSavePostEditKeepsStoredFrontmatter(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	ctx := context.Background()
	fake.SetFile(testOwner, testRepo, "blog/p.md", "---\ntitle: P\ndate: 2024-01-01\nexcerpt: hand written\ntags: go\n---\n\nbody")

	post, err := sync.GetPost(ctx, testOwner, "p")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if post.Meta["excerpt"] != "hand written" || post.Excerpt != "hand written" {
		t.Fatalf("excerpt not exposed: %#v", post)
	}

	in := models.PostInput{Slug: "p", Title: "P", Date: post.Date, Body: "edited", Meta: post.Meta}
	saved, err := sync.SavePost(ctx, testOwner, in, post.VersionToken)
	if err != nil {
		t.Fatalf("SavePost: %v", err)
	}
	want := "---\ntitle: P\ndate: 2024-01-01\nexcerpt: hand written\ntags: go\n---\n\nedited"
	if content, _ := fake.File(testOwner, testRepo, "blog/p.md"); content != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", content, want)
	}
	if saved.Excerpt != "hand written" {
		t.Fatalf("unexpected excerpt %q", saved.Excerpt)
	}

	// No meta in the request: the stored header still survives.
	in = models.PostInput{Slug: "p", Title: "P", Date: "2024-01-01", Body: "again"}
	saved, err = sync.SavePost(ctx, testOwner, in, saved.VersionToken)
	if err != nil {
		t.Fatalf("SavePost without meta: %v", err)
	}
	want = "---\ntitle: P\ndate: 2024-01-01\nexcerpt: hand written\ntags: go\n---\n\nagain"
	if content, _ := fake.File(testOwner, testRepo, "blog/p.md"); content != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", content, want)
	}

	// Request keys win, and an empty value removes the key.
	in = models.PostInput{Slug: "p", Title: "P", Date: "2024-01-01", Body: "again", Meta: map[string]string{"tags": "go, web", "excerpt": ""}}
	if _, err := sync.SavePost(ctx, testOwner, in, saved.VersionToken); err != nil {
		t.Fatalf("SavePost with overrides: %v", err)
	}
	want = "---\ntitle: P\ndate: 2024-01-01\ntags: go, web\n---\n\nagain"
	if content, _ := fake.File(testOwner, testRepo, "blog/p.md"); content != want {
		t.Fatalf("content mismatch:\n got %q\nwant %q", content, want)
	}
}

func TestDeletePost(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	token := fake.SetFile(testOwner, testRepo, "posts/gone.md", "x")
	ctx := context.Background()

	if err := sync.DeletePost(ctx, testOwner, "gone", ""); !errors.Is(err, ErrMissingVersionToken) {
		t.Fatalf("expected ErrMissingVersionToken, got %v", err)
	}
	if err := sync.DeletePost(ctx, testOwner, "gone", "stale"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := sync.DeletePost(ctx, testOwner, "gone", token); err != nil {
		t.Fatalf("DeletePost: %v", err)
	}
	if err := sync.DeletePost(ctx, testOwner, "gone", token); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound after delete, got %v", err)
	}
}

func TestInitFolder(t *testing.T) {
	fake, sync := newTestSynchronizer(t)
	fake.AddRepo(testOwner, testRepo)

	if _, err := sync.InitFolder(context.Background(), testOwner, "posts"); err != nil {
		t.Fatalf("InitFolder: %v", err)
	}
	content, ok := fake.File(testOwner, testRepo, "posts/README.md")
	if !ok || !strings.Contains(content, "title: Your Post Title") {
		t.Fatalf("README not written: %q", content)
	}
	if folder, _, err := sync.PostsFolder(context.Background(), testOwner); err != nil || folder != "posts" {
		t.Fatalf("expected posts folder to be found, got %q, %v", folder, err)
	}
	if _, err := sync.InitFolder(context.Background(), testOwner, "../x"); !errors.Is(err, ErrInvalidFolder) {
		t.Fatalf("expected ErrInvalidFolder, got %v", err)
	}
}

// inaccessibleStore reports the repository as missing but refuses to create
// it, as GitHub does for a repository the token cannot see.
type inaccessibleStore struct {
	ContentStore
	createCalls int
}

func (s *inaccessibleStore) RepoExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *inaccessibleStore) CreateRepo(context.Context, string, string, bool) error {
	s.createCalls++
	return ErrAlreadyExists
}

func TestEnsureRepositoryInaccessible(t *testing.T) {
	store := &inaccessibleStore{}
	sync := NewSynchronizer(store, config.DefaultSite(), zap.NewNop())

	err := sync.EnsureRepository(context.Background(), testOwner)
	if !errors.Is(err, ErrRepositoryUnavailable) {
		t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
	}
	if store.createCalls != 1 {
		t.Fatalf("expected a single create attempt, got %d", store.createCalls)
	}
}

func TestSortPostsByDate(t *testing.T) {
	posts := []models.Post{
		{Slug: "old", Date: "2020-01-01"},
		{Slug: "bad", Date: "yesterday-ish"},
		{Slug: "new", Date: "2024-12-31T23:59:59Z"},
		{Slug: "words", Date: "March 3, 2022"},
	}
	SortPostsByDate(posts, testNow)

	var got []string
	for _, p := range posts {
		got = append(got, p.Slug)
	}
	if strings.Join(got, ",") != "bad,new,words,old" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestParsePostDateFractionalSeconds(t *testing.T) {
	got, ok := ParsePostDate("2024-05-06T07:08:09.123456789Z")
	if !ok || got.Nanosecond() != 123456789 {
		t.Fatalf("expected fractional seconds to parse, got %v %v", got, ok)
	}
}
