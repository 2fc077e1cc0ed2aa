package services

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"devblog/pkg/config"
	"devblog/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	postExtension = ".md"
	dateLayout    = "2006-01-02"
)

// dateLayouts are tried in order when sorting the feed.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	dateLayout,
	"January 2, 2006",
	"Jan 2, 2006",
}

// Synchronizer builds the post feed from the blog repository and writes
// posts back to it. It keeps no state between calls.
type Synchronizer struct {
	store    ContentStore
	site     config.Site
	resolver *Resolver
	log      *zap.Logger
	now      func() time.Time
}

type SyncOption func(*Synchronizer)

// WithClock overrides the time source used for post dates and image names.
func WithClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

func NewSynchronizer(store ContentStore, site config.Site, log *zap.Logger, opts ...SyncOption) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{
		store: store,
		site:  site,
		resolver: &Resolver{
			Store:      store,
			Repository: site.Repository,
			Folders:    site.Folders,
			Extensions: site.Extensions,
		},
		log: log,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPosts returns every post in the posts folder, newest first. Files that
// cannot be fetched are logged and left out.
func (s *Synchronizer) ListPosts(ctx context.Context, owner string) ([]models.Post, error) {
	if err := s.EnsureRepository(ctx, owner); err != nil {
		return nil, err
	}

	folder, entries, err := s.PostsFolder(ctx, owner)
	if err != nil {
		return nil, err
	}
	if folder == "" {
		return nil, errors.Wrapf(ErrNoPostsFolder, "create one of %s", strings.Join(s.site.Folders, ", "))
	}

	var files []models.RepositoryFile
	for _, e := range entries {
		if (e.Type == "" || e.Type == "file") && s.hasPostExtension(e.Name) {
			files = append(files, e)
		}
	}

	now := s.now()
	results := make([]*models.Post, len(files))
	var g errgroup.Group
	g.SetLimit(s.site.FetchConcurrency)
	for i, file := range files {
		g.Go(func() error {
			raw, err := s.store.GetFile(ctx, owner, s.site.Repository, file.Path)
			if err != nil {
				s.log.Warn("skipping post", zap.String("path", file.Path), zap.Error(err))
				return nil
			}
			post := s.buildPost(file, raw, now)
			results[i] = &post
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(results))
	for _, p := range results {
		if p != nil {
			posts = append(posts, *p)
		}
	}
	SortPostsByDate(posts, now)
	return posts, nil
}

// GetPost resolves slug and returns the decoded post.
func (s *Synchronizer) GetPost(ctx context.Context, owner, slug string) (*models.Post, error) {
	entry, err := s.resolver.Resolve(ctx, owner, slug)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.GetFile(ctx, owner, s.site.Repository, entry.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", entry.Path)
	}
	post := s.buildPost(*entry, raw, s.now())
	return &post, nil
}

// SavePost writes a post. With in.Slug empty the post is created under a slug
// derived from the title and no version token is sent. Otherwise the post is
// updated in place and editVersionToken must be the token it was loaded with.
func (s *Synchronizer) SavePost(ctx context.Context, owner string, in models.PostInput, editVersionToken string) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	editing := in.Slug != ""

	slug := in.Slug
	if editing {
		if CreateSlug(slug) != slug {
			return nil, errors.Wrapf(ErrInvalidSlug, "%q", slug)
		}
		if editVersionToken == "" {
			return nil, ErrMissingVersionToken
		}
	} else {
		slug = CreateSlug(title)
		if slug == "" {
			return nil, errors.Wrapf(ErrInvalidTitle, "title %q", title)
		}
	}

	target, existing, err := s.writeTarget(ctx, owner, slug, editing)
	if err != nil {
		return nil, err
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().Format(dateLayout)
	}
	var meta map[string]string
	if s.site.PreserveFrontmatter {
		meta, err = s.mergeMeta(ctx, owner, existing, in.Meta)
		if err != nil {
			return nil, err
		}
	}
	content := EncodeFrontmatterWithMeta(title, date, meta, in.Body)

	message := "Create post: " + title
	token := ""
	if editing {
		message = "Update post: " + title
		token = editVersionToken
	}

	file, err := s.store.PutFile(ctx, owner, s.site.Repository, target, []byte(content), message, token)
	if err != nil {
		return nil, errors.Wrapf(err, "save %s", target)
	}

	s.log.Info("post saved",
		zap.String("owner", owner),
		zap.String("path", target),
		zap.Bool("update", editing),
	)

	_, body := DecodeFrontmatter(content)
	post := models.Post{
		Title:        title,
		Slug:         slug,
		Date:         date,
		Content:      body,
		Excerpt:      s.excerpt(meta["excerpt"], body),
		VersionToken: file.VersionToken,
		Path:         target,
		Meta:         meta,
	}
	return &post, nil
}

// DeletePost removes the file backing slug. versionToken guards against
// deleting a revision the caller has not seen.
func (s *Synchronizer) DeletePost(ctx context.Context, owner, slug, versionToken string) error {
	if versionToken == "" {
		return ErrMissingVersionToken
	}
	entry, err := s.resolver.Resolve(ctx, owner, slug)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFile(ctx, owner, s.site.Repository, entry.Path, versionToken, "Delete post: "+slug); err != nil {
		return errors.Wrapf(err, "delete %s", entry.Path)
	}
	s.log.Info("post deleted", zap.String("owner", owner), zap.String("path", entry.Path))
	return nil
}

// writeTarget picks the path for a save. Edits go to the file the slug
// currently resolves to, which is also returned; new posts go to the first
// existing folder, or the default folder when none exists yet.
func (s *Synchronizer) writeTarget(ctx context.Context, owner, slug string, editing bool) (string, *models.RepositoryFile, error) {
	if editing {
		entry, err := s.resolver.Resolve(ctx, owner, slug)
		switch {
		case err == nil:
			return entry.Path, entry, nil
		case !errors.Is(err, ErrPostNotFound):
			return "", nil, err
		}
	}

	folder, _, err := s.PostsFolder(ctx, owner)
	if err != nil {
		return "", nil, err
	}
	if folder == "" {
		folder = s.site.DefaultFolder()
	}
	return folder + "/" + slug + postExtension, nil, nil
}

// mergeMeta overlays requested on the header stored in existing, so an edit
// that omits a key keeps it. An empty requested value removes the key.
func (s *Synchronizer) mergeMeta(ctx context.Context, owner string, existing *models.RepositoryFile, requested map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	if existing != nil {
		raw, err := s.store.GetFile(ctx, owner, s.site.Repository, existing.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch %s", existing.Path)
		}
		fm, _ := DecodeFrontmatter(raw)
		for k, v := range fm.Extra() {
			merged[k] = v
		}
	}
	for k, v := range requested {
		if strings.TrimSpace(v) == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	if len(merged) == 0 {
		return nil, nil
	}
	return merged, nil
}

func (s *Synchronizer) buildPost(file models.RepositoryFile, raw string, now time.Time) models.Post {
	fm, body := DecodeFrontmatter(raw)
	slug := s.stem(file.Name)

	title := fm["title"]
	if title == "" {
		title = slug
	}
	date := fm["date"]
	if date == "" {
		date = now.UTC().Format(time.RFC3339)
	}

	return models.Post{
		Title:        title,
		Slug:         slug,
		Date:         date,
		Content:      body,
		Excerpt:      s.excerpt(fm["excerpt"], body),
		VersionToken: file.VersionToken,
		Path:         file.Path,
		Meta:         fm.Extra(),
	}
}

func (s *Synchronizer) excerpt(explicit, body string) string {
	if explicit != "" {
		return explicit
	}
	if utf8.RuneCountInString(body) <= s.site.ExcerptLength {
		return strings.TrimSpace(body)
	}
	runes := []rune(body)
	return strings.TrimSpace(string(runes[:s.site.ExcerptLength])) + "..."
}

func (s *Synchronizer) hasPostExtension(name string) bool {
	ext := path.Ext(name)
	for _, e := range s.site.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Synchronizer) stem(name string) string {
	ext := path.Ext(name)
	if s.hasPostExtension(name) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// ParsePostDate parses the date formats found in post headers.
func ParsePostDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortPostsByDate orders posts newest first. Dates that do not parse count
// as now, so they sort ahead of any past date.
func SortPostsByDate(posts []models.Post, now time.Time) {
	type dated struct {
		post models.Post
		at   time.Time
	}
	keyed := make([]dated, len(posts))
	for i, p := range posts {
		t, ok := ParsePostDate(p.Date)
		if !ok {
			t = now
		}
		keyed[i] = dated{post: p, at: t}
	}
	sort.SliceStable(keyed, func(a, b int) bool {
		return keyed[a].at.After(keyed[b].at)
	})
	for i := range keyed {
		posts[i] = keyed[i].post
	}
}
