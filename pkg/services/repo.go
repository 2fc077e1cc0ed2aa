package services

import (
	"context"

	"devblog/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const folderReadme = "# Blog Posts\n\n" +
	"This folder contains your blog posts written in Markdown.\n\n" +
	"## File Structure\n\n" +
	"Each post should be a Markdown file (.md) with frontmatter:\n\n" +
	"```markdown\n" +
	"---\n" +
	"title: Your Post Title\n" +
	"date: 2025-01-01\n" +
	"---\n\n" +
	"Your post content here...\n" +
	"```\n"

// EnsureRepository creates the blog repository when it does not exist.
// A repository that exists but is not visible to the token cannot be told
// apart from a missing one; the create then fails and is reported as
// ErrRepositoryUnavailable.
func (s *Synchronizer) EnsureRepository(ctx context.Context, owner string) error {
	exists, err := s.store.RepoExists(ctx, owner, s.site.Repository)
	if err != nil {
		return errors.Wrapf(err, "check repository %s/%s", owner, s.site.Repository)
	}
	if exists {
		return nil
	}

	s.log.Info("creating blog repository", zap.String("owner", owner), zap.String("repo", s.site.Repository))
	if err := s.store.CreateRepo(ctx, s.site.Repository, s.site.Description, s.site.Private); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return errors.Wrapf(ErrRepositoryUnavailable, "%s/%s: %v", owner, s.site.Repository, err)
		}
		return errors.Wrapf(err, "create repository %s", s.site.Repository)
	}
	return nil
}

// PostsFolder returns the first candidate folder that exists and its
// entries. folder is "" when none of them exists.
func (s *Synchronizer) PostsFolder(ctx context.Context, owner string) (string, []models.RepositoryFile, error) {
	for _, folder := range s.site.Folders {
		entries, err := s.store.ListDirectory(ctx, owner, s.site.Repository, folder, true)
		if err != nil {
			return "", nil, errors.Wrapf(err, "list %s", folder)
		}
		if entries != nil {
			return folder, entries, nil
		}
	}
	return "", nil, nil
}

// InitFolder creates a candidate folder by committing a README into it.
func (s *Synchronizer) InitFolder(ctx context.Context, owner, folder string) (*models.RepositoryFile, error) {
	if !s.isCandidateFolder(folder) {
		return nil, errors.Wrapf(ErrInvalidFolder, "%q", folder)
	}
	p := folder + "/README.md"
	file, err := s.store.PutFile(ctx, owner, s.site.Repository, p, []byte(folderReadme),
		"Initialize "+folder+" folder for blog posts", "")
	if err != nil {
		return nil, errors.Wrapf(err, "init %s", folder)
	}
	return file, nil
}

func (s *Synchronizer) isCandidateFolder(folder string) bool {
	for _, f := range s.site.Folders {
		if f == folder {
			return true
		}
	}
	return false
}
