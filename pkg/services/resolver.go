package services

import (
	"context"

	"devblog/pkg/models"

	"github.com/pkg/errors"
)

// Resolver locates the file backing a slug across the candidate folders.
type Resolver struct {
	Store      ContentStore
	Repository string
	Folders    []string // probe order
	Extensions []string
}

// Resolve probes Folders in order and returns the first entry named
// slug+ext. A slug present in several folders resolves to the first folder
// probed. ErrPostNotFound when no folder holds it.
func (r *Resolver) Resolve(ctx context.Context, owner, slug string) (*models.RepositoryFile, error) {
	if slug == "" {
		return nil, ErrPostNotFound
	}
	for _, folder := range r.Folders {
		entries, err := r.Store.ListDirectory(ctx, owner, r.Repository, folder, true)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %q in %s", slug, folder)
		}
		if entries == nil {
			continue
		}
		if entry := r.match(entries, slug); entry != nil {
			return entry, nil
		}
	}
	return nil, errors.Wrapf(ErrPostNotFound, "slug %q", slug)
}

func (r *Resolver) match(entries []models.RepositoryFile, slug string) *models.RepositoryFile {
	for i := range entries {
		if entries[i].Type != "" && entries[i].Type != "file" {
			continue
		}
		for _, ext := range r.Extensions {
			if entries[i].Name == slug+ext {
				return &entries[i]
			}
		}
	}
	return nil
}
