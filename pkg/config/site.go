package config

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Site describes where and how posts are stored in the blog repository.
type Site struct {
	Repository  string `yaml:"repository" toml:"repository"`
	Description string `yaml:"description" toml:"description"`
	Private     bool   `yaml:"private" toml:"private"`
	Branch      string `yaml:"branch" toml:"branch"`

	// Folders are probed in order; the first one that exists holds the posts.
	Folders    []string `yaml:"folders" toml:"folders"`
	Extensions []string `yaml:"extensions" toml:"extensions"`

	ImageFolder         string `yaml:"image_folder" toml:"image_folder"`
	ExcerptLength       int    `yaml:"excerpt_length" toml:"excerpt_length"`
	FetchConcurrency    int    `yaml:"fetch_concurrency" toml:"fetch_concurrency"`
	PreserveFrontmatter bool   `yaml:"preserve_frontmatter" toml:"preserve_frontmatter"`
}

func DefaultSite() Site {
	return Site{
		Repository:          "DevBlog",
		Description:         "My personal blog powered by GitHub",
		Private:             true,
		Branch:              "main",
		Folders:             []string{"blog", "posts"},
		Extensions:          []string{".md", ".mdx"},
		ImageFolder:         "images",
		ExcerptLength:       150,
		FetchConcurrency:    20,
		PreserveFrontmatter: true,
	}
}

// LoadSite reads the site file at path over the defaults. A missing file is
// not an error. The format follows the extension: .toml for TOML, anything
// else is YAML.
func LoadSite(path string) (Site, error) {
	site := DefaultSite()
	if path == "" {
		return site, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return site, nil
	}
	if err != nil {
		return site, errors.Wrap(err, "read site config")
	}
	if err := ParseSite(content, filepath.Ext(path), &site); err != nil {
		return site, err
	}
	return site, site.Validate()
}

// ParseSite decodes content into site. Keys absent from content keep the
// value already in site.
func ParseSite(content []byte, ext string, site *Site) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(content)).Decode(site); err != nil {
			return errors.Wrap(err, "parse site config (toml)")
		}
	default:
		if err := yaml.Unmarshal(content, site); err != nil {
			return errors.Wrap(err, "parse site config (yaml)")
		}
	}
	return nil
}

func (s Site) Validate() error {
	if strings.TrimSpace(s.Repository) == "" {
		return errors.New("site config: repository is required")
	}
	if len(s.Folders) == 0 {
		return errors.New("site config: at least one folder is required")
	}
	for _, f := range s.Folders {
		if f == "" || strings.Contains(f, "/") || strings.Contains(f, "..") {
			return errors.Errorf("site config: invalid folder %q", f)
		}
	}
	if len(s.Extensions) == 0 {
		return errors.New("site config: at least one extension is required")
	}
	if s.FetchConcurrency <= 0 {
		return errors.New("site config: fetch_concurrency must be positive")
	}
	if s.ExcerptLength <= 0 {
		return errors.New("site config: excerpt_length must be positive")
	}
	return nil
}

// DefaultFolder is the write target when none of the folders exists yet.
func (s Site) DefaultFolder() string {
	return s.Folders[0]
}
