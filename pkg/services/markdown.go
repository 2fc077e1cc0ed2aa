package services

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const DefaultRawURL = "https://raw.githubusercontent.com"

// MarkdownRenderer turns post bodies into HTML. Root-relative image paths
// (as produced by UploadImage) are rewritten to raw file URLs of the blog
// repository so they load outside GitHub.
type MarkdownRenderer struct {
	RawBaseURL string
	Repository string
	Branch     string
}

func (m *MarkdownRenderer) Render(owner, body string) (string, error) {
	engine := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.TaskList),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(&imageRewriter{prefix: m.rawPrefix(owner)}, 100)),
		),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	var buf bytes.Buffer
	if err := engine.Convert([]byte(body), &buf); err != nil {
		return "", errors.Wrap(err, "markdown render")
	}
	return buf.String(), nil
}

func (m *MarkdownRenderer) rawPrefix(owner string) string {
	if owner == "" || m.Repository == "" {
		return ""
	}
	base := m.RawBaseURL
	if base == "" {
		base = DefaultRawURL
	}
	branch := m.Branch
	if branch == "" {
		branch = "main"
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(owner) + "/" + url.PathEscape(m.Repository) + "/" + branch
}

type imageRewriter struct {
	prefix string
}

func (r *imageRewriter) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	if r.prefix == "" {
		return
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		if strings.HasPrefix(dest, "/") && !strings.HasPrefix(dest, "//") {
			img.Destination = []byte(r.prefix + dest)
		}
		return ast.WalkContinue, nil
	})
}
