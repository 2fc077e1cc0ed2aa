package services

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// CreateSlug maps a title to a lowercase, hyphen-separated identifier that is
// safe in URLs and file names. Applying it to its own output is a no-op.
func CreateSlug(title string) string {
	s := strings.ToLower(title)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ImageFileName builds "<unix millis>-<slug>.<ext>" for an uploaded image.
// name may carry its own extension; it is dropped in favour of ext.
func ImageFileName(name, ext string, now time.Time) string {
	base := CreateSlug(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "paste"
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), base, ext)
}
