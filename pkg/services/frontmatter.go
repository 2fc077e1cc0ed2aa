package services

import (
	"sort"
	"strings"
)

// Frontmatter is the flat key/value header of a post file. title and date
// are fixed fields; every other key, excerpt included, travels as metadata.
type Frontmatter map[string]string

const frontmatterDelimiter = "---"

// DecodeFrontmatter splits raw into its header and body. The header is a
// leading "---" line, key: value lines, and a closing "---" line. Without
// that block the result is an empty header and raw unchanged as body.
func DecodeFrontmatter(raw string) (Frontmatter, string) {
	fm := Frontmatter{}

	normalized := normalizeLineEndings(raw)
	open := frontmatterDelimiter + "\n"
	if !strings.HasPrefix(normalized, open) {
		return fm, raw
	}
	rest := normalized[len(open):]
	end := strings.Index(rest, "\n"+frontmatterDelimiter+"\n")
	if end < 0 {
		return fm, raw
	}

	for _, line := range strings.Split(rest[:end], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fm[key] = unquote(strings.TrimSpace(value))
	}

	body := rest[end+len(frontmatterDelimiter)+2:]
	return fm, strings.TrimSpace(body)
}

// EncodeFrontmatter renders a post file with exactly two header fields.
func EncodeFrontmatter(title, date, body string) string {
	return EncodeFrontmatterWithMeta(title, date, nil, body)
}

// EncodeFrontmatterWithMeta renders title and date followed by meta in key
// order. Keys that cannot survive a decode (empty, containing a colon or a
// line break) and the reserved title/date keys are skipped.
func EncodeFrontmatterWithMeta(title, date string, meta map[string]string, body string) string {
	var b strings.Builder
	b.WriteString(frontmatterDelimiter + "\n")
	b.WriteString("title: " + singleLine(title) + "\n")
	b.WriteString("date: " + singleLine(date) + "\n")

	keys := make([]string, 0, len(meta))
	for k := range meta {
		if k == "title" || k == "date" || !validMetaKey(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k + ": " + singleLine(meta[k]) + "\n")
	}

	b.WriteString(frontmatterDelimiter + "\n\n")
	b.WriteString(body)
	return b.String()
}

// Extra returns every key except title and date.
func (fm Frontmatter) Extra() map[string]string {
	var extra map[string]string
	for k, v := range fm {
		if k == "title" || k == "date" {
			continue
		}
		if extra == nil {
			extra = make(map[string]string)
		}
		extra[k] = v
	}
	return extra
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func validMetaKey(k string) bool {
	k = strings.TrimSpace(k)
	return k != "" && !strings.ContainsAny(k, ":\r\n")
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(v string) string {
	return lineBreaks.Replace(v)
}

func normalizeLineEndings(input string) string {
	return strings.ReplaceAll(input, "\r\n", "\n")
}
