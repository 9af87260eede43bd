// Package wikilink extracts and renders [[entity]] references embedded in
// memory content. Links come in two forms: [[Entity]] and
// [[Display|Target]], where the target names the linked entity.
package wikilink

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
)

var (
	simplePattern  = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	aliasedPattern = regexp.MustCompile(`\[\[([^\[\]|]+)\|([^\[\]]+)\]\]`)
	nonEntityChars = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	digitsOnly     = regexp.MustCompile(`^\p{N}+$`)

	folder = cases.Fold()
)

// Extract returns the set of entities referenced by wiki-links in text,
// case-folded, trimmed, deduplicated and sorted. Extraction is idempotent:
// running it twice over the same text yields the same set.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})

	for _, m := range aliasedPattern.FindAllStringSubmatch(text, -1) {
		// The target (second part) names the entity.
		seen[foldEntity(m[2])] = struct{}{}
	}

	// Strip aliased links so the simple pattern does not double-match.
	remainder := aliasedPattern.ReplaceAllString(text, "")
	for _, m := range simplePattern.FindAllStringSubmatch(remainder, -1) {
		seen[foldEntity(m[1])] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// Normalize canonicalizes an entity name for matching: case-folded,
// whitespace collapsed, punctuation stripped.
func Normalize(entity string) string {
	normalized := folder.String(entity)
	normalized = nonEntityChars.ReplaceAllString(normalized, "")
	return strings.Join(strings.Fields(normalized), " ")
}

// IsValid reports whether an entity name is usable after normalization.
func IsValid(entity string) bool {
	normalized := Normalize(entity)
	if len(normalized) < 2 || len(normalized) > 100 {
		return false
	}
	return !digitsOnly.MatchString(normalized)
}

// ToMarkdown rewrites wiki-links as Markdown links. urlPattern must contain
// an {entity} placeholder, e.g. "/memory/entity/{entity}".
func ToMarkdown(text, urlPattern string) string {
	out := aliasedPattern.ReplaceAllStringFunc(text, func(match string) string {
		m := aliasedPattern.FindStringSubmatch(match)
		return markdownLink(strings.TrimSpace(m[1]), foldEntity(m[2]), urlPattern)
	})
	return simplePattern.ReplaceAllStringFunc(out, func(match string) string {
		m := simplePattern.FindStringSubmatch(match)
		return markdownLink(strings.TrimSpace(m[1]), foldEntity(m[1]), urlPattern)
	})
}

// RenderHTML renders memory content to HTML with wiki-links resolved to
// anchors. The content itself is treated as Markdown.
func RenderHTML(text, urlPattern string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(ToMarkdown(text, urlPattern)), &buf); err != nil {
		return "", fmt.Errorf("rendering content: %w", err)
	}
	return buf.String(), nil
}

func foldEntity(s string) string {
	return folder.String(strings.TrimSpace(s))
}

func markdownLink(display, entity, urlPattern string) string {
	target := strings.ReplaceAll(urlPattern, "{entity}", url.PathEscape(entity))
	return fmt.Sprintf("[%s](%s)", display, target)
}
