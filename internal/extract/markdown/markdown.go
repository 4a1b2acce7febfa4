// Package markdown renders extracted article HTML into clean
// Markdown, and assembles a complete article document with a
// front-matter-style header.
package markdown

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	excessiveBlankLinesRe = regexp.MustCompile(`\n{3,}`)
	trailingWhitespaceRe  = regexp.MustCompile(`(?m)[ \t]+$`)
)

// RenderBody converts an HTML fragment to Markdown, then trims
// trailing whitespace per line and collapses runs of blank lines
// down to a single one.
func RenderBody(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return ""
	}
	md = trailingWhitespaceRe.ReplaceAllString(md, "")
	md = excessiveBlankLinesRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md)
}

// RenderArticle assembles a full Markdown document: an H1 title, an
// author/published/tags metadata block, a blockquoted summary, a
// horizontal rule, then the body.
func RenderArticle(title, author, publishedAt string, tags []string, summary, contentMarkdown string) string {
	var lines []string
	lines = append(lines, "# "+title, "")

	var meta []string
	if author != "" {
		meta = append(meta, "**Author:** "+author)
	}
	if publishedAt != "" {
		meta = append(meta, "**Published:** "+publishedAt)
	}
	if len(tags) > 0 {
		meta = append(meta, "**Tags:** "+strings.Join(tags, ", "))
	}
	if len(meta) > 0 {
		lines = append(lines, meta...)
		lines = append(lines, "")
	}

	if summary != "" {
		lines = append(lines, "> "+summary, "")
	}

	lines = append(lines, "---", "", contentMarkdown)
	return strings.Join(lines, "\n")
}
