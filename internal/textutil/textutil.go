// Package textutil holds small text helpers shared by the answer pipelines.
package textutil

import (
	"regexp"
	"strings"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Common typo fixes applied to generated Indonesian text. Meaning-preserving
// substitutions only.
var typoFixes = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bkiatar\b`), "maksud"},
	{regexp.MustCompile(`(?i)\bprosfek\b`), "prospek"},
	{regexp.MustCompile(`(?i)\bkarir\b`), "karier"},
	{regexp.MustCompile(`(?i)\bdi karenakan\b`), "dikarenakan"},
}

// Tidy applies light cleanup to an answer: common typo fixes, collapsed
// space runs and at most one blank line between paragraphs.
func Tidy(text string) string {
	out := strings.TrimSpace(text)
	if out == "" {
		return out
	}
	for _, fix := range typoFixes {
		out = fix.pattern.ReplaceAllString(out, fix.replace)
	}
	out = spaceRuns.ReplaceAllString(out, " ")
	out = newlineRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// Snippet flattens chunk text into a single line capped at maxLen runes.
func Snippet(text string, maxLen int) string {
	flat := whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	runes := []rune(flat)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return flat
}

// HasInteractiveSections reports whether an answer already carries the
// follow-up sections the polish step would add.
func HasInteractiveSections(answer string) bool {
	a := strings.ToLower(answer)
	return strings.Contains(a, "insight singkat") &&
		(strings.Contains(a, "pertanyaan lanjutan") || strings.Contains(a, "opsi cepat"))
}

// LooksLikeMarkdownTable reports whether an answer contains a markdown table.
func LooksLikeMarkdownTable(answer string) bool {
	return strings.Contains(answer, "|") && strings.Contains(answer, "---")
}
