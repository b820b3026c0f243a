package slack

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// blockLimit is Slack's per-block text ceiling. Reply bodies are truncated
// to fit a single section.
const blockLimit = 3000

const truncationMark = "\n_(truncated)_"

// FormatRoot renders the thread root: each verse line italicized, then the
// hook as the link text wrapping the article URL.
func FormatRoot(headline, articleURL string) string {
	verse, hook := splitHeadline(headline)

	var sb strings.Builder
	for _, line := range strings.Split(verse, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString("_" + line + "_\n")
	}
	if hook != "" {
		sb.WriteString("\n<" + articleURL + "|" + escapeText(hook) + ">")
	} else {
		sb.WriteString("\n<" + articleURL + ">")
	}
	return sb.String()
}

// splitHeadline separates the haiku verse from the trailing hook sentence.
// The two are divided by the last blank line; a headline without one is all
// verse.
func splitHeadline(headline string) (verse, hook string) {
	headline = strings.TrimSpace(headline)
	if i := strings.LastIndex(headline, "\n\n"); i >= 0 {
		return strings.TrimSpace(headline[:i]), strings.TrimSpace(headline[i+2:])
	}
	return headline, ""
}

// Truncate fits text into limit bytes, preferring to cut at a paragraph
// break and marking the cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	budget := limit - len(truncationMark)
	if budget < 1 {
		budget = 1
	}
	for budget > 0 && !utf8.RuneStart(text[budget]) {
		budget--
	}
	cut := text[:budget]
	if i := strings.LastIndex(cut, "\n\n"); i >= budget/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n") + truncationMark
}

var (
	reMDLink   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	reMDHeader = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reMDBold   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// Mrkdwn converts the markdown-flavored text the model writes into Slack
// mrkdwn: links, headers, and bold.
func Mrkdwn(s string) string {
	s = reMDLink.ReplaceAllString(s, "<$2|$1>")
	s = reMDHeader.ReplaceAllString(s, "*$1*")
	s = reMDBold.ReplaceAllString(s, "*$1*")
	return s
}

// escapeText escapes the characters Slack treats as control syntax inside
// message text and link labels.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
