package service

import (
	"html"
	"regexp"
	"strings"
)

// maxQuestionRunes is applied before any other cleanup.
const maxQuestionRunes = 1000

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// SanitizePrompt truncates text, decodes HTML entities, strips tags and
// collapses whitespace.
func SanitizePrompt(text string) string {
	if text == "" {
		return ""
	}
	if runes := []rune(text); len(runes) > maxQuestionRunes {
		text = string(runes[:maxQuestionRunes])
	}
	text = html.UnescapeString(text)
	text = htmlTag.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
