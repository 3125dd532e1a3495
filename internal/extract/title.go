package extract

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxTitleRunes = 200

// ResolveTitle picks a document title: the extractor's hint, then the first plausible
// line of the lead pages, then the humanised filename.
func ResolveTitle(doc *Document, lead []Page, filename string) string {
	if doc != nil && strings.TrimSpace(doc.TitleHint) != "" {
		return strings.TrimSpace(doc.TitleHint)
	}
	for _, p := range lead {
		for _, line := range strings.Split(p.Text, "\n") {
			line = strings.Join(strings.Fields(line), " ")
			if plausibleTitle(line) {
				return line
			}
		}
	}
	return TitleFromFilename(filename)
}

func plausibleTitle(line string) bool {
	if line == "" || utf8.RuneCountInString(line) > maxTitleRunes {
		return false
	}
	// page numbers, years and similar
	if _, err := strconv.ParseFloat(strings.ReplaceAll(line, " ", ""), 64); err == nil {
		return false
	}
	for _, r := range line {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// TitleFromFilename removes the extension, turns separators into spaces and
// capitalises each word.
func TitleFromFilename(filename string) string {
	name := filepath.Base(filename)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)

	words := strings.Fields(name)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	if len(words) == 0 {
		return "Untitled"
	}
	return strings.Join(words, " ")
}
