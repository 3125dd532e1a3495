package rag

import (
	"strings"
	"testing"
)

func TestFormatHistory(t *testing.T) {
	history := []HistoryMessage{
		{Role: "user", Content: "What is the title?"},
		{Role: "assistant", Content: "Attention Is All You Need."},
		{Role: "user", Content: "Who wrote it?"},
	}

	tests := []struct {
		name  string
		turns int
		want  string
	}{
		{name: "all turns", turns: 10, want: "user: What is the title?\nassistant: Attention Is All You Need.\nuser: Who wrote it?"},
		{name: "last two", turns: 2, want: "assistant: Attention Is All You Need.\nuser: Who wrote it?"},
		{name: "disabled", turns: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatHistory(history, tt.turns); got != tt.want {
				t.Errorf("formatHistory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswerUserPrompt(t *testing.T) {
	got := answerUserPrompt("CTX", "HIST", "Q?")
	ctxAt := strings.Index(got, "CTX")
	histAt := strings.Index(got, "HIST")
	qAt := strings.Index(got, "Q?")
	if ctxAt < 0 || histAt < ctxAt || qAt < histAt {
		t.Errorf("answerUserPrompt() order wrong:\n%s", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "hello", n: 3, want: "hel"},
		{in: "hello", n: 5, want: "hello"},
		{in: "hello", n: 10, want: "hello"},
		{in: "héllo wörld", n: 7, want: "héllo w"},
		{in: "abc", n: 0, want: "abc"},
		{in: "", n: 3, want: ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	if got := normalizeWhitespace("  a\n\n b\t\tc  "); got != "a b c" {
		t.Errorf("normalizeWhitespace() = %q", got)
	}
}
