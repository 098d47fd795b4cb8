package ai

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/wikiquiz/server/internal/modules/wiki"
)

func TestComposeContext(t *testing.T) {
	extract := &wiki.ArticleExtract{
		Title:       "Alan Turing",
		Summary:     "English mathematician.",
		Sections:    []string{"Early life", "Career"},
		ContentText: strings.Repeat("é", 5000),
	}
	got := ComposeContext(extract)
	parts := strings.Split(got, "\n\n")
	if len(parts) != 4 {
		t.Fatalf("parts = %d: %q", len(parts), got)
	}
	if parts[0] != "Title: Alan Turing" || parts[1] != "Summary: English mathematician." {
		t.Errorf("header = %q / %q", parts[0], parts[1])
	}
	if parts[2] != "Key Sections: Early life, Career" {
		t.Errorf("sections = %q", parts[2])
	}
	content := strings.TrimPrefix(parts[3], "Content: ")
	if n := utf8.RuneCountInString(content); n != maxPromptContentRunes {
		t.Errorf("content runes = %d", n)
	}
}

func TestComposeContextDefaults(t *testing.T) {
	got := ComposeContext(&wiki.ArticleExtract{})
	want := "Title: Unknown\n\nSummary: No summary available\n\nKey Sections: \n\nContent: "
	if got != want {
		t.Errorf("ComposeContext = %q, want %q", got, want)
	}
	if ComposeContext(nil) != want {
		t.Error("nil extract should use the same defaults")
	}
}

func TestBuildPrompts(t *testing.T) {
	quiz := BuildQuizPrompt("Title: X")
	for _, s := range []string{"Title: X", "exactly 8 questions", "2 easy, 3 medium, 3 hard", `"questions"`} {
		if !strings.Contains(quiz, s) {
			t.Errorf("quiz prompt missing %q", s)
		}
	}
	topics := BuildTopicsPrompt(" Alan Turing ", "Mathematician")
	if !strings.Contains(topics, `"Alan Turing"`) || !strings.Contains(topics, "Article summary: Mathematician") {
		t.Errorf("topics prompt = %q", topics)
	}
}
