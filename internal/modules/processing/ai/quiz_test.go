package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wikiquiz/server/internal/modules/wiki"
	"github.com/wikiquiz/server/internal/pkg/apperr"
)

func TestQuizSynthesizerModelFailure(t *testing.T) {
	s := NewQuizSynthesizer(&fakeModel{err: errors.New("dial tcp: connection refused")})
	_, err := s.Synthesize(context.Background(), &wiki.ArticleExtract{Title: "Alan Turing"})
	if apperr.KindOf(err) != apperr.KindGeneration {
		t.Fatalf("err = %v, want generation error", err)
	}
}

func TestQuizSynthesizerEmptyReplyIsNotAnError(t *testing.T) {
	s := NewQuizSynthesizer(&fakeModel{reply: ""})
	qs, err := s.Synthesize(context.Background(), &wiki.ArticleExtract{Title: "Alan Turing"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	assertQuizShape(t, qs)
}

func TestQuizSynthesizerSendsContext(t *testing.T) {
	m := &fakeModel{reply: strictReply(8)}
	extract := &wiki.ArticleExtract{Title: "Alan Turing", Summary: "Mathematician", Sections: []string{"Career"}}
	qs, err := NewQuizSynthesizer(m).Synthesize(context.Background(), extract)
	if err != nil {
		t.Fatal(err)
	}
	assertQuizShape(t, qs)
	if len(m.prompts) != 1 || !strings.Contains(m.prompts[0], "Key Sections: Career") {
		t.Errorf("prompts = %q", m.prompts)
	}
}
