package quiz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wikiquiz/server/internal/config"
	"github.com/wikiquiz/server/internal/database"
	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/modules/wiki"
	"github.com/wikiquiz/server/internal/pkg/apperr"
)

const turingURL = "https://en.wikipedia.org/wiki/Alan_Turing"

const articleMarkup = `<html><body>
<h1 id="firstHeading">Alan Turing</h1>
<div id="mw-content-text">
  <p>Alan Mathison Turing was an English mathematician, computer scientist, logician, cryptanalyst, philosopher and theoretical biologist.</p>
  <h2>Early life</h2>
  <h2>Career</h2>
</div>
</body></html>`

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	cfg := &config.AppConfig{
		Env:      "production",
		Database: config.DatabaseRuntimeConfig{Driver: config.DriverSQLite},
		DSN:      filepath.Join(t.TempDir(), "quiz.db"),
	}
	db, err := database.Connect(cfg, true)
	if err != nil {
		t.Fatalf("database.Connect: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return NewGormStore(db)
}

type fakeFetcher struct {
	markup string
	err    error
	calls  atomic.Int32
	gate   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", apperr.Fetch("Failed to fetch article", ctx.Err())
		}
	}
	return f.markup, f.err
}

type fakeQuiz struct {
	err    error
	calls  atomic.Int32
	onCall func()
	// holdUntilDone blocks each call until its context ends.
	holdUntilDone bool
	returned      atomic.Int32
}

func (f *fakeQuiz) Synthesize(ctx context.Context, extract *wiki.ArticleExtract) ([]models.Question, error) {
	f.calls.Add(1)
	defer f.returned.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	if f.holdUntilDone {
		<-ctx.Done()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Question, models.QuestionsPerQuiz)
	for i := range out {
		out[i] = models.Question{
			Question:    fmt.Sprintf("Question %d about %s?", i+1, extract.Title),
			Options:     []string{"A", "B", "C", "D"},
			Answer:      "A",
			Difficulty:  models.DifficultyMedium,
			Explanation: "Because.",
		}
	}
	return out, nil
}

type fakeTopics struct{ topics []string }

func (f fakeTopics) Synthesize(context.Context, string, string) []string {
	if len(f.topics) == 0 {
		return []string{"Enigma machine", "Bletchley Park"}
	}
	return f.topics
}

type fakeArchiver struct {
	mu      sync.Mutex
	putErr  error
	puts    []string
	deletes []string
}

func (f *fakeArchiver) Put(_ context.Context, url, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	key := "articles/" + fmt.Sprint(len(f.puts)) + ".html"
	f.puts = append(f.puts, url)
	return key, nil
}

func (f *fakeArchiver) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, key)
	return nil
}

// waiting reports how many callers are attached to the run for url.
func waiting(s *Service, url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[url]; ok {
		return run.waiters
	}
	return 0
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// racingStore hides existing rows from the first FindByURL so Generate
// proceeds to Insert and hits the unique index.
type racingStore struct {
	Store
	missed atomic.Bool
}

func (s *racingStore) FindByURL(ctx context.Context, url string) (*models.QuizModel, error) {
	if s.missed.CompareAndSwap(false, true) {
		return nil, nil
	}
	return s.Store.FindByURL(ctx, url)
}

// failingStore fails every call.
type failingStore struct{ Store }

var errStoreDown = errors.New("store down")

func (failingStore) FindByURL(context.Context, string) (*models.QuizModel, error) {
	return nil, errStoreDown
}

func (failingStore) FindByID(context.Context, string) (*models.QuizModel, error) {
	return nil, errStoreDown
}
