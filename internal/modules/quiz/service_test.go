package quiz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/pkg/apperr"
	"github.com/wikiquiz/server/internal/pkg/pagination"
)

func newTestService(t *testing.T, fetcher *fakeFetcher, quiz *fakeQuiz, opts ...ServiceOption) (*Service, *GormStore) {
	t.Helper()
	store := newTestStore(t)
	return NewService(store, fetcher, quiz, fakeTopics{}, opts...), store
}

func TestGenerateBuildsAndPersists(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup}
	svc, store := newTestService(t, fetcher, &fakeQuiz{})

	record, err := svc.Generate(context.Background(), "  "+turingURL+" ")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.ID == "" || record.URL != turingURL || record.Title != "Alan Turing" {
		t.Fatalf("unexpected record: id=%q url=%q title=%q", record.ID, record.URL, record.Title)
	}
	if len(record.Quiz) != models.QuestionsPerQuiz {
		t.Fatalf("quiz len = %d", len(record.Quiz))
	}
	if len(record.RelatedTopics) != 2 {
		t.Fatalf("related topics = %v", record.RelatedTopics)
	}
	if record.RawHTML != articleMarkup {
		t.Fatal("raw markup not kept")
	}

	n, _ := store.Count(context.Background(), CountFilter{})
	if n != 1 {
		t.Fatalf("stored %d records, want 1", n)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup}
	quiz := &fakeQuiz{}
	svc, _ := newTestService(t, fetcher, quiz)

	first, err := svc.Generate(context.Background(), turingURL)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := svc.Generate(context.Background(), turingURL)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ids differ: %s vs %s", first.ID, second.ID)
	}
	if fetcher.calls.Load() != 1 || quiz.calls.Load() != 1 {
		t.Fatalf("pipeline ran %d fetches / %d syntheses, want 1 / 1", fetcher.calls.Load(), quiz.calls.Load())
	}
}

func TestGenerateConcurrentSameURL(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup, gate: make(chan struct{})}
	svc, store := newTestService(t, fetcher, &fakeQuiz{})

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := svc.Generate(context.Background(), turingURL)
			errs[i] = err
			if rec != nil {
				ids[i] = rec.ID
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got id %s, want %s", i, ids[i], ids[0])
		}
	}
	n, _ := store.Count(context.Background(), CountFilter{})
	if n != 1 {
		t.Fatalf("stored %d records, want 1", n)
	}
}

func TestGenerateDuplicateInsertReturnsExisting(t *testing.T) {
	inner := newTestStore(t)
	existing, err := inner.Insert(context.Background(), sampleRecord(turingURL))
	if err != nil {
		t.Fatalf("seed Insert: %v", err)
	}

	svc := NewService(&racingStore{Store: inner}, &fakeFetcher{markup: articleMarkup}, &fakeQuiz{}, fakeTopics{})
	record, err := svc.Generate(context.Background(), turingURL)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.ID != existing.ID {
		t.Fatalf("id = %s, want existing %s", record.ID, existing.ID)
	}
}

func TestGenerateRejectsInvalidURL(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup}
	svc, _ := newTestService(t, fetcher, &fakeQuiz{})

	for _, url := range []string{"", "https://example.com/wiki/Go", "en.wikipedia.org/wiki/Go"} {
		_, err := svc.Generate(context.Background(), url)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("Generate(%q) err = %v, want validation error", url, err)
		}
	}
	if fetcher.calls.Load() != 0 {
		t.Fatal("invalid url must not be fetched")
	}
}

func TestGenerateFailuresPersistNothing(t *testing.T) {
	cases := []struct {
		name    string
		fetcher *fakeFetcher
		quiz    *fakeQuiz
		kind    apperr.Kind
	}{
		{
			name:    "fetch",
			fetcher: &fakeFetcher{err: apperr.Fetch("Failed to fetch article", errors.New("HTTP 404"))},
			quiz:    &fakeQuiz{},
			kind:    apperr.KindFetch,
		},
		{
			name:    "unclassified fetch",
			fetcher: &fakeFetcher{err: errors.New("dial tcp: refused")},
			quiz:    &fakeQuiz{},
			kind:    apperr.KindFetch,
		},
		{
			name:    "generation",
			fetcher: &fakeFetcher{markup: articleMarkup},
			quiz:    &fakeQuiz{err: apperr.Generation("Failed to generate quiz", errors.New("401"))},
			kind:    apperr.KindGeneration,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestService(t, tc.fetcher, tc.quiz)
			_, err := svc.Generate(context.Background(), turingURL)
			if got := apperr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %s, want %s (err %v)", got, tc.kind, err)
			}
			n, _ := store.Count(context.Background(), CountFilter{})
			if n != 0 {
				t.Fatalf("stored %d records after failure", n)
			}
		})
	}
}

func TestGenerateMissingContentStillSucceeds(t *testing.T) {
	fetcher := &fakeFetcher{markup: `<html><body><h1 id="firstHeading">Stub</h1><p>nothing</p></body></html>`}
	svc, _ := newTestService(t, fetcher, &fakeQuiz{})

	record, err := svc.Generate(context.Background(), "https://en.wikipedia.org/wiki/Stub")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.Title != "Stub" || len(record.Quiz) != models.QuestionsPerQuiz {
		t.Fatalf("unexpected record %q with %d questions", record.Title, len(record.Quiz))
	}
}

func TestGenerateCancelledBeforePersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiz := &fakeQuiz{onCall: cancel, holdUntilDone: true}
	svc, store := newTestService(t, &fakeFetcher{markup: articleMarkup}, quiz)

	_, err := svc.Generate(ctx, turingURL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	eventually(t, "synthesis to return", func() bool { return quiz.returned.Load() == 1 })
	time.Sleep(20 * time.Millisecond)

	n, _ := store.Count(context.Background(), CountFilter{})
	if n != 0 {
		t.Fatalf("stored %d records after cancellation", n)
	}
	if waiting(svc, turingURL) != 0 {
		t.Fatal("run still registered after last caller left")
	}
}

func TestGenerateCallerCancelReturnsPromptly(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup, gate: make(chan struct{})}
	defer close(fetcher.gate)
	svc, _ := newTestService(t, fetcher, &fakeQuiz{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Generate(ctx, turingURL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("Generate returned after %s", took)
	}
}

func TestGenerateFirstCallerCancelDoesNotFailOthers(t *testing.T) {
	fetcher := &fakeFetcher{markup: articleMarkup, gate: make(chan struct{})}
	svc, store := newTestService(t, fetcher, &fakeQuiz{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Generate(firstCtx, turingURL)
		firstErr <- err
	}()
	eventually(t, "first fetch", func() bool { return fetcher.calls.Load() == 1 })

	type result struct {
		rec *models.QuizModel
		err error
	}
	second := make(chan result, 1)
	go func() {
		rec, err := svc.Generate(context.Background(), turingURL)
		second <- result{rec, err}
	}()
	eventually(t, "second caller to join", func() bool { return waiting(svc, turingURL) == 2 })

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}

	close(fetcher.gate)
	got := <-second
	if got.err != nil {
		t.Fatalf("second caller: %v", got.err)
	}
	if got.rec == nil || got.rec.Title != "Alan Turing" {
		t.Fatalf("second caller record = %+v", got.rec)
	}
	if n := fetcher.calls.Load(); n != 1 {
		t.Fatalf("fetches = %d, want 1", n)
	}
	n, _ := store.Count(context.Background(), CountFilter{})
	if n != 1 {
		t.Fatalf("stored %d records, want 1", n)
	}
}

func TestGenerateArchivesMarkup(t *testing.T) {
	archiver := &fakeArchiver{}
	svc, _ := newTestService(t, &fakeFetcher{markup: articleMarkup}, &fakeQuiz{}, WithArchiver(archiver))

	record, err := svc.Generate(context.Background(), turingURL)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.ArchiveKey == "" || len(archiver.puts) != 1 {
		t.Fatalf("archive key %q, puts %v", record.ArchiveKey, archiver.puts)
	}

	if err := svc.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(archiver.deletes) != 1 || archiver.deletes[0] != record.ArchiveKey {
		t.Fatalf("archive deletes = %v", archiver.deletes)
	}
}

func TestGenerateArchiveFailureIsIgnored(t *testing.T) {
	archiver := &fakeArchiver{putErr: errors.New("s3 down")}
	svc, _ := newTestService(t, &fakeFetcher{markup: articleMarkup}, &fakeQuiz{}, WithArchiver(archiver))

	record, err := svc.Generate(context.Background(), turingURL)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if record.ArchiveKey != "" {
		t.Fatalf("archive key = %q, want empty", record.ArchiveKey)
	}
}

func TestGetAndDeleteNotFound(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{}, &fakeQuiz{})

	if _, err := svc.Get(context.Background(), "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Get err = %v", err)
	}
	if err := svc.Delete(context.Background(), "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestStoreFailureIsClassified(t *testing.T) {
	svc := NewService(failingStore{}, &fakeFetcher{}, &fakeQuiz{}, fakeTopics{})

	if _, err := svc.Generate(context.Background(), turingURL); !apperr.Is(err, apperr.KindStore) {
		t.Fatalf("Generate err = %v", err)
	}
	if _, err := svc.Get(context.Background(), "x"); !apperr.Is(err, apperr.KindStore) {
		t.Fatalf("Get err = %v", err)
	}
}

func TestListSummaries(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, &fakeFetcher{}, &fakeQuiz{})

	long := sampleRecord("https://en.wikipedia.org/wiki/Long")
	long.Summary = strings.Repeat("é", 250)
	long.CreatedAt = time.Now().Add(-time.Minute)
	if _, err := store.Insert(ctx, long); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, sampleRecord("https://en.wikipedia.org/wiki/Short")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	items, pag, err := svc.List(ctx, pagination.Normalize(1, 10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || pag.Total != 2 || pag.HasNextPage {
		t.Fatalf("items=%d pagination=%+v", len(items), pag)
	}
	if items[0].URL != "https://en.wikipedia.org/wiki/Short" {
		t.Fatalf("newest first violated: %s", items[0].URL)
	}
	if items[0].Summary != "Summary" || items[0].QuizCount != 1 {
		t.Fatalf("short summary = %+v", items[0])
	}
	want := strings.Repeat("é", 200) + "..."
	if items[1].Summary != want {
		t.Fatalf("long summary not truncated to 200 runes: %d chars", len([]rune(items[1].Summary)))
	}

	items, pag, err = svc.List(ctx, pagination.Normalize(2, 1))
	if err != nil || len(items) != 1 || pag.CurrentPage != 2 || pag.TotalPage != 2 {
		t.Fatalf("page 2: items=%d pagination=%+v err=%v", len(items), pag, err)
	}
}

func TestStatsAndPurge(t *testing.T) {
	ctx := context.Background()
	archiver := &fakeArchiver{}
	svc, store := newTestService(t, &fakeFetcher{}, &fakeQuiz{}, WithArchiver(archiver))

	old := sampleRecord("https://en.wikipedia.org/wiki/Old")
	old.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	old.ArchiveKey = "articles/old.html"
	if _, err := store.Insert(ctx, old); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, sampleRecord("https://en.wikipedia.org/wiki/New")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalQuizzes != 2 || stats.RecentQuizzes != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Message != "Total of 2 quizzes generated, 1 in the last week" {
		t.Fatalf("message = %q", stats.Message)
	}

	purged, err := svc.PurgeOlderThan(ctx, 7*24*time.Hour)
	if err != nil || purged != 1 {
		t.Fatalf("PurgeOlderThan = %d, %v", purged, err)
	}
	if len(archiver.deletes) != 1 || archiver.deletes[0] != "articles/old.html" {
		t.Fatalf("archive deletes = %v", archiver.deletes)
	}
}

func TestValidateURL(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	if got := svc.ValidateURL(turingURL); !got.Valid || got.Message != msgValidURL {
		t.Fatalf("ValidateURL(valid) = %+v", got)
	}
	if got := svc.ValidateURL("https://example.com"); got.Valid || got.Message != msgInvalidURL {
		t.Fatalf("ValidateURL(invalid) = %+v", got)
	}
}
