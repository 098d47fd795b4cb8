package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/modules/wiki"
	"github.com/wikiquiz/server/internal/pkg/apperr"
	"github.com/wikiquiz/server/internal/pkg/pagination"
	"github.com/wikiquiz/server/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	msgValidURL   = "Valid Wikipedia URL"
	msgInvalidURL = "Invalid Wikipedia URL"
	msgCancelled  = "Request cancelled"

	defaultPipelineTimeout = 3 * time.Minute
)

type Service struct {
	store    Store
	fetcher  PageFetcher
	quiz     QuestionSynthesizer
	topics   TopicSynthesizer
	archiver MarkupArchiver
	logger   *zap.Logger
	now      func() time.Time

	pipelineTimeout time.Duration
	flight          singleflight.Group
	mu              sync.Mutex
	runs            map[string]*pipelineRun
}

// pipelineRun is the context shared by every caller waiting on one url.
// It is cancelled once the last waiter leaves or the pipeline times out.
type pipelineRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("QuizService")
		}
	}
}

// WithArchiver enables the markup archive. A nil archiver leaves it off.
func WithArchiver(a MarkupArchiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithPipelineTimeout bounds a single generation run independently of the
// callers waiting on it.
func WithPipelineTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.pipelineTimeout = d
		}
	}
}

func NewService(store Store, fetcher PageFetcher, quiz QuestionSynthesizer, topics TopicSynthesizer, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		quiz:    quiz,
		topics:  topics,
		logger:  zap.NewNop(),
		now:     time.Now,

		pipelineTimeout: defaultPipelineTimeout,
		runs:            make(map[string]*pipelineRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate returns the stored quiz for url, building and persisting it on
// first request. Concurrent calls for the same url share one pipeline run;
// a caller that gives up does not abort the run for the others, and the run
// persists nothing once every caller has gone.
func (s *Service) Generate(ctx context.Context, rawURL string) (*models.QuizModel, error) {
	url := strings.TrimSpace(rawURL)
	if !wiki.ValidateURL(url) {
		return nil, apperr.Validation(msgInvalidURL)
	}

	existing, err := s.store.FindByURL(ctx, url)
	if err != nil {
		return nil, apperr.Store("Failed to look up quiz", err)
	}
	if existing != nil {
		s.logger.Info("quiz already exists", zap.String("url", url), zap.String("id", existing.ID))
		return existing, nil
	}

	run := s.join(ctx, url)
	ch := s.flight.DoChan(url, func() (interface{}, error) {
		return s.generate(run.ctx, url)
	})
	select {
	case <-ctx.Done():
		s.leave(url, run)
		s.logger.Info("caller left before quiz was ready", zap.String("url", url), zap.Error(ctx.Err()))
		return nil, apperr.New(apperr.KindInternal, msgCancelled, ctx.Err())
	case res := <-ch:
		s.leave(url, run)
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("generate shared in-flight result", zap.String("url", url))
		}
		return res.Val.(*models.QuizModel), nil
	}
}

// join registers the caller on the run for url, starting a new one detached
// from ctx when none is live.
func (s *Service) join(ctx context.Context, url string) *pipelineRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[url]; ok {
		run.waiters++
		return run
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.pipelineTimeout)
	run := &pipelineRun{ctx: runCtx, cancel: cancel, waiters: 1}
	s.runs[url] = run
	return run
}

// leave drops the caller from run. The last one out cancels the run and
// forgets the flight so later callers start fresh.
func (s *Service) leave(url string, run *pipelineRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.waiters--
	if run.waiters > 0 {
		return
	}
	run.cancel()
	if s.runs[url] == run {
		delete(s.runs, url)
		s.flight.Forget(url)
	}
}

func (s *Service) generate(ctx context.Context, url string) (*models.QuizModel, error) {
	start := s.now()
	log := s.logger.With(zap.String("url", url))

	markup, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn("fetch failed", zap.String("stage", "fetch"), zap.Error(err))
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Fetch("Failed to fetch article", err)
		}
		return nil, err
	}

	extract, err := wiki.Extract(url, markup)
	if err != nil {
		if extract == nil {
			log.Warn("extraction failed", zap.String("stage", "extract"), zap.Error(err))
			return nil, err
		}
		log.Warn("extraction incomplete, continuing", zap.String("stage", "extract"), zap.Error(err))
	}

	var (
		questions []models.Question
		topics    []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var qerr error
		questions, qerr = s.quiz.Synthesize(gctx, extract)
		return qerr
	})
	g.Go(func() error {
		topics = s.topics.Synthesize(gctx, extract.Title, extract.Summary)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("quiz synthesis failed", zap.String("stage", "generate"), zap.Error(err))
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Generation("Failed to generate quiz", err)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		log.Info("all callers left, discarding quiz", zap.String("stage", "store"), zap.Error(err))
		return nil, apperr.New(apperr.KindInternal, msgCancelled, err)
	}

	record := &models.QuizModel{
		URL:           url,
		Title:         extract.Title,
		Summary:       extract.Summary,
		KeyEntities:   extract.Entities,
		Sections:      models.StringArray(extract.Sections),
		Quiz:          questions,
		RelatedTopics: models.StringArray(topics),
		RawHTML:       markup,
	}

	if s.archiver != nil {
		key, err := s.archiver.Put(ctx, url, markup)
		if err != nil {
			log.Warn("archive upload failed", zap.String("stage", "archive"), zap.Error(err))
		} else {
			record.ArchiveKey = key
		}
	}

	inserted, err := s.store.Insert(ctx, record)
	if errors.Is(err, ErrDuplicateURL) {
		existing, ferr := s.store.FindByURL(ctx, url)
		if ferr != nil {
			return nil, apperr.Store("Failed to load existing quiz", ferr)
		}
		if existing == nil {
			return nil, apperr.Store("Failed to save quiz", err)
		}
		log.Info("quiz inserted concurrently, returning existing", zap.String("id", existing.ID))
		return existing, nil
	}
	if err != nil {
		log.Error("save quiz failed", zap.String("stage", "store"), zap.Error(err))
		return nil, apperr.Store("Failed to save quiz", err)
	}

	log.Info("quiz generated",
		zap.String("id", inserted.ID),
		zap.String("title", inserted.Title),
		zap.Int("questions", len(inserted.Quiz)),
		zap.Duration("took", s.now().Sub(start)),
	)
	return inserted, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.QuizModel, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("Failed to retrieve quiz", err)
	}
	if m == nil {
		return nil, apperr.NotFound("Quiz not found")
	}
	return m, nil
}

// List returns one page of summaries, newest first.
func (s *Service) List(ctx context.Context, q pagination.Query) ([]Summary, response.Pagination, error) {
	total, err := s.store.Count(ctx, CountFilter{})
	if err != nil {
		return nil, response.Pagination{}, apperr.Store("Failed to retrieve quiz history", err)
	}
	rows, err := s.store.ListPage(ctx, q.Offset(), q.Size)
	if err != nil {
		return nil, response.Pagination{}, apperr.Store("Failed to retrieve quiz history", err)
	}

	items := make([]Summary, 0, len(rows))
	for i := range rows {
		items = append(items, toSummary(&rows[i]))
	}
	return items, q.Meta(total), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return apperr.Store("Failed to delete quiz", err)
	}
	if m == nil {
		return apperr.NotFound("Quiz not found")
	}

	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return apperr.Store("Failed to delete quiz", err)
	}
	if !deleted {
		return apperr.NotFound("Quiz not found")
	}

	s.dropArchive(ctx, m.ArchiveKey)
	s.logger.Info("quiz deleted", zap.String("id", id), zap.String("url", m.URL))
	return nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.Count(ctx, CountFilter{})
	if err != nil {
		return nil, apperr.Store("Failed to retrieve statistics", err)
	}
	recent, err := s.store.Count(ctx, CountFilter{Since: s.now().Add(-recentWindow)})
	if err != nil {
		return nil, apperr.Store("Failed to retrieve statistics", err)
	}
	return &Stats{
		TotalQuizzes:  total,
		RecentQuizzes: recent,
		Message:       fmt.Sprintf("Total of %d quizzes generated, %d in the last week", total, recent),
	}, nil
}

func (s *Service) ValidateURL(url string) ValidateURLResponse {
	if wiki.ValidateURL(url) {
		return ValidateURLResponse{Valid: true, Message: msgValidURL}
	}
	return ValidateURLResponse{Valid: false, Message: msgInvalidURL}
}

// PurgeOlderThan hard-deletes records created more than maxAge ago.
func (s *Service) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	expired, err := s.store.DeleteOlderThan(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, apperr.Store("Failed to purge quizzes", err)
	}
	for i := range expired {
		s.dropArchive(ctx, expired[i].ArchiveKey)
	}
	if len(expired) > 0 {
		s.logger.Info("expired quizzes purged", zap.Int("count", len(expired)), zap.Duration("max_age", maxAge))
	}
	return len(expired), nil
}

// Ping reports store reachability.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) dropArchive(ctx context.Context, key string) {
	if s.archiver == nil || key == "" {
		return
	}
	if err := s.archiver.Delete(ctx, key); err != nil {
		s.logger.Warn("archive delete failed", zap.String("key", key), zap.Error(err))
	}
}

func toSummary(m *models.QuizModel) Summary {
	return Summary{
		ID:        m.ID,
		URL:       m.URL,
		Title:     m.Title,
		Summary:   previewSummary(m.Summary),
		CreatedAt: m.CreatedAt,
		QuizCount: len(m.Quiz),
	}
}

func previewSummary(s string) string {
	if utf8.RuneCountInString(s) <= summaryPreviewRunes {
		return s
	}
	return string([]rune(s)[:summaryPreviewRunes]) + "..."
}
