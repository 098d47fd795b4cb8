package quiz

import (
	"context"
	"time"

	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/modules/wiki"
)

const (
	summaryPreviewRunes = 200
	recentWindow        = 7 * 24 * time.Hour
)

// PageFetcher downloads article markup.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// QuestionSynthesizer turns an extract into exactly models.QuestionsPerQuiz questions.
type QuestionSynthesizer interface {
	Synthesize(ctx context.Context, extract *wiki.ArticleExtract) ([]models.Question, error)
}

// TopicSynthesizer suggests related article titles and never fails.
type TopicSynthesizer interface {
	Synthesize(ctx context.Context, title, summary string) []string
}

// MarkupArchiver stores raw markup out of the database.
type MarkupArchiver interface {
	Put(ctx context.Context, url, markup string) (string, error)
	Delete(ctx context.Context, key string) error
}

type GenerateRequest struct {
	URL string `json:"url"`
}

type ValidateURLRequest struct {
	URL string `json:"url"`
}

type ValidateURLResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Summary is the history list view of a record.
type Summary struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	QuizCount int       `json:"quiz_count"`
}

type Stats struct {
	TotalQuizzes  int64  `json:"total_quizzes"`
	RecentQuizzes int64  `json:"recent_quizzes"`
	Message       string `json:"message"`
}
