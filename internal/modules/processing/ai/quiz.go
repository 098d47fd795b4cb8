package ai

import (
	"context"
	"time"

	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/modules/wiki"
	"github.com/wikiquiz/server/internal/pkg/apperr"
	"go.uber.org/zap"
)

// QuizSynthesizer asks the model for a quiz and always yields
// models.QuestionsPerQuiz questions when the model is reachable.
type QuizSynthesizer struct {
	model  LanguageModel
	logger *zap.Logger
}

func NewQuizSynthesizer(model LanguageModel, opts ...Option) *QuizSynthesizer {
	o := applyOptions(opts)
	return &QuizSynthesizer{model: model, logger: o.logger.Named("QuizSynthesizer")}
}

// Synthesize makes one model call. Only a failed call is an error; malformed
// or empty replies fall through the parse tiers.
func (s *QuizSynthesizer) Synthesize(ctx context.Context, extract *wiki.ArticleExtract) ([]models.Question, error) {
	prompt := BuildQuizPrompt(ComposeContext(extract))

	start := time.Now()
	reply, err := s.model.Generate(ctx, quizSystemPrompt, prompt)
	if err != nil {
		return nil, apperr.Generation("Failed to generate quiz", err)
	}

	title := ""
	if extract != nil {
		title = extract.Title
	}
	questions, tier := ParseQuiz(reply, title)

	s.logger.Info("quiz synthesized",
		zap.String("title", title),
		zap.String("tier", tier),
		zap.Int("reply_len", len(reply)),
		zap.Duration("took", time.Since(start)),
	)
	return questions, nil
}
