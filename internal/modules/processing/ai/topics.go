package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wikiquiz/server/internal/models"
	"go.uber.org/zap"
)

const minTopicRunes = 4

var listMarkerRe = regexp.MustCompile(`^(?:[-*•]+|\d+[\).:])\s*`)

// FallbackTopics is the fixed list used when the model yields nothing usable.
func FallbackTopics() []string {
	out := make([]string, models.MaxRelatedTopics)
	for i := range out {
		out[i] = fmt.Sprintf("Related topic %d", i+1)
	}
	return out
}

// TopicsSynthesizer suggests related articles. It never fails.
type TopicsSynthesizer struct {
	model  LanguageModel
	logger *zap.Logger
}

func NewTopicsSynthesizer(model LanguageModel, opts ...Option) *TopicsSynthesizer {
	o := applyOptions(opts)
	return &TopicsSynthesizer{model: model, logger: o.logger.Named("TopicsSynthesizer")}
}

func (s *TopicsSynthesizer) Synthesize(ctx context.Context, title, summary string) []string {
	reply, err := s.model.Generate(ctx, "", BuildTopicsPrompt(title, summary))
	if err != nil {
		s.logger.Warn("related topics unavailable, using fallback",
			zap.String("title", title), zap.Error(err))
		return FallbackTopics()
	}

	topics := ParseTopics(reply)
	if len(topics) == 0 {
		s.logger.Debug("related topics reply empty, using fallback", zap.String("title", title))
		return FallbackTopics()
	}
	return topics
}

// ParseTopics reads one topic per line. Heading lines starting with '#' and
// entries shorter than four characters are dropped. Duplicates are removed
// case-insensitively and the result is capped at models.MaxRelatedTopics.
func ParseTopics(reply string) []string {
	topics := make([]string, 0, models.MaxRelatedTopics)
	seen := make(map[string]struct{}, models.MaxRelatedTopics)

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, "*_\"'` ")
		if utf8.RuneCountInString(line) < minTopicRunes {
			continue
		}

		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		topics = append(topics, line)
		if len(topics) == models.MaxRelatedTopics {
			break
		}
	}
	return topics
}
