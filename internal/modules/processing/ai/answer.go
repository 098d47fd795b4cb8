package ai

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wikiquiz/server/internal/models"
)

var (
	answerLetterRe = regexp.MustCompile(`^(?i)(?:option\s+)?\(?([a-d])\)?(?:[\).:]\s*(.*))?$`)
	answerPrefixRe = regexp.MustCompile(`(?i)^(?:the\s+)?(?:correct\s+)?(?:answer\s+is\s*:?\s*)`)
)

// resolveAnswer maps a model-supplied answer onto the literal text of one of
// options. Exact text, a letter ("B", "B)", "Option B"), a zero-based index
// and text containing exactly one option are understood. Anything else
// resolves to "".
func resolveAnswer(answer string, options []string) string {
	a := strings.TrimSpace(answer)
	a = strings.TrimSpace(answerPrefixRe.ReplaceAllString(a, ""))
	if a == "" || len(options) == 0 {
		return ""
	}

	bare := strings.TrimRight(a, ".")
	for _, o := range options {
		t := strings.TrimSpace(o)
		if strings.EqualFold(t, a) || strings.EqualFold(t, bare) {
			return o
		}
	}
	a = bare

	if m := answerLetterRe.FindStringSubmatch(a); m != nil {
		idx := int(strings.ToLower(m[1])[0] - 'a')
		if idx < len(options) {
			return options[idx]
		}
	}

	if n, err := strconv.Atoi(a); err == nil && n >= 0 && n < len(options) {
		return options[n]
	}

	lower := strings.ToLower(a)
	match := ""
	for _, o := range options {
		if o == "" || !strings.Contains(lower, strings.ToLower(o)) {
			continue
		}
		if match != "" {
			return ""
		}
		match = o
	}
	return match
}

func normalizeDifficulty(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.DifficultyEasy, "simple", "basic", "beginner":
		return models.DifficultyEasy
	case models.DifficultyHard, "difficult", "challenging", "advanced":
		return models.DifficultyHard
	default:
		return models.DifficultyMedium
	}
}
