package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/wikiquiz/server/internal/models"
)

// Parse tiers, recorded for logging.
const (
	TierStrict    = "strict"
	TierHeuristic = "heuristic"
	TierSynthetic = "synthetic"
)

const (
	placeholderExplanation = "This is a sample explanation."
	minQuestionRunes       = 20
)

var placeholderOptions = []string{"Option A", "Option B", "Option C", "Option D"}

// parseTier returns ok=false when it could not recover anything useful.
type parseTier struct {
	name  string
	parse func(reply string) ([]models.Question, bool)
}

var parseTiers = []parseTier{
	{name: TierStrict, parse: parseStrict},
	{name: TierHeuristic, parse: parseHeuristic},
}

// ParseQuiz recovers exactly models.QuestionsPerQuiz questions from a model
// reply. It tries each tier in order and pads any shortfall with placeholder
// questions about title. The returned tier names the source of the first
// recovered question, or TierSynthetic when nothing was recovered.
func ParseQuiz(reply, title string) ([]models.Question, string) {
	for _, tier := range parseTiers {
		if questions, ok := tier.parse(reply); ok {
			return fillQuiz(questions, title), tier.name
		}
	}
	return fillQuiz(nil, title), TierSynthetic
}

// fillQuiz pads with placeholders up to the fixed quiz length and truncates beyond it.
func fillQuiz(questions []models.Question, title string) []models.Question {
	if len(questions) > models.QuestionsPerQuiz {
		questions = questions[:models.QuestionsPerQuiz]
	}
	out := make([]models.Question, 0, models.QuestionsPerQuiz)
	out = append(out, questions...)

	subject := strings.TrimSpace(title)
	if subject == "" {
		subject = "the article"
	}
	for i := len(out); i < models.QuestionsPerQuiz; i++ {
		out = append(out, models.Question{
			Question:    fmt.Sprintf("Sample question %d about %s?", i+1, subject),
			Options:     append([]string(nil), placeholderOptions...),
			Answer:      placeholderOptions[0],
			Difficulty:  models.DifficultyMedium,
			Explanation: placeholderExplanation,
		})
	}
	return out
}

// rawQuestion accepts the field spellings models tend to produce.
type rawQuestion struct {
	Question      string          `json:"question"`
	Options       json.RawMessage `json:"options"`
	Answer        json.RawMessage `json:"answer"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	CorrectCamel  json.RawMessage `json:"correctAnswer"`
	Difficulty    string          `json:"difficulty"`
	Explanation   string          `json:"explanation"`
}

// Items stay raw so one badly typed question cannot sink the whole list.
type rawEnvelope struct {
	Questions []json.RawMessage `json:"questions"`
}

// parseStrict decodes the first brace-delimited block holding a "questions"
// list, or a bare top-level list of questions. Items that fail to decode, or
// lack exactly four non-empty options, are dropped.
func parseStrict(reply string) ([]models.Question, bool) {
	for _, block := range jsonCandidates(reply) {
		var env rawEnvelope
		if err := json.Unmarshal([]byte(block), &env); err != nil || env.Questions == nil {
			continue
		}
		return normalizeRawQuestions(env.Questions)
	}

	first := strings.Index(reply, "[")
	last := strings.LastIndex(reply, "]")
	if first >= 0 && last > first {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(reply[first:last+1]), &list); err == nil {
			return normalizeRawQuestions(list)
		}
	}
	return nil, false
}

func normalizeRawQuestions(items []json.RawMessage) ([]models.Question, bool) {
	questions := make([]models.Question, 0, len(items))
	for _, item := range items {
		var rq rawQuestion
		if err := json.Unmarshal(item, &rq); err != nil {
			continue
		}
		if q, ok := normalizeRawQuestion(rq); ok {
			questions = append(questions, q)
		}
	}
	return questions, len(questions) > 0
}

func normalizeRawQuestion(rq rawQuestion) (models.Question, bool) {
	text := strings.TrimSpace(rq.Question)
	if text == "" {
		return models.Question{}, false
	}
	options := decodeOptions(rq.Options)
	if len(options) != models.OptionsPerQuestion {
		return models.Question{}, false
	}
	for _, o := range options {
		if o == "" {
			return models.Question{}, false
		}
	}
	options = stripOptionMarkers(options)

	answer := rq.Answer
	if isEmptyJSON(answer) {
		answer = rq.CorrectAnswer
	}
	if isEmptyJSON(answer) {
		answer = rq.CorrectCamel
	}

	return models.Question{
		Question:    text,
		Options:     options,
		Answer:      resolveAnswer(decodeAnswer(answer), options),
		Difficulty:  normalizeDifficulty(rq.Difficulty),
		Explanation: strings.TrimSpace(rq.Explanation),
	}, true
}

// decodeOptions accepts a list of strings or an object keyed by option letter.
func decodeOptions(raw json.RawMessage) []string {
	if isEmptyJSON(raw) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for i := range list {
			list[i] = strings.TrimSpace(list[i])
		}
		return list
	}
	var keyed map[string]string
	if err := json.Unmarshal(raw, &keyed); err == nil {
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, strings.TrimSpace(keyed[k]))
		}
		return out
	}
	return nil
}

// decodeAnswer renders a string or numeric answer as text.
func decodeAnswer(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func isEmptyJSON(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

// jsonCandidates lists the top-level balanced {...} blocks in order, then the
// span from the first '{' to the last '}' as a last resort.
func jsonCandidates(reply string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(reply); i++ {
		c := reply[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, reply[start:i+1])
					start = -1
				}
			}
		}
	}

	first := strings.Index(reply, "{")
	last := strings.LastIndex(reply, "}")
	if first >= 0 && last > first {
		greedy := reply[first : last+1]
		if len(out) == 0 || out[0] != greedy {
			out = append(out, greedy)
		}
	}
	return out
}

var (
	optionLineRe   = regexp.MustCompile(`^\(?([A-Da-d])[\).:]\s*(.+)$`)
	numberingRe    = regexp.MustCompile(`^(?:(?:Q(?:uestion)?\s*)?\d+\s*[\).:\-]\s*|Q(?:uestion)?\s*\d*\s*[:.]\s*)`)
	answerMarkerRe = regexp.MustCompile(`(?i)(?:answer|correct)\s*:`)
	explanationRe  = regexp.MustCompile(`(?i)^explanation\s*:\s*(.*)$`)
	markdownEmphRe = regexp.MustCompile(`\*\*|__`)
	optionMarkerRe = regexp.MustCompile(`^\(?[A-Da-d][\).:]\s+`)
)

type draftQuestion struct {
	question    string
	options     []string
	answer      string
	hasAnswer   bool
	explanation string
}

// parseHeuristic scans free text line by line for numbered questions
// followed by lettered options.
func parseHeuristic(reply string) ([]models.Question, bool) {
	var (
		questions []models.Question
		current   *draftQuestion
	)

	commit := func() {
		if current == nil || len(current.options) != models.OptionsPerQuestion {
			current = nil
			return
		}
		questions = append(questions, models.Question{
			Question:    current.question,
			Options:     current.options,
			Answer:      resolveAnswer(current.answer, current.options),
			Difficulty:  models.DifficultyMedium,
			Explanation: current.explanation,
		})
		current = nil
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(markdownEmphRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}

		if current != nil {
			if m := optionLineRe.FindStringSubmatch(line); m != nil {
				current.options = append(current.options, strings.TrimSpace(m[2]))
				continue
			}
		}

		if strings.HasSuffix(line, "?") && utf8.RuneCountInString(line) > minQuestionRunes {
			commit()
			current = &draftQuestion{question: strings.TrimSpace(numberingRe.ReplaceAllString(line, ""))}
			continue
		}

		if current == nil {
			continue
		}
		if loc := answerMarkerRe.FindStringIndex(line); loc != nil {
			if !current.hasAnswer {
				current.answer = strings.TrimSpace(line[loc[1]:])
				current.hasAnswer = true
			}
			continue
		}
		if m := explanationRe.FindStringSubmatch(line); m != nil && current.explanation == "" {
			current.explanation = strings.TrimSpace(m[1])
		}
	}
	commit()

	return questions, len(questions) > 0
}

// stripOptionMarkers removes "A) ".."D) " prefixes only when all four options
// carry them, so options such as "A. Turing" survive alone.
func stripOptionMarkers(options []string) []string {
	for _, o := range options {
		if !optionMarkerRe.MatchString(o) {
			return options
		}
	}
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = strings.TrimSpace(optionMarkerRe.ReplaceAllString(o, ""))
	}
	return out
}
