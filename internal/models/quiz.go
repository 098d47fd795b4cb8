package models

// Entity categories. Every extract carries all four buckets.
const (
	EntityPeople        = "people"
	EntityOrganizations = "organizations"
	EntityLocations     = "locations"
	EntityConcepts      = "concepts"
)

// EntityCategories lists the buckets in a stable order.
var EntityCategories = []string{EntityPeople, EntityOrganizations, EntityLocations, EntityConcepts}

// Entities maps a category to its deduplicated entity names.
type Entities map[string][]string

// NewEntities returns an Entities value with every category present and empty.
func NewEntities() Entities {
	e := make(Entities, len(EntityCategories))
	for _, c := range EntityCategories {
		e[c] = []string{}
	}
	return e
}

// Difficulty levels accepted on a question.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QuestionsPerQuiz is the fixed length of every stored quiz.
const QuestionsPerQuiz = 8

// OptionsPerQuestion is the fixed option count of every question.
const OptionsPerQuestion = 4

// MaxRelatedTopics caps QuizModel.RelatedTopics.
const MaxRelatedTopics = 5

// Question is one multiple-choice item. Answer holds the literal text of the
// correct option, or "" when the model's answer could not be resolved.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Difficulty  string   `json:"difficulty"`
	Explanation string   `json:"explanation"`
}

// QuizModel is one generated quiz, unique per article URL.
type QuizModel struct {
	Base
	URL           string      `json:"url"                   gorm:"size:512;uniqueIndex;not null"`
	Title         string      `json:"title"                 gorm:"size:512;not null"`
	Summary       string      `json:"summary"               gorm:"type:text"`
	KeyEntities   Entities    `json:"key_entities"          gorm:"size:16777216;serializer:json"`
	Sections      StringArray `json:"sections"              gorm:"size:16777216"`
	Quiz          []Question  `json:"quiz"                  gorm:"size:16777216;serializer:json"`
	RelatedTopics StringArray `json:"related_topics"        gorm:"size:16777216"`
	RawHTML       string      `json:"-"                     gorm:"column:raw_html;size:16777216"`
	ArchiveKey    string      `json:"archive_key,omitempty" gorm:"size:255"`
}

func (QuizModel) TableName() string { return "quiz_records" }
