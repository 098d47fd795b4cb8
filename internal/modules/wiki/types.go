package wiki

import (
	"errors"

	"github.com/wikiquiz/server/internal/models"
)

// ErrNoContent marks markup that has no main content container. The extract
// returned alongside it is best-effort and still usable.
var ErrNoContent = errors.New("article content container not found")

// ArticleExtract is the structured view of one fetched article. It is built
// once by Extract and not modified afterwards.
type ArticleExtract struct {
	URL         string
	Title       string
	Summary     string
	Sections    []string
	Entities    models.Entities
	ContentText string
	RawMarkup   string
}

const (
	defaultTitle   = "Unknown Title"
	defaultSummary = "No summary available"

	minSummaryRunes = 100
	maxSummaryRunes = 500
	maxSections     = 10
	maxContentRunes = 8000
	maxBoldScan     = 10
)
