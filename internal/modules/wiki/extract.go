package wiki

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/wikiquiz/server/internal/models"
	"github.com/wikiquiz/server/internal/pkg/apperr"
)

var (
	skippedSectionWords = []string{"references", "external links", "see also", "notes"}

	// Stripped from the body copy before taking its text.
	contentNoiseSelector = ".navbox, .infobox, .reference, .mw-editsection, .reflist, sup.reference, style, script"

	whitespaceRe = regexp.MustCompile(`\s+`)
	editMarkRe   = regexp.MustCompile(`\[\s*edit\s*\]`)
	birthPlaceRe = regexp.MustCompile(`\bin\s+([^,\n]+)`)

	organizationKeywords = []string{"university", "college", "institute"}
	roleKeywords         = []string{"professor", "scientist", "engineer"}
	affiliationKeys      = []string{"alma mater", "education", "affiliation", "institutions"}
)

// Extract parses article markup into an ArticleExtract. When the main content
// container is missing it returns a partial extract together with an
// extraction error wrapping ErrNoContent; callers may log and continue.
func Extract(pageURL, markup string) (*ArticleExtract, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, apperr.Extraction("Failed to parse article markup", err)
	}

	out := &ArticleExtract{
		URL:       pageURL,
		Title:     extractTitle(doc),
		Summary:   defaultSummary,
		Sections:  []string{},
		Entities:  models.NewEntities(),
		RawMarkup: markup,
	}

	content := doc.Find("div#mw-content-text").First()
	if content.Length() == 0 {
		content = doc.Find("#mw-content-text").First()
	}
	if content.Length() == 0 {
		return out, apperr.Extraction("Article content not found", ErrNoContent)
	}

	out.Summary = extractSummary(content)
	out.Sections = extractSections(content)
	out.Entities = extractEntities(content)
	out.ContentText = extractContentText(content)
	return out, nil
}

func extractTitle(doc *goquery.Document) string {
	heading := doc.Find("h1.firstHeading").First()
	if heading.Length() == 0 {
		heading = doc.Find("h1#firstHeading").First()
	}
	if title := cleanText(heading.Text()); title != "" {
		return title
	}
	return defaultTitle
}

func extractSummary(content *goquery.Selection) string {
	summary := ""
	content.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) >= minSummaryRunes {
			summary = text
			return false
		}
		return true
	})
	if summary == "" {
		return defaultSummary
	}
	return truncateRunes(summary, maxSummaryRunes, "...")
}

func extractSections(content *goquery.Selection) []string {
	sections := make([]string, 0, maxSections)
	content.Find("h2, h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		heading := h.Clone()
		heading.Find(".mw-editsection").Remove()
		text := cleanText(editMarkRe.ReplaceAllString(heading.Text(), ""))
		if text == "" || isSkippedSection(text) {
			return true
		}
		sections = append(sections, text)
		return len(sections) < maxSections
	})
	return sections
}

func isSkippedSection(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range skippedSectionWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// extractEntities is a keyword heuristic over the infobox and bold text of
// the article body; navigation and footer chrome is never scanned.
// Output is best-effort metadata.
func extractEntities(content *goquery.Selection) models.Entities {
	buckets := map[string]map[string]struct{}{}
	add := func(category, value string) {
		value = cleanText(value)
		if value == "" {
			return
		}
		if buckets[category] == nil {
			buckets[category] = map[string]struct{}{}
		}
		buckets[category][value] = struct{}{}
	}

	content.Find("table.infobox tr").Each(func(_ int, row *goquery.Selection) {
		key := strings.ToLower(cleanText(row.Find("th").First().Text()))
		cell := row.Find("td").First()
		if key == "" || cell.Length() == 0 {
			return
		}
		value := cleanText(cell.Text())

		if strings.Contains(key, "born") || strings.Contains(key, "died") {
			if m := birthPlaceRe.FindStringSubmatch(value); m != nil {
				add(models.EntityLocations, m[1])
			}
			return
		}
		for _, k := range affiliationKeys {
			if strings.Contains(key, k) {
				for _, org := range splitCellValues(cell) {
					add(models.EntityOrganizations, org)
				}
				return
			}
		}
	})

	bolds := content.Find("b")
	if bolds.Length() > maxBoldScan {
		bolds = bolds.Slice(0, maxBoldScan)
	}
	bolds.Each(func(_ int, b *goquery.Selection) {
		text := cleanText(b.Text())
		n := utf8.RuneCountInString(text)
		if n <= 2 || n >= 50 {
			return
		}
		lower := strings.ToLower(text)
		if containsAny(lower, organizationKeywords) {
			add(models.EntityOrganizations, text)
		} else if containsAny(lower, roleKeywords) {
			add(models.EntityPeople, text)
		}
	})

	out := models.NewEntities()
	for category, set := range buckets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[category] = values
	}
	return out
}

// splitCellValues returns one entry per list item or line break in an infobox cell.
func splitCellValues(cell *goquery.Selection) []string {
	if items := cell.Find("li"); items.Length() > 0 {
		return items.Map(func(_ int, li *goquery.Selection) string { return li.Text() })
	}
	cell = cell.Clone()
	cell.Find("br").ReplaceWithHtml("\n")
	cell.Find("sup").Remove()
	return strings.Split(cell.Text(), "\n")
}

func extractContentText(content *goquery.Selection) string {
	body := content.Clone()
	body.Find(contentNoiseSelector).Remove()
	text := whitespaceRe.ReplaceAllString(body.Text(), " ")
	text = strings.ReplaceAll(text, "[edit]", "")
	text = strings.TrimSpace(text)
	return truncateRunes(text, maxContentRunes, "")
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// truncateRunes cuts s to limit runes and appends suffix when it was cut.
func truncateRunes(s string, limit int, suffix string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + suffix
}
