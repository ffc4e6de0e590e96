package util

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"lessonmap/internal"
)

const TruncationMarker = "..."

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reTrailingWS = regexp.MustCompile(`[ \t\f\v]+\n`)
	reBlankRuns  = regexp.MustCompile(`\n{3,}`)
	reHTMLTag    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	reNonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize applies quote un-escaping and then the whitespace policy of mode.
func Normalize(input string, mode internal.NormalizationMode, unescapeSingle bool) string {
	s := UnescapeQuotes(input, unescapeSingle)
	if mode == internal.NormalizePreserveStructure {
		return PreserveStructure(s)
	}
	return Flatten(s)
}

func UnescapeQuotes(input string, single bool) string {
	s := strings.ReplaceAll(input, `""`, `"`)
	if single {
		s = strings.ReplaceAll(s, `''`, `'`)
	}
	return s
}

func Flatten(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// PreserveStructure keeps line breaks, drops trailing whitespace on every line
// and squeezes runs of blank lines down to a single blank line.
func PreserveStructure(input string) string {
	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = reTrailingWS.ReplaceAllString(s+"\n", "\n")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.Trim(s, "\n")
}

// Truncate cuts input to at most budget runes. A cut string ends with the
// truncation marker and is exactly budget runes long.
func Truncate(input string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(input) <= budget {
		return input
	}
	keep := budget - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	r := []rune(input)
	return string(r[:keep]) + TruncationMarker
}

func LooksLikeHTML(input string) bool {
	return reHTMLTag.MatchString(input)
}

// HTMLToText returns the visible text of an HTML fragment. Plain text is
// returned unchanged.
func HTMLToText(input string) string {
	if !LooksLikeHTML(input) {
		return input
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return reHTMLTag.ReplaceAllString(input, " ")
	}
	parts := []string{}
	doc.Find("body").Contents().Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

// DeriveDescription returns the supplied description when present, otherwise a
// summary of content. Both are flattened and bounded by budget.
func DeriveDescription(supplied, content string, budget int) string {
	src := strings.TrimSpace(supplied)
	if src == "" {
		src = content
	}
	return Truncate(Flatten(HTMLToText(src)), budget)
}

func CoverImageName(title string, shortID int) string {
	slug := strings.Trim(reNonSlug.ReplaceAllString(strings.ToLower(title), "_"), "_")
	if slug == "" {
		return fmt.Sprintf("lesson_%d.jpg", shortID)
	}
	return slug + ".jpg"
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
