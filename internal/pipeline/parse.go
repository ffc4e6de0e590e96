package pipeline

import (
	"sort"
	"strings"

	"lessonmap/internal"
	"lessonmap/internal/config"
	"lessonmap/internal/util"
)

// Parser turns input rows into lesson records according to a profile.
type Parser struct {
	profile config.Profile
	Counts  internal.RunCounts
}

func NewParser(profile config.Profile) *Parser {
	return &Parser{profile: profile, Counts: internal.RunCounts{Reasons: map[internal.SkipReason]int{}}}
}

// Parse returns the record for row, or ok=false with the reason the row was
// skipped. Short ids are left at zero under the sequential policy.
func (p *Parser) Parse(row internal.Row) (rec internal.LessonRecord, reason internal.SkipReason, ok bool) {
	p.Counts.Processed++
	defer func() {
		if ok {
			p.Counts.Accepted++
		} else {
			p.Counts.Skip(reason)
		}
	}()

	if row.Err != nil {
		return internal.LessonRecord{}, internal.SkipMalformedRow, false
	}

	a := p.profile.Aliases
	title := util.Flatten(util.UnescapeQuotes(lookupField(row, a.Title), p.profile.UnescapeSingleQuotes))
	if title == "" {
		return internal.LessonRecord{}, internal.SkipMissingTitle, false
	}
	longID := strings.TrimSpace(lookupField(row, a.LongID))
	if longID == "" {
		return internal.LessonRecord{}, internal.SkipMissingLongID, false
	}
	content := util.Normalize(lookupField(row, a.Content), p.profile.Normalization, p.profile.UnescapeSingleQuotes)
	if content == "" {
		return internal.LessonRecord{}, internal.SkipMissingContent, false
	}

	shortID := 0
	if p.profile.IDPolicy == internal.IDPolicyDirect {
		v, valid := util.ParseID(lookupField(row, a.ShortID))
		if !valid {
			return internal.LessonRecord{}, internal.SkipInvalidShortID, false
		}
		shortID = v
	}

	courseID, valid := util.ParseID(lookupField(row, a.CourseID))
	if !valid {
		courseID = DeriveCourseID(longID, p.profile.Courses)
	}

	supplied := util.UnescapeQuotes(lookupField(row, a.Description), p.profile.UnescapeSingleQuotes)

	return internal.LessonRecord{
		ShortID:     shortID,
		LongID:      longID,
		Title:       title,
		Description: util.DeriveDescription(supplied, content, p.profile.DescriptionBudget),
		Content:     content,
		CourseID:    courseID,
		LineNo:      row.LineNo,
	}, "", true
}

// DeriveCourseID maps the long id prefix to a course through the ordered
// keyword table.
func DeriveCourseID(longID string, table config.CourseTable) int {
	prefix := longID
	if table.Delimiter != "" {
		prefix = strings.SplitN(longID, table.Delimiter, 2)[0]
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	for _, kw := range table.Keywords {
		k := strings.ToLower(strings.TrimSpace(kw.Keyword))
		if k != "" && strings.Contains(prefix, k) {
			return kw.CourseID
		}
	}
	return table.Fallback
}

// lookupField returns the first non-empty value among aliases. Exact header
// names are tried before a case-insensitive pass.
func lookupField(row internal.Row, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := row.Values[alias]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	keys := make([]string, 0, len(row.Values))
	for key := range row.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, alias := range aliases {
		for _, key := range keys {
			v := row.Values[key]
			if strings.EqualFold(strings.TrimSpace(key), strings.TrimSpace(alias)) && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}
