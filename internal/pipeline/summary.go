package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lessonmap/internal"
)

const (
	summaryTitlesPerCourse = 5
	summarySampleSize      = 10
)

type Summary struct {
	Counts  internal.RunCounts
	Courses []CourseGroup
	Sample  []internal.LessonRecord
}

type CourseGroup struct {
	CourseID int
	Count    int
	Titles   []string
	More     int
}

func BuildSummary(records []internal.LessonRecord, counts internal.RunCounts) Summary {
	sorted := make([]internal.LessonRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ShortID < sorted[j].ShortID })

	groups := map[int]*CourseGroup{}
	for _, rec := range sorted {
		g, ok := groups[rec.CourseID]
		if !ok {
			g = &CourseGroup{CourseID: rec.CourseID}
			groups[rec.CourseID] = g
		}
		g.Count++
		if len(g.Titles) < summaryTitlesPerCourse {
			g.Titles = append(g.Titles, rec.Title)
		} else {
			g.More++
		}
	}

	s := Summary{Counts: counts}
	for _, g := range groups {
		s.Courses = append(s.Courses, *g)
	}
	sort.Slice(s.Courses, func(i, j int) bool { return s.Courses[i].CourseID < s.Courses[j].CourseID })

	if len(sorted) > summarySampleSize {
		sorted = sorted[:summarySampleSize]
	}
	s.Sample = sorted
	return s
}

func RenderSummaryMarkdown(records []internal.LessonRecord, counts internal.RunCounts, generatedAt time.Time) []byte {
	s := BuildSummary(records, counts)

	var b strings.Builder
	b.WriteString("# Lesson Integration Summary\n\n")
	if !generatedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Rows processed: %d\n", counts.Processed)
	fmt.Fprintf(&b, "- Lessons accepted: %d\n", counts.Accepted)
	fmt.Fprintf(&b, "- Rows skipped: %d\n", counts.Skipped)
	for _, reason := range sortedReasons(counts.Reasons) {
		fmt.Fprintf(&b, "  - %s: %d\n", reason, counts.Reasons[reason])
	}

	b.WriteString("\n## Lessons by course\n")
	for _, g := range s.Courses {
		fmt.Fprintf(&b, "\n### Course %d (%d lessons)\n\n", g.CourseID, g.Count)
		for _, t := range g.Titles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		if g.More > 0 {
			fmt.Fprintf(&b, "- ... and %d more\n", g.More)
		}
	}

	b.WriteString("\n## Sample\n\n")
	b.WriteString("| id | longId | title |\n")
	b.WriteString("|---:|---|---|\n")
	for _, rec := range s.Sample {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", rec.ShortID, escapeCell(rec.LongID), escapeCell(rec.Title))
	}
	return []byte(b.String())
}

func sortedReasons(reasons map[internal.SkipReason]int) []internal.SkipReason {
	out := make([]internal.SkipReason, 0, len(reasons))
	for r, n := range reasons {
		if n > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func joinTitles(titles []string) string {
	return strings.Join(titles, "; ")
}
