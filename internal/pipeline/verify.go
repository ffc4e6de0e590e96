package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"lessonmap/internal"
	"lessonmap/internal/mapping"
)

type VerifyReport struct {
	Lessons  int
	Problems []string
}

func (r VerifyReport) OK() bool { return len(r.Problems) == 0 }

// Verify checks committed outputs: every mapping destination holds the same
// bytes, lesson ids are unique and ascending, and each lesson has exactly one
// Content page. Every lesson must resolve back to its id from both its short
// and long form under rule.
func Verify(contentStorePath string, mappingPaths []string, rule mapping.Rule) (VerifyReport, error) {
	var report VerifyReport

	store, err := LoadContentStore(contentStorePath)
	if err != nil {
		return report, err
	}
	report.Lessons = len(store.Lessons)
	report.Problems = append(report.Problems, checkStore(store)...)
	report.Problems = append(report.Problems, checkRoundTrip(store, rule)...)

	var first []byte
	firstPath := ""
	for _, p := range mappingPaths {
		blob, err := os.ReadFile(p)
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("mapping module %s: %v", p, err))
			continue
		}
		if first == nil {
			first, firstPath = blob, p
			continue
		}
		if !bytes.Equal(first, blob) {
			report.Problems = append(report.Problems, fmt.Sprintf("mapping module %s differs from %s", p, firstPath))
		}
	}
	return report, nil
}

func checkStore(store internal.ContentStore) []string {
	var problems []string
	seen := map[int]bool{}
	seenLong := map[string]bool{}
	prev := 0
	for i, l := range store.Lessons {
		if seen[l.ID] {
			problems = append(problems, fmt.Sprintf("duplicate id %d", l.ID))
		}
		seen[l.ID] = true
		if seenLong[l.LongID] {
			problems = append(problems, fmt.Sprintf("duplicate longId %q", l.LongID))
		}
		seenLong[l.LongID] = true
		if i > 0 && l.ID < prev {
			problems = append(problems, fmt.Sprintf("id %d out of order after %d", l.ID, prev))
		}
		prev = l.ID
		if len(l.Pages) != 1 || l.Pages[0].Title != ContentPageTitle {
			problems = append(problems, fmt.Sprintf("lesson %d must have exactly one %q page", l.ID, ContentPageTitle))
		}
	}
	return problems
}

func checkRoundTrip(store internal.ContentStore, rule mapping.Rule) []string {
	var problems []string
	table := mapping.NewTable(StoreEntries(store), rule)
	for _, l := range store.Lessons {
		if got, ok := table.Resolve(strconv.Itoa(l.ID)); !ok || got != l.ID {
			problems = append(problems, fmt.Sprintf("id %d does not resolve to itself", l.ID))
		}
		if got, ok := table.Resolve(l.LongID); !ok || got != l.ID {
			problems = append(problems, fmt.Sprintf("longId %q (%s) does not resolve to %d", l.LongID, table.DetectFormat(l.LongID), l.ID))
		}
	}
	return problems
}
