package mapping

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"lessonmap/internal"
	"lessonmap/internal/util"
)

// Rule configures id classification and long-id lookup.
type Rule struct {
	Delimiter     string
	MinLongLength int
	// FuzzyFallback enables substring matching in both directions when an
	// exact long-id lookup fails. It can match the wrong lesson when one long
	// id contains another.
	FuzzyFallback bool
}

func DefaultRule() Rule {
	return Rule{Delimiter: "_", MinLongLength: 10}
}

// DetectFormat classifies id: digits only is short, containing the delimiter
// or longer than MinLongLength is long, anything else is invalid.
func DetectFormat(id string, rule Rule) internal.IDFormat {
	if util.IsDigits(id) {
		return internal.FormatShort
	}
	if id == "" {
		return internal.FormatInvalid
	}
	if (rule.Delimiter != "" && strings.Contains(id, rule.Delimiter)) || utf8.RuneCountInString(id) > rule.MinLongLength {
		return internal.FormatLong
	}
	return internal.FormatInvalid
}

// Table answers the same lookups as the generated module.
type Table struct {
	rule    Rule
	entries []internal.MappingEntry
	byLong  map[string]int
	byShort map[int]string
}

func NewTable(entries []internal.MappingEntry, rule Rule) *Table {
	sorted := make([]internal.MappingEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ShortID < sorted[j].ShortID })

	t := &Table{
		rule:    rule,
		entries: sorted,
		byLong:  make(map[string]int, len(sorted)),
		byShort: make(map[int]string, len(sorted)),
	}
	for _, e := range sorted {
		if _, ok := t.byLong[e.LongID]; !ok {
			t.byLong[e.LongID] = e.ShortID
		}
		if _, ok := t.byShort[e.ShortID]; !ok {
			t.byShort[e.ShortID] = e.LongID
		}
	}
	return t
}

func (t *Table) Entries() []internal.MappingEntry {
	return t.entries
}

func (t *Table) ShortFromLong(longID string) (int, bool) {
	if id, ok := t.byLong[longID]; ok {
		return id, true
	}
	if !t.rule.FuzzyFallback || longID == "" {
		return 0, false
	}
	for _, e := range t.entries {
		if strings.Contains(e.LongID, longID) || strings.Contains(longID, e.LongID) {
			return e.ShortID, true
		}
	}
	return 0, false
}

func (t *Table) LongFromShort(shortID int) (string, bool) {
	id, ok := t.byShort[shortID]
	return id, ok
}

func (t *Table) DetectFormat(id string) internal.IDFormat {
	return DetectFormat(id, t.rule)
}

// Resolve classifies id and returns the short id it refers to.
func (t *Table) Resolve(id string) (int, bool) {
	switch t.DetectFormat(id) {
	case internal.FormatShort:
		shortID, err := strconv.Atoi(id)
		if err != nil {
			return 0, false
		}
		if _, ok := t.LongFromShort(shortID); !ok {
			return 0, false
		}
		return shortID, true
	case internal.FormatLong:
		return t.ShortFromLong(id)
	default:
		return 0, false
	}
}
