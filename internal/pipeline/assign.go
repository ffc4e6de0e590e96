package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"lessonmap/internal"
	"lessonmap/internal/util"
)

var (
	ErrDuplicateShortID = errors.New("duplicate short id")
	ErrDuplicateLongID  = errors.New("duplicate long id")
)

// AssignIDs fixes the short id of every record, checks uniqueness of both ids,
// derives cover image names and sorts records by short id. Records must be in
// source order.
func AssignIDs(records []internal.LessonRecord, policy internal.IDPolicy) error {
	switch policy {
	case internal.IDPolicySequential:
		for i := range records {
			records[i].ShortID = i + 1
		}
	case internal.IDPolicyDirect:
	default:
		return fmt.Errorf("unsupported id policy %q", policy)
	}

	byShort := make(map[int]int, len(records))
	byLong := make(map[string]int, len(records))
	for _, rec := range records {
		if line, dup := byShort[rec.ShortID]; dup {
			return fmt.Errorf("%w %d on lines %d and %d", ErrDuplicateShortID, rec.ShortID, line, rec.LineNo)
		}
		byShort[rec.ShortID] = rec.LineNo
		if line, dup := byLong[rec.LongID]; dup {
			return fmt.Errorf("%w %q on lines %d and %d", ErrDuplicateLongID, rec.LongID, line, rec.LineNo)
		}
		byLong[rec.LongID] = rec.LineNo
	}

	for i := range records {
		records[i].CoverImage = util.CoverImageName(records[i].Title, records[i].ShortID)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ShortID < records[j].ShortID })
	return nil
}

func MappingEntries(records []internal.LessonRecord) []internal.MappingEntry {
	out := make([]internal.MappingEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.MappingEntry())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ShortID < out[j].ShortID })
	return out
}
