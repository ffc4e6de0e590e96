package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/xuri/excelize/v2"

	"lessonmap/internal"
)

const ContentPageTitle = "Content"

func BuildContentStore(records []internal.LessonRecord) internal.ContentStore {
	sorted := make([]internal.LessonRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ShortID < sorted[j].ShortID })

	store := internal.ContentStore{Lessons: make([]internal.StoredLesson, 0, len(sorted))}
	for _, rec := range sorted {
		store.Lessons = append(store.Lessons, internal.StoredLesson{
			ID:          rec.ShortID,
			LongID:      rec.LongID,
			CourseID:    rec.CourseID,
			Title:       rec.Title,
			Description: rec.Description,
			CoverImage:  rec.CoverImage,
			Pages:       []internal.StoredPage{{Title: ContentPageTitle, Content: rec.Content}},
		})
	}
	return store
}

// RenderContentStore serializes records as the content store document:
// two-space indent, HTML characters left as-is, trailing newline.
func RenderContentStore(records []internal.LessonRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(BuildContentStore(records)); err != nil {
		return nil, fmt.Errorf("encode content store: %w", err)
	}
	return buf.Bytes(), nil
}

func LoadContentStore(path string) (internal.ContentStore, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.ContentStore{}, err
	}
	var store internal.ContentStore
	if err := json.Unmarshal(blob, &store); err != nil {
		return internal.ContentStore{}, fmt.Errorf("decode content store %s: %w", path, err)
	}
	return store, nil
}

func StoreEntries(store internal.ContentStore) []internal.MappingEntry {
	out := make([]internal.MappingEntry, 0, len(store.Lessons))
	for _, l := range store.Lessons {
		out = append(out, internal.MappingEntry{ShortID: l.ID, LongID: l.LongID, Title: l.Title})
	}
	return out
}

// RenderSummaryXLSX writes the summary as a workbook with a per-course sheet
// and a sample sheet.
func RenderSummaryXLSX(records []internal.LessonRecord, counts internal.RunCounts) ([]byte, error) {
	s := BuildSummary(records, counts)

	f := excelize.NewFile()
	defer f.Close()

	courses := f.GetSheetName(0)
	if err := f.SetSheetName(courses, "courses"); err != nil {
		return nil, err
	}
	courses = "courses"
	if err := writeRow(f, courses, 1, "course_id", "lessons", "titles", "more"); err != nil {
		return nil, err
	}
	for i, g := range s.Courses {
		if err := writeRow(f, courses, i+2, g.CourseID, g.Count, joinTitles(g.Titles), g.More); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("sample"); err != nil {
		return nil, err
	}
	if err := writeRow(f, "sample", 1, "id", "long_id", "title"); err != nil {
		return nil, err
	}
	for i, rec := range s.Sample {
		if err := writeRow(f, "sample", i+2, rec.ShortID, rec.LongID, rec.Title); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("totals"); err != nil {
		return nil, err
	}
	if err := writeRow(f, "totals", 1, "processed", "accepted", "skipped"); err != nil {
		return nil, err
	}
	if err := writeRow(f, "totals", 2, counts.Processed, counts.Accepted, counts.Skipped); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
