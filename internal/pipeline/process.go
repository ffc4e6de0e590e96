package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lessonmap/internal"
	"lessonmap/internal/config"
	"lessonmap/internal/mapping"
)

// Ledger keeps the history of runs and the last committed id assignment.
type Ledger interface {
	PreviousAssignments() (map[string]int, error)
	SaveRun(run internal.RunRow, assignments []internal.AssignmentRow) error
}

type Options struct {
	Profile          config.Profile
	InputPath        string
	ContentStorePath string
	MappingPaths     []string
	SummaryPath      string
	Backup           bool
	DryRun           bool
}

type Result struct {
	RunID      string
	InputPath  string
	InputHash  string
	Records    []internal.LessonRecord
	Counts     internal.RunCounts
	Events     []internal.Event
	Written    []string
	BackupPath string
	Duration   time.Duration
}

type ImportService struct {
	ledger Ledger
	now    func() time.Time
}

// NewImportService returns a service recording runs in ledger. ledger may be
// nil.
func NewImportService(ledger Ledger) *ImportService {
	return &ImportService{ledger: ledger, now: time.Now}
}

// Build parses rows and assigns ids. It performs no I/O. Accepted long ids
// that the lookup rule does not classify as long are reported as warnings.
func Build(rows []internal.Row, profile config.Profile) ([]internal.LessonRecord, internal.RunCounts, []internal.Event, error) {
	var events eventLog
	parser := NewParser(profile)
	records := make([]internal.LessonRecord, 0, len(rows))
	for _, row := range rows {
		rec, reason, ok := parser.Parse(row)
		if !ok {
			fields := []any{"reason", string(reason)}
			if row.Err != nil {
				fields = append(fields, "error", row.Err.Error())
			}
			events.add(internal.LevelWarn, "row skipped", row.LineNo, fields...)
			continue
		}
		records = append(records, rec)
	}
	if err := AssignIDs(records, profile.IDPolicy); err != nil {
		return nil, parser.Counts, events, err
	}
	rule := RuleFor(profile)
	for _, rec := range records {
		if format := mapping.DetectFormat(rec.LongID, rule); format != internal.FormatLong {
			events.add(internal.LevelWarn, "long id will not resolve", rec.LineNo, "longId", rec.LongID, "format", string(format), "shortId", rec.ShortID)
		}
	}
	return records, parser.Counts, events, nil
}

// Run executes one full batch. Outputs are committed all-or-nothing; on error
// nothing under ContentStorePath, MappingPaths or SummaryPath is modified.
func (s *ImportService) Run(opts Options) (Result, error) {
	start := s.now()
	res := Result{RunID: uuid.NewString(), InputPath: opts.InputPath}
	var events eventLog

	finish := func(err error) (Result, error) {
		res.Duration = s.now().Sub(start)
		if err != nil {
			events.add(internal.LevelError, "run failed", 0, "error", err.Error())
		}
		s.record(&res, opts, err, &events)
		res.Events = events
		return res, err
	}

	rows, blob, err := ReadRows(opts.InputPath)
	if blob != nil {
		res.InputHash = HashBytes(blob)
	}
	if err != nil {
		return finish(err)
	}
	events.add(internal.LevelInfo, "input loaded", 0, "path", opts.InputPath, "rows", len(rows), "profile", opts.Profile.Name)

	records, counts, buildEvents, err := Build(rows, opts.Profile)
	events = append(events, buildEvents...)
	res.Counts = counts
	if err != nil {
		return finish(err)
	}
	res.Records = records
	events.add(internal.LevelInfo, "rows parsed", 0, "processed", counts.Processed, "accepted", counts.Accepted, "skipped", counts.Skipped)

	s.checkDrift(records, &events)

	files, err := s.render(records, counts, opts, start)
	if err != nil {
		return finish(err)
	}

	if opts.DryRun {
		events.add(internal.LevelInfo, "dry run, nothing written", 0, "files", len(files))
		return finish(nil)
	}

	if opts.Backup {
		path, err := BackupContentStore(opts.ContentStorePath, start)
		switch {
		case err != nil:
			events.add(internal.LevelWarn, "backup skipped", 0, "path", opts.ContentStorePath, "error", err.Error())
		case path == "":
			events.add(internal.LevelWarn, "backup skipped, no existing content store", 0, "path", opts.ContentStorePath)
		default:
			res.BackupPath = path
			events.add(internal.LevelInfo, "backup written", 0, "path", path)
		}
	}

	if err := Commit(files); err != nil {
		return finish(err)
	}
	for _, f := range files {
		res.Written = append(res.Written, f.Path)
	}
	events.add(internal.LevelInfo, "outputs committed", 0, "lessons", len(records), "files", len(files))
	return finish(nil)
}

func (s *ImportService) render(records []internal.LessonRecord, counts internal.RunCounts, opts Options, at time.Time) ([]StagedFile, error) {
	if strings.TrimSpace(opts.ContentStorePath) == "" {
		return nil, fmt.Errorf("no content store path configured")
	}
	if len(opts.MappingPaths) == 0 {
		return nil, fmt.Errorf("no mapping module destinations configured")
	}

	store, err := RenderContentStore(records)
	if err != nil {
		return nil, err
	}
	files := []StagedFile{{Path: opts.ContentStorePath, Data: store}}

	module, err := mapping.Generate(MappingEntries(records), mapping.Options{
		Rule:        RuleFor(opts.Profile),
		Profile:     opts.Profile.Name,
		GeneratedAt: at,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range opts.MappingPaths {
		files = append(files, StagedFile{Path: p, Data: module})
	}

	if opts.SummaryPath != "" {
		var summary []byte
		if strings.EqualFold(filepath.Ext(opts.SummaryPath), ".xlsx") {
			summary, err = RenderSummaryXLSX(records, counts)
			if err != nil {
				return nil, fmt.Errorf("render summary: %w", err)
			}
		} else {
			summary = RenderSummaryMarkdown(records, counts, at)
		}
		files = append(files, StagedFile{Path: opts.SummaryPath, Data: summary})
	}
	return files, nil
}

func (s *ImportService) checkDrift(records []internal.LessonRecord, events *eventLog) {
	if s.ledger == nil {
		return
	}
	prev, err := s.ledger.PreviousAssignments()
	if err != nil {
		events.add(internal.LevelWarn, "ledger unavailable, id drift not checked", 0, "error", err.Error())
		return
	}
	for _, rec := range records {
		if old, ok := prev[rec.LongID]; ok && old != rec.ShortID {
			events.add(internal.LevelWarn, "short id changed since last run", rec.LineNo, "longId", rec.LongID, "was", old, "now", rec.ShortID)
		}
	}
}

func (s *ImportService) record(res *Result, opts Options, runErr error, events *eventLog) {
	if s.ledger == nil || opts.DryRun {
		return
	}
	run := internal.RunRow{
		RunID:      res.RunID,
		Profile:    opts.Profile.Name,
		InputPath:  opts.InputPath,
		InputHash:  res.InputHash,
		Status:     "committed",
		Counts:     res.Counts,
		DurationMs: res.Duration.Milliseconds(),
	}
	var assignments []internal.AssignmentRow
	if runErr != nil {
		run.Status = "failed"
	} else {
		assignments = make([]internal.AssignmentRow, 0, len(res.Records))
		for _, rec := range res.Records {
			assignments = append(assignments, internal.AssignmentRow{LongID: rec.LongID, ShortID: rec.ShortID, Title: rec.Title})
		}
	}
	if err := s.ledger.SaveRun(run, assignments); err != nil {
		events.add(internal.LevelWarn, "ledger write failed", 0, "error", err.Error())
	}
}

// RuleFor builds the id classification rule of a profile.
func RuleFor(p config.Profile) mapping.Rule {
	return mapping.Rule{
		Delimiter:     p.IDFormat.Delimiter,
		MinLongLength: p.IDFormat.MinLongLength,
		FuzzyFallback: p.FuzzyLongIDFallback,
	}
}

func HashBytes(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

type eventLog []internal.Event

func (l *eventLog) add(level internal.EventLevel, msg string, lineNo int, kv ...any) {
	var fields map[string]any
	if len(kv) > 0 {
		fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			fields[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	*l = append(*l, internal.Event{Level: level, Message: msg, LineNo: lineNo, Fields: fields})
}
