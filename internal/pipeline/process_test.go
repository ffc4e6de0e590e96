package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lessonmap/internal"
	"lessonmap/internal/storage"
)

const scenarioCSV = "lesson_id_new,lesson_id,title,description,text\n" +
	"5,topic__unit_01,Intro,A short intro,Body\n" +
	"6,topic__unit_02,,Untitled,Other body\n"

type memLedger struct {
	prev map[string]int
	runs []internal.RunRow
	sets [][]internal.AssignmentRow
}

func (m *memLedger) PreviousAssignments() (map[string]int, error) { return m.prev, nil }

func (m *memLedger) SaveRun(run internal.RunRow, assignments []internal.AssignmentRow) error {
	m.runs = append(m.runs, run)
	m.sets = append(m.sets, assignments)
	return nil
}

type fixture struct {
	dir  string
	opts Options
}

func newFixture(t *testing.T, profile, input string) fixture {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "data", "lessons.csv")
	if err := os.MkdirAll(filepath.Dir(in), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	return fixture{dir: dir, opts: Options{
		Profile:          mustProfile(t, profile),
		InputPath:        in,
		ContentStorePath: filepath.Join(dir, "server", "data", "lessons.json"),
		MappingPaths: []string{
			filepath.Join(dir, "server", "src", "data", "lessonMapping.ts"),
			filepath.Join(dir, "client", "src", "data", "lessonMapping.ts"),
		},
	}}
}

func fixedService(ledger Ledger, at time.Time) *ImportService {
	s := NewImportService(ledger)
	s.now = func() time.Time { return at }
	return s
}

func TestRunScenario(t *testing.T) {
	fx := newFixture(t, "direct", scenarioCSV)
	ledger := &memLedger{}
	res, err := fixedService(ledger, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)).Run(fx.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Counts.Processed != 2 || res.Counts.Accepted != 1 || res.Counts.Reasons[internal.SkipMissingTitle] != 1 {
		t.Fatalf("counts=%+v", res.Counts)
	}
	if len(res.Written) != 3 {
		t.Fatalf("written=%v", res.Written)
	}

	store, err := LoadContentStore(fx.opts.ContentStorePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Lessons) != 1 {
		t.Fatalf("lessons=%+v", store.Lessons)
	}
	l := store.Lessons[0]
	if l.ID != 5 || l.LongID != "topic__unit_01" || l.Title != "Intro" || l.Description != "A short intro" || l.CourseID != 1 || l.CoverImage != "intro.jpg" {
		t.Fatalf("lesson=%+v", l)
	}
	if len(l.Pages) != 1 || l.Pages[0].Title != "Content" || l.Pages[0].Content != "Body" {
		t.Fatalf("pages=%+v", l.Pages)
	}

	module, err := os.ReadFile(fx.opts.MappingPaths[0])
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(module), "{ shortId: ") != 1 || !strings.Contains(string(module), `{ shortId: 5, longId: "topic__unit_01", title: "Intro" }`) {
		t.Fatalf("module:\n%s", module)
	}
	client, _ := os.ReadFile(fx.opts.MappingPaths[1])
	if !bytes.Equal(module, client) {
		t.Fatal("mapping destinations differ")
	}

	var skipped bool
	for _, ev := range res.Events {
		if ev.Message == "row skipped" && ev.LineNo == 3 && ev.Fields["reason"] == string(internal.SkipMissingTitle) {
			skipped = true
		}
	}
	if !skipped {
		t.Fatalf("no skip event for line 3: %+v", res.Events)
	}

	if len(ledger.runs) != 1 || ledger.runs[0].Status != "committed" || len(ledger.sets[0]) != 1 {
		t.Fatalf("ledger=%+v", ledger)
	}

	report, err := Verify(fx.opts.ContentStorePath, fx.opts.MappingPaths, RuleFor(fx.opts.Profile))
	if err != nil || !report.OK() {
		t.Fatalf("verify: %+v %v", report, err)
	}
}

func TestRunIdempotent(t *testing.T) {
	fx := newFixture(t, "direct", scenarioCSV)
	svc := fixedService(nil, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

	if _, err := svc.Run(fx.opts); err != nil {
		t.Fatal(err)
	}
	first := readAll(t, fx.opts)
	if _, err := svc.Run(fx.opts); err != nil {
		t.Fatal(err)
	}
	second := readAll(t, fx.opts)
	for path, blob := range first {
		if !bytes.Equal(blob, second[path]) {
			t.Fatalf("%s changed between identical runs", path)
		}
	}
}

func TestRunDryRun(t *testing.T) {
	fx := newFixture(t, "direct", scenarioCSV)
	fx.opts.DryRun = true
	ledger := &memLedger{}
	res, err := fixedService(ledger, time.Now()).Run(fx.opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || len(res.Written) != 0 {
		t.Fatalf("res=%+v", res)
	}
	if _, err := os.Stat(fx.opts.ContentStorePath); !os.IsNotExist(err) {
		t.Fatalf("content store written on dry run: %v", err)
	}
	if len(ledger.runs) != 0 {
		t.Fatal("dry run recorded in ledger")
	}
}

func TestRunFailureWritesNothing(t *testing.T) {
	fx := newFixture(t, "direct", scenarioCSV)
	if err := os.MkdirAll(filepath.Dir(fx.opts.ContentStorePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fx.opts.ContentStorePath, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}
	blocker := filepath.Join(fx.dir, "client")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := &memLedger{}
	_, err := fixedService(ledger, time.Now()).Run(fx.opts)
	if err == nil {
		t.Fatal("expected commit error")
	}
	got, _ := os.ReadFile(fx.opts.ContentStorePath)
	if string(got) != "previous" {
		t.Fatalf("content store modified: %q", got)
	}
	if _, err := os.Stat(fx.opts.MappingPaths[0]); !os.IsNotExist(err) {
		t.Fatal("server mapping written after failed commit")
	}
	if len(ledger.runs) != 1 || ledger.runs[0].Status != "failed" || ledger.sets[0] != nil {
		t.Fatalf("ledger=%+v", ledger)
	}
}

func TestRunDuplicateShortID(t *testing.T) {
	input := "lesson_id_new,lesson_id,title,text\n" +
		"5,a__one,One,x\n" +
		"5,a__two,Two,y\n"
	fx := newFixture(t, "direct", input)
	_, err := fixedService(nil, time.Now()).Run(fx.opts)
	if !errors.Is(err, ErrDuplicateShortID) {
		t.Fatalf("err=%v", err)
	}
	if _, err := os.Stat(fx.opts.ContentStorePath); !os.IsNotExist(err) {
		t.Fatal("outputs written after duplicate id")
	}
}

func TestRunSequentialWithSummary(t *testing.T) {
	input := "Lesson ID,Title,Content\n" +
		"storytelling__arc,Story Arc,\"Part one\n\n\n\nPart two\"\n" +
		"negotiation__anchors,Anchors,Set the anchor\n"
	fx := newFixture(t, "sequential", input)
	fx.opts.SummaryPath = filepath.Join(fx.dir, "INTEGRATION_SUMMARY.md")

	res, err := fixedService(nil, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)).Run(fx.opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 || res.Records[0].ShortID != 1 || res.Records[1].ShortID != 2 {
		t.Fatalf("records=%+v", res.Records)
	}
	if res.Records[0].Content != "Part one\n\nPart two" {
		t.Fatalf("content=%q", res.Records[0].Content)
	}
	summary, err := os.ReadFile(fx.opts.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(summary), "### Course 8 (2 lessons)") || !strings.Contains(string(summary), "| 2 | negotiation__anchors | Anchors |") {
		t.Fatalf("summary:\n%s", summary)
	}
}

func TestRunBackup(t *testing.T) {
	fx := newFixture(t, "archive", scenarioCSV)
	fx.opts.Backup = true
	if err := os.MkdirAll(filepath.Dir(fx.opts.ContentStorePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fx.opts.ContentStorePath, []byte(`{"lessons":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	res, err := fixedService(nil, at).Run(fx.opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.BackupPath != BackupPath(fx.opts.ContentStorePath, at) {
		t.Fatalf("backup=%q", res.BackupPath)
	}
	old, _ := os.ReadFile(res.BackupPath)
	if string(old) != `{"lessons":[]}` {
		t.Fatalf("backup content=%q", old)
	}
}

func TestRunDriftWarning(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fx := newFixture(t, "direct", scenarioCSV)
	svc := fixedService(db, time.Now())
	if _, err := svc.Run(fx.opts); err != nil {
		t.Fatal(err)
	}

	moved := strings.Replace(scenarioCSV, "5,topic__unit_01", "8,topic__unit_01", 1)
	if err := os.WriteFile(fx.opts.InputPath, []byte(moved), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Run(fx.opts)
	if err != nil {
		t.Fatal(err)
	}
	var drift *internal.Event
	for i, ev := range res.Events {
		if ev.Message == "short id changed since last run" {
			drift = &res.Events[i]
		}
	}
	if drift == nil || drift.Fields["was"] != 5 || drift.Fields["now"] != 8 {
		t.Fatalf("drift=%+v", drift)
	}

	runs, err := db.ListRuns(10)
	if err != nil || len(runs) != 2 {
		t.Fatalf("runs=%v err=%v", runs, err)
	}
}

func readAll(t *testing.T, opts Options) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, p := range append([]string{opts.ContentStorePath}, opts.MappingPaths...) {
		blob, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		out[p] = blob
	}
	return out
}
