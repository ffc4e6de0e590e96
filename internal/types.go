package internal

type IDPolicy string

const (
	IDPolicyDirect     IDPolicy = "direct"
	IDPolicySequential IDPolicy = "sequential"
)

type NormalizationMode string

const (
	NormalizeFlatten           NormalizationMode = "flatten"
	NormalizePreserveStructure NormalizationMode = "preserve-structure"
)

type IDFormat string

const (
	FormatShort   IDFormat = "short"
	FormatLong    IDFormat = "long"
	FormatInvalid IDFormat = "invalid"
)

type SkipReason string

const (
	SkipMissingTitle   SkipReason = "missing_title"
	SkipMissingLongID  SkipReason = "missing_long_id"
	SkipMissingContent SkipReason = "missing_content"
	SkipInvalidShortID SkipReason = "invalid_short_id"
	SkipMalformedRow   SkipReason = "malformed_row"
)

type EventLevel string

const (
	LevelDebug EventLevel = "debug"
	LevelInfo  EventLevel = "info"
	LevelWarn  EventLevel = "warn"
	LevelError EventLevel = "error"
)

// Event is one diagnostic line produced by a pipeline run. Rendering is left to
// the caller.
type Event struct {
	Level   EventLevel
	Message string
	LineNo  int
	Fields  map[string]any
}

// Row is one record of the tabular input keyed by header name. Err is set
// when the record could not be decoded.
type Row struct {
	LineNo int
	Values map[string]string
	Err    error
}

type LessonRecord struct {
	ShortID     int
	LongID      string
	Title       string
	Description string
	Content     string
	CourseID    int
	CoverImage  string
	LineNo      int
}

type MappingEntry struct {
	ShortID int    `json:"shortId"`
	LongID  string `json:"longId"`
	Title   string `json:"title"`
}

func (r LessonRecord) MappingEntry() MappingEntry {
	return MappingEntry{ShortID: r.ShortID, LongID: r.LongID, Title: r.Title}
}

type RunCounts struct {
	Processed int                `json:"processed"`
	Accepted  int                `json:"accepted"`
	Skipped   int                `json:"skipped"`
	Reasons   map[SkipReason]int `json:"reasons"`
}

func (c *RunCounts) Skip(reason SkipReason) {
	if c.Reasons == nil {
		c.Reasons = map[SkipReason]int{}
	}
	c.Skipped++
	c.Reasons[reason]++
}

// Content store document.

type ContentStore struct {
	Lessons []StoredLesson `json:"lessons"`
}

type StoredLesson struct {
	ID          int          `json:"id"`
	LongID      string       `json:"longId"`
	CourseID    int          `json:"courseId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	CoverImage  string       `json:"coverImage"`
	Pages       []StoredPage `json:"pages"`
}

type StoredPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type RunRow struct {
	ID         int
	RunID      string
	Profile    string
	InputPath  string
	InputHash  string
	Status     string
	Counts     RunCounts
	DurationMs int64
	CreatedAt  string
}

type AssignmentRow struct {
	LongID  string
	ShortID int
	Title   string
}
