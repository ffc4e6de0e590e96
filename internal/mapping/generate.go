package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"lessonmap/internal"
)

type Options struct {
	Rule        Rule
	Profile     string
	GeneratedAt time.Time
}

const moduleTemplate = `// Code generated by lessonmap. DO NOT EDIT.
{{- if .GeneratedAt}}
// Generated: {{.GeneratedAt}}
{{- end}}
{{- if .Profile}}
// Profile: {{.Profile}}
{{- end}}

export interface LessonMapping {
  shortId: number;
  longId: string;
  title: string;
}

export type LessonIdFormat = 'short' | 'long' | 'invalid';

const ID_DELIMITER = {{jsstr .Delimiter}};
const MIN_LONG_ID_LENGTH = {{.MinLongLength}};

export const LESSON_MAPPINGS: LessonMapping[] = [
{{- range .Entries}}
  { shortId: {{.ShortID}}, longId: {{jsstr .LongID}}, title: {{jsstr .Title}} },
{{- end}}
];

export function getShortIdFromLongId(longId: string): number | undefined {
  const exact = LESSON_MAPPINGS.find((m) => m.longId === longId);
  if (exact) {
    return exact.shortId;
  }
{{- if .Fuzzy}}
  if (!longId) {
    return undefined;
  }
  const partial = LESSON_MAPPINGS.find((m) => m.longId.includes(longId) || longId.includes(m.longId));
  return partial ? partial.shortId : undefined;
{{- else}}
  return undefined;
{{- end}}
}

export function getLongIdFromShortId(shortId: number): string | undefined {
  const found = LESSON_MAPPINGS.find((m) => m.shortId === shortId);
  return found ? found.longId : undefined;
}

export function detectIdFormat(id: string): LessonIdFormat {
  if (/^[0-9]+$/.test(id)) {
    return 'short';
  }
  if (id.length > 0 && (id.includes(ID_DELIMITER) || Array.from(id).length > MIN_LONG_ID_LENGTH)) {
    return 'long';
  }
  return 'invalid';
}

export function resolveLessonId(id: string): number | undefined {
  switch (detectIdFormat(id)) {
    case 'short': {
      const shortId = parseInt(id, 10);
      return getLongIdFromShortId(shortId) !== undefined ? shortId : undefined;
    }
    case 'long':
      return getShortIdFromLongId(id);
    default:
      return undefined;
  }
}
`

var moduleTmpl = template.Must(template.New("lessonMapping").Funcs(template.FuncMap{
	"jsstr": jsString,
}).Parse(moduleTemplate))

type moduleData struct {
	GeneratedAt   string
	Profile       string
	Delimiter     string
	MinLongLength int
	Fuzzy         bool
	Entries       []internal.MappingEntry
}

// Generate renders the TypeScript mapping module. The output only depends on
// entries and opts, so identical inputs give identical bytes.
func Generate(entries []internal.MappingEntry, opts Options) ([]byte, error) {
	sorted := make([]internal.MappingEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ShortID < sorted[j].ShortID })

	data := moduleData{
		Profile:       opts.Profile,
		Delimiter:     opts.Rule.Delimiter,
		MinLongLength: opts.Rule.MinLongLength,
		Fuzzy:         opts.Rule.FuzzyFallback,
		Entries:       sorted,
	}
	if !opts.GeneratedAt.IsZero() {
		data.GeneratedAt = opts.GeneratedAt.UTC().Format(time.RFC3339)
	}

	var buf bytes.Buffer
	if err := moduleTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render mapping module: %w", err)
	}
	return buf.Bytes(), nil
}

// jsString quotes s as a JavaScript string literal. JSON string syntax is a
// subset of it once U+2028 and U+2029 are escaped, which encoding/json does.
func jsString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
