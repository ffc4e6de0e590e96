package config

import (
	"os"
	"path/filepath"
	"testing"

	"lessonmap/internal"
)

func TestEmbeddedProfiles(t *testing.T) {
	profiles, err := LoadProfiles("")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"direct", "sequential", "archive"} {
		if _, ok := profiles[name]; !ok {
			t.Fatalf("missing profile %s", name)
		}
	}

	direct := profiles["direct"]
	if direct.IDPolicy != internal.IDPolicyDirect || direct.Normalization != internal.NormalizeFlatten {
		t.Fatalf("direct=%+v", direct)
	}
	if direct.DescriptionBudget != 300 {
		t.Fatalf("budget=%d", direct.DescriptionBudget)
	}
	if direct.Aliases.ShortID[0] != "lesson_id_new" {
		t.Fatalf("shortId aliases=%v", direct.Aliases.ShortID)
	}

	seq := profiles["sequential"]
	if seq.IDPolicy != internal.IDPolicySequential || seq.DescriptionBudget != 200 || !seq.UnescapeSingleQuotes {
		t.Fatalf("sequential=%+v", seq)
	}
	if seq.IDFormat.MinLongLength != 10 || seq.Aliases.LongID[0] != "legacy_id" {
		t.Fatalf("sequential=%+v", seq)
	}

	if len(direct.Courses.Keywords) != 8 || direct.Courses.Keywords[0].Keyword != "communication_skills" || direct.Courses.Fallback != 1 {
		t.Fatalf("direct courses=%+v", direct.Courses)
	}
	for _, name := range []string{"sequential", "archive"} {
		c := profiles[name].Courses
		if c.Fallback != 8 || len(c.Keywords) != 0 {
			t.Fatalf("%s courses=%+v", name, c)
		}
	}

	for name, p := range profiles {
		if p.FuzzyLongIDFallback {
			t.Fatalf("profile %s enables fuzzy fallback", name)
		}
	}
}

func TestLoadProfileUnknown(t *testing.T) {
	_, err := LoadProfile(Config{Profile: "nope"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseProfilesValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: "profiles: []"},
		{name: "bad policy", doc: `
profiles:
  - name: x
    idPolicy: random
    normalization: flatten
    descriptionBudget: 200
    aliases: {longId: [a], title: [b], content: [c]}
    courses: {delimiter: "__"}
    idFormat: {delimiter: "_", minLongLength: 10}
`},
		{name: "direct without short aliases", doc: `
profiles:
  - name: x
    idPolicy: direct
    normalization: flatten
    descriptionBudget: 200
    aliases: {longId: [a], title: [b], content: [c]}
    courses: {delimiter: "__"}
    idFormat: {delimiter: "_", minLongLength: 10}
`},
		{name: "duplicate", doc: `
profiles:
  - &p
    name: x
    idPolicy: sequential
    normalization: flatten
    descriptionBudget: 200
    aliases: {longId: [a], title: [b], content: [c]}
    courses: {delimiter: "__"}
    idFormat: {delimiter: "_", minLongLength: 10}
  - *p
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseProfiles([]byte(tc.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadProfilesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	doc := `
profiles:
  - name: custom
    idPolicy: sequential
    normalization: flatten
    descriptionBudget: 120
    aliases: {longId: [slug], title: [name], content: [body]}
    courses:
      delimiter: "-"
      fallback: 9
      keywords: [{keyword: math, courseId: 3}]
    idFormat: {delimiter: "-", minLongLength: 6}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(Config{Profile: "custom", ProfilesFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if p.Courses.Fallback != 9 || p.Courses.Keywords[0].CourseID != 3 || p.IDFormat.Delimiter != "-" {
		t.Fatalf("profile=%+v", p)
	}
}
