package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"lessonmap/internal"
)

//go:embed profiles.yaml
var profilesFS embed.FS

// Profile is one configuration of the import pipeline.
type Profile struct {
	Name                 string                     `yaml:"name"`
	IDPolicy             internal.IDPolicy          `yaml:"idPolicy"`
	Normalization        internal.NormalizationMode `yaml:"normalization"`
	DescriptionBudget    int                        `yaml:"descriptionBudget"`
	UnescapeSingleQuotes bool                       `yaml:"unescapeSingleQuotes"`
	FuzzyLongIDFallback  bool                       `yaml:"fuzzyLongIdFallback"`
	Backup               bool                       `yaml:"backup"`
	Summary              string                     `yaml:"summary"`
	Aliases              FieldAliases               `yaml:"aliases"`
	Courses              CourseTable                `yaml:"courses"`
	IDFormat             IDFormatRule               `yaml:"idFormat"`
}

type FieldAliases struct {
	ShortID     []string `yaml:"shortId"`
	LongID      []string `yaml:"longId"`
	Title       []string `yaml:"title"`
	Description []string `yaml:"description"`
	Content     []string `yaml:"content"`
	CourseID    []string `yaml:"courseId"`
}

type CourseTable struct {
	Delimiter string          `yaml:"delimiter"`
	Fallback  int             `yaml:"fallback"`
	Keywords  []CourseKeyword `yaml:"keywords"`
}

type CourseKeyword struct {
	Keyword  string `yaml:"keyword"`
	CourseID int    `yaml:"courseId"`
}

type IDFormatRule struct {
	Delimiter     string `yaml:"delimiter"`
	MinLongLength int    `yaml:"minLongLength"`
}

type profilesDoc struct {
	Version  int       `yaml:"version"`
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles parses the profile file at path, or the embedded profiles when
// path is empty.
func LoadProfiles(path string) (map[string]Profile, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = profilesFS.ReadFile("profiles.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (map[string]Profile, error) {
	var doc profilesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, errors.New("parse profiles: no profiles defined")
	}

	out := make(map[string]Profile, len(doc.Profiles))
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("profile %q defined twice", p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

// LoadProfile resolves the profile named by cfg.Profile.
func LoadProfile(cfg Config) (Profile, error) {
	profiles, err := LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		return Profile{}, err
	}
	p, ok := profiles[cfg.Profile]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", cfg.Profile, strings.Join(ProfileNames(profiles), ", "))
	}
	return p, nil
}

func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile without name")
	}
	switch p.IDPolicy {
	case internal.IDPolicyDirect:
		if len(p.Aliases.ShortID) == 0 {
			return fmt.Errorf("profile %s: direct id policy needs shortId aliases", p.Name)
		}
	case internal.IDPolicySequential:
	default:
		return fmt.Errorf("profile %s: unsupported idPolicy %q", p.Name, p.IDPolicy)
	}
	switch p.Normalization {
	case internal.NormalizeFlatten, internal.NormalizePreserveStructure:
	default:
		return fmt.Errorf("profile %s: unsupported normalization %q", p.Name, p.Normalization)
	}
	if p.DescriptionBudget <= 3 {
		return fmt.Errorf("profile %s: descriptionBudget must be greater than 3", p.Name)
	}
	if len(p.Aliases.LongID) == 0 || len(p.Aliases.Title) == 0 || len(p.Aliases.Content) == 0 {
		return fmt.Errorf("profile %s: longId, title and content aliases are required", p.Name)
	}
	if p.Courses.Delimiter == "" {
		return fmt.Errorf("profile %s: courses.delimiter is required", p.Name)
	}
	if p.IDFormat.Delimiter == "" || p.IDFormat.MinLongLength <= 0 {
		return fmt.Errorf("profile %s: idFormat needs delimiter and minLongLength", p.Name)
	}
	return nil
}
