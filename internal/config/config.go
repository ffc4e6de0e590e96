package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Profile      string
	ProfilesFile string

	InputPath    string
	InputDir     string
	InputPattern string

	ContentStorePath  string
	MappingServerPath string
	MappingClientPath string
	SummaryPath       string
	BackupEnabled     *bool
	DryRun            bool

	DBPath           string
	LogMode          string
	WatchIntervalSec int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Profile:      getEnv("LESSONMAP_PROFILE", "direct"),
		ProfilesFile: getEnv("LESSONMAP_PROFILES_FILE", ""),

		InputPath:    getEnv("INPUT_PATH", ""),
		InputDir:     getEnv("INPUT_DIR", filepath.Join(cwd, "data")),
		InputPattern: getEnv("INPUT_PATTERN", "*.csv"),

		ContentStorePath:  getEnv("CONTENT_STORE_PATH", filepath.Join(cwd, "server", "data", "lessons.json")),
		MappingServerPath: getEnv("MAPPING_SERVER_PATH", filepath.Join(cwd, "server", "src", "data", "lessonMapping.ts")),
		MappingClientPath: getEnv("MAPPING_CLIENT_PATH", filepath.Join(cwd, "client", "src", "data", "lessonMapping.ts")),
		SummaryPath:       getEnv("SUMMARY_PATH", ""),
		BackupEnabled:     getEnvOptionalBool("BACKUP_ENABLED"),
		DryRun:            getEnvBool("DRY_RUN", false),

		DBPath:           getEnv("DB_PATH", filepath.Join(cwd, "data", "lessonmap.db")),
		LogMode:          getEnv("LOG_MODE", "dev"),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// MappingPaths lists every destination the mapping module is delivered to.
func (c Config) MappingPaths() []string {
	out := make([]string, 0, 2)
	for _, p := range []string{c.MappingServerPath, c.MappingClientPath} {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	if v := getEnvOptionalBool(key); v != nil {
		return *v
	}
	return fallback
}

func getEnvOptionalBool(key string) *bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	t, f := true, false
	switch value {
	case "1", "true", "yes", "on":
		return &t
	case "0", "false", "no", "off":
		return &f
	}
	return nil
}
