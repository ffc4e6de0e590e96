package pipeline

import (
	"lessonmap/internal/config"
	"lessonmap/internal/util"
)

// NewOptions resolves run options from the environment configuration and the
// active profile. Explicit configuration wins over profile defaults.
func NewOptions(cfg config.Config, profile config.Profile, inputPath string) Options {
	backup := profile.Backup
	if cfg.BackupEnabled != nil {
		backup = *cfg.BackupEnabled
	}
	return Options{
		Profile:          profile,
		InputPath:        inputPath,
		ContentStorePath: cfg.ContentStorePath,
		MappingPaths:     cfg.MappingPaths(),
		SummaryPath:      util.FirstNonEmpty(cfg.SummaryPath, profile.Summary),
		Backup:           backup,
		DryRun:           cfg.DryRun,
	}
}
