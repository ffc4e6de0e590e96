package watch

import (
	"context"
	"errors"
	"os"
	"time"

	"lessonmap/internal/config"
	"lessonmap/internal/logger"
	"lessonmap/internal/pipeline"
	"lessonmap/internal/storage"
)

// Service polls the input location and runs an import whenever the located
// file's content changes.
type Service struct {
	db       *storage.DB
	cfg      config.Config
	profile  config.Profile
	importer *pipeline.ImportService
	log      *logger.Logger
}

func NewService(db *storage.DB, cfg config.Config, profile config.Profile, log *logger.Logger) *Service {
	return &Service{
		db:       db,
		cfg:      cfg,
		profile:  profile,
		importer: pipeline.NewImportService(db),
		log:      log.With("component", "watch", "profile", profile.Name),
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.WatchIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		if _, err := s.runCycle(ctx); err != nil {
			s.log.Error("watch cycle error", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) hashKey() string {
	return "watch.last_hash." + s.profile.Name
}

// runCycle reports whether an import ran.
func (s *Service) runCycle(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, nil
	}

	input, err := pipeline.LocateInput(s.cfg.InputPath, s.cfg.InputDir, s.cfg.InputPattern)
	if errors.Is(err, pipeline.ErrInputNotFound) {
		s.log.Debug("no input yet", "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	blob, err := os.ReadFile(input)
	if err != nil {
		return false, err
	}
	hash := pipeline.HashBytes(blob)
	last, err := s.db.GetMetadata(s.hashKey())
	if err != nil {
		return false, err
	}
	if last != nil && *last == hash {
		s.log.Debug("input unchanged", "path", input)
		return false, nil
	}

	res, err := s.importer.Run(pipeline.NewOptions(s.cfg, s.profile, input))
	s.log.Events(res.Events)
	if err != nil {
		return true, err
	}
	if !s.cfg.DryRun {
		if err := s.db.SetMetadata(s.hashKey(), res.InputHash); err != nil {
			return true, err
		}
	}

	s.log.Info("watch cycle done", "path", input, "accepted", res.Counts.Accepted, "skipped", res.Counts.Skipped, "duration_ms", res.Duration.Milliseconds())
	return true, nil
}
