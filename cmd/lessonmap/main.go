package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"lessonmap/internal"
	"lessonmap/internal/config"
	"lessonmap/internal/logger"
	"lessonmap/internal/mapping"
	"lessonmap/internal/pipeline"
	"lessonmap/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogMode)
	must(err)
	defer log.Sync()

	cmd := "run"
	args := []string{}
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	if strings.HasPrefix(cmd, "-") {
		cmd, args = "run", os.Args[1:]
	}

	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		profileName := fs.String("profile", cfg.Profile, "direct|sequential|archive")
		input := fs.String("input", cfg.InputPath, "input csv/xlsx path")
		dryRun := fs.Bool("dry-run", cfg.DryRun, "parse and render without writing")
		_ = fs.Parse(args)
		cfg.Profile = *profileName
		cfg.InputPath = *input
		cfg.DryRun = *dryRun

		profile, err := config.LoadProfile(cfg)
		must(err)
		path, err := pipeline.LocateInput(cfg.InputPath, cfg.InputDir, cfg.InputPattern)
		must(err)

		var ledger pipeline.Ledger
		if strings.TrimSpace(cfg.DBPath) != "" {
			db, err := storage.Open(cfg.DBPath)
			must(err)
			defer db.Close()
			ledger = db
		}

		svc := pipeline.NewImportService(ledger)
		res, err := svc.Run(pipeline.NewOptions(cfg, profile, path))
		log.With("run", res.RunID).Events(res.Events)
		must(err)
		fmt.Printf("run done profile=%s processed=%d accepted=%d skipped=%d written=%d\n",
			profile.Name, res.Counts.Processed, res.Counts.Accepted, res.Counts.Skipped, len(res.Written))
	case "resolve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "short or long lesson id")
		_ = fs.Parse(args)
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		profile, err := config.LoadProfile(cfg)
		must(err)
		store, err := pipeline.LoadContentStore(cfg.ContentStorePath)
		must(err)
		table := mapping.NewTable(pipeline.StoreEntries(store), pipeline.RuleFor(profile))

		format := table.DetectFormat(*id)
		shortID, ok := table.Resolve(*id)
		if !ok {
			must(fmt.Errorf("lesson id %q (%s) not found", *id, format))
		}
		longID, _ := table.LongFromShort(shortID)
		fmt.Printf("format=%s shortId=%d longId=%s\n", format, shortID, longID)
	case "verify":
		profile, err := config.LoadProfile(cfg)
		must(err)
		report, err := pipeline.Verify(cfg.ContentStorePath, cfg.MappingPaths(), pipeline.RuleFor(profile))
		must(err)
		for _, p := range report.Problems {
			log.Warn("verify problem", "problem", p)
		}
		if !report.OK() {
			must(fmt.Errorf("verify failed: %d problems", len(report.Problems)))
		}
		fmt.Printf("verify ok lessons=%d destinations=%d\n", report.Lessons, len(cfg.MappingPaths()))
	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 10, "number of runs")
		_ = fs.Parse(args)
		must(cfg.Require("DB_PATH", cfg.DBPath))
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			printRun(r)
		}
	case "profiles":
		profiles, err := config.LoadProfiles(cfg.ProfilesFile)
		must(err)
		for _, name := range config.ProfileNames(profiles) {
			p := profiles[name]
			marker := " "
			if name == cfg.Profile {
				marker = "*"
			}
			fmt.Printf("%s %-12s idPolicy=%s normalization=%s budget=%d backup=%v summary=%q\n",
				marker, name, p.IDPolicy, p.Normalization, p.DescriptionBudget, p.Backup, p.Summary)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func printRun(r internal.RunRow) {
	hash := r.InputHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	fmt.Printf("%s %s %-9s profile=%s accepted=%d skipped=%d input=%s sha=%s %dms\n",
		r.CreatedAt, r.RunID, r.Status, r.Profile, r.Counts.Accepted, r.Counts.Skipped, r.InputPath, hash, r.DurationMs)
}

func usage() {
	fmt.Println("usage: lessonmap [command]")
	fmt.Println("commands:")
	fmt.Println("  run [--profile=direct] [--input=path] [--dry-run]   (default)")
	fmt.Println("  resolve --id=<short|long>")
	fmt.Println("  verify")
	fmt.Println("  runs [--limit=10]")
	fmt.Println("  profiles")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
