package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/malay-max/syllabus-scraper/internal/gemini"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/config"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/internalerr"
	"github.com/malay-max/syllabus-scraper/pkg/syllabus/store/sqlite"
)

func main() {
	var (
		dbPath     = flag.String("db", "", "SQLite database path (overrides SYLLABUS_DB)")
		configPath = flag.String("config", "", "Optional YAML config file")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: syllabus-ingest [flags] <pdf-path>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	pdfPath := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *configPath != "" {
		if err := cfg.ApplyFile(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal("open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	pipeline := syllabus.New(syllabus.Options{
		Store: st,
		Extractor: &gemini.Client{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.GoogleAPIKey,
			Model:        cfg.Model,
			Prompt:       cfg.Prompt,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		},
		Logger: logger,
	})
	defer pipeline.Close()

	summary, err := pipeline.IngestDocument(ctx, pdfPath)
	if err != nil {
		switch {
		case errors.Is(err, internalerr.ErrExtraction):
			logger.Fatal("extraction stage failed, nothing was written", zap.Error(err))
		case errors.Is(err, internalerr.ErrStorage):
			logger.Fatal("storage stage failed, batch rolled back", zap.Error(err))
		default:
			logger.Fatal("ingestion failed", zap.Error(err))
		}
	}

	fmt.Printf("Integrated %d text-mappings into the database.\n", summary.Integrated)
	if summary.Skipped > 0 {
		fmt.Printf("Skipped %d incomplete entries.\n", summary.Skipped)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
