package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"catalogprj/internal/browser"
	"catalogprj/internal/catalog"
	"catalogprj/internal/config"
	"catalogprj/internal/crawler"
	"catalogprj/internal/extraction"
	"catalogprj/internal/input"
	"catalogprj/internal/logging"
	"catalogprj/internal/observability"
	"catalogprj/internal/pipeline"
	"catalogprj/internal/repository"
)

// go run cmd/catalog/main.go -input=input.xlsx
// go run cmd/catalog/main.go -engine=http -no-resume
func main() {
	cfgPath := flag.String("config", "", "Arquivo YAML de configuração (opcional)")
	inputPath := flag.String("input", "", "Planilha de entrada (.xlsx ou .csv)")
	engine := flag.String("engine", "", "Motor de captura: 'browser' ou 'http'")
	noResume := flag.Bool("no-resume", false, "Ignora o último CSV exportado")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *inputPath != "" {
		cfg.InputPath = *inputPath
	}
	if *engine != "" {
		cfg.Fetch.Engine = *engine
	}
	if *noResume {
		cfg.Resume = false
	}
	// sem chave não processa nenhuma linha
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, closer, err := logging.New(cfg.LogFile, os.Stdout)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closer.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("[FATAL]")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.Start(cfg.MetricsPort)

	records, err := input.Load(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	logger.Info().Int("records", len(records)).Msgf("[INPUT] %s", cfg.InputPath)

	writer, err := catalog.Create(cfg.OutputDir, cfg.OutputPrefix, time.Now())
	if err != nil {
		return err
	}
	defer writer.Close()

	resume := catalog.ResumeIndex{}
	if cfg.Resume {
		resume = loadResume(cfg, writer.Path(), logger)
	}

	session, err := openSession(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("[BROWSER] close")
		}
	}()

	htmlStore := &repository.HTMLRepository{
		Dir:           cfg.HTMLDir,
		ScreenshotDir: cfg.ScreenshotDir(),
		MinBytes:      cfg.Fetch.MinCacheBytes,
	}
	fetcher := crawler.NewPageFetcher(session, htmlStore, crawler.FetchOptions{
		MaxAttempts:  cfg.Fetch.MaxAttempts,
		NavTimeout:   cfg.Fetch.NavTimeout.Duration,
		SettleDelay:  cfg.Fetch.SettleDelay.Duration,
		ReadyTimeout: cfg.Fetch.ReadyTimeout.Duration,
		FinalDelay:   cfg.Fetch.FinalDelay.Duration,
	}, logger)

	extractor := extraction.NewClient(
		extraction.NewOpenAIClient(cfg.GroqAPIKey, cfg.LLMBaseURL),
		extraction.NewPacer(cfg.RateLimit.MinInterval.Duration),
		extraction.Options{
			Model:          cfg.LLMModel,
			Temperature:    cfg.Temperature,
			RequestTimeout: cfg.RequestTimeout.Duration,
			MaxRetries:     cfg.RateLimit.MaxRetries,
			Backoff: extraction.Backoff{
				Base:      cfg.RateLimit.BackoffBase,
				JitterMin: cfg.RateLimit.JitterMin.Duration,
				JitterMax: cfg.RateLimit.JitterMax.Duration,
			},
		},
		logger,
	)

	runner := pipeline.NewRunner(
		fetcher,
		extractor,
		&repository.ExtractionRepository{Dir: cfg.CacheDir},
		writer,
		resume,
		pipeline.Options{
			MaxVisibleChars:    cfg.Compact.MaxVisibleChars,
			ShrunkVisibleChars: cfg.Compact.ShrunkVisibleChars,
			RowDelayMin:        cfg.Fetch.RowDelayMin.Duration,
			RowDelayMax:        cfg.Fetch.RowDelayMax.Duration,
		},
		logger,
	)

	sum, err := runner.Run(ctx, records)
	if errors.Is(err, context.Canceled) {
		logger.Warn().Int("written", sum.Written).Msg("[INTERRUPTED] partial output kept, rerun to resume")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nDONE:  %s\n", sum.Output)
	fmt.Printf("LOG:   %s\n", cfg.LogFile)
	fmt.Printf("HTML:  %s\n", cfg.HTMLDir)
	fmt.Printf("CACHE: %s\n", cfg.CacheDir)
	fmt.Printf("rows=%d na=%d skipped=%d cache_hits=%d\n", sum.Written, sum.Failed, sum.Skipped, sum.CacheHits)
	return nil
}

// loadResume indexes the newest earlier export. Problems only cost the
// resume shortcut, never the run.
func loadResume(cfg *config.Config, current string, logger zerolog.Logger) catalog.ResumeIndex {
	prev, ok, err := catalog.LatestOutput(cfg.OutputDir, cfg.OutputPrefix, current)
	if err != nil {
		logger.Warn().Err(err).Msg("[RESUME] scan failed")
		return catalog.ResumeIndex{}
	}
	if !ok {
		logger.Info().Msg("[RESUME] no previous output")
		return catalog.ResumeIndex{}
	}
	idx, err := catalog.LoadResumeIndex(prev)
	if err != nil {
		logger.Warn().Err(err).Msgf("[RESUME] partial read of %s", filepath.Base(prev))
	}
	logger.Info().Int("skus", idx.Len()).Msgf("[RESUME] loaded %s", filepath.Base(prev))
	return idx
}

func openSession(cfg *config.Config, logger zerolog.Logger) (crawler.Session, error) {
	if cfg.Fetch.Engine == "http" {
		return crawler.NewHTTPSession(cfg.Browser.UserAgent, cfg.Browser.AcceptLanguage), nil
	}
	s, err := browser.Start(cfg.Browser, logger)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}
