package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"catalogprj/internal/catalog"
	"catalogprj/internal/config"
	"catalogprj/internal/input"
	"catalogprj/internal/report"
	"catalogprj/internal/repository"
)

// go run cmd/status/main.go
// go run cmd/status/main.go -tail=4000
func main() {
	cfgPath := flag.String("config", "", "Arquivo YAML de configuração (opcional)")
	inputPath := flag.String("input", "", "Planilha de entrada (.xlsx ou .csv)")
	tail := flag.Int64("tail", 0, "Mostra os últimos N bytes do log da execução")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *inputPath != "" {
		cfg.InputPath = *inputPath
	}

	records, err := input.Load(cfg.InputPath)
	if err != nil {
		log.Fatalf("load input: %v", err)
	}

	exported := catalog.ResumeIndex{}
	latest, ok, err := catalog.LatestOutput(cfg.OutputDir, cfg.OutputPrefix, "")
	if err != nil {
		log.Printf("scan outputs: %v", err)
	}
	if ok {
		if exported, err = catalog.LoadResumeIndex(latest); err != nil {
			log.Printf("read %s: %v", latest, err)
		}
		fmt.Printf("latest output: %s (%d skus)\n\n", filepath.Base(latest), exported.Len())
	} else {
		fmt.Print("latest output: none\n\n")
	}

	rows := report.Build(records,
		&repository.HTMLRepository{Dir: cfg.HTMLDir, ScreenshotDir: cfg.ScreenshotDir()},
		&repository.ExtractionRepository{Dir: cfg.CacheDir},
		exported,
	)
	if err := report.Write(os.Stdout, rows); err != nil {
		log.Fatal(err)
	}

	if *tail > 0 {
		text, err := report.Tail(cfg.LogFile, *tail)
		if err != nil {
			log.Fatalf("read log: %v", err)
		}
		fmt.Printf("\n--- %s ---\n%s", cfg.LogFile, text)
	}
}
