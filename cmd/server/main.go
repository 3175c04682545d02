package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fraudstream/backend/internal/config"
	"github.com/fraudstream/backend/internal/fraud"
	"github.com/fraudstream/backend/internal/frontend"
	"github.com/fraudstream/backend/internal/record"
	"github.com/fraudstream/backend/internal/stats"
	"github.com/fraudstream/backend/internal/stream"
	"github.com/fraudstream/backend/internal/ws"
)

func main() {
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	frontendPath := flag.String("frontend", "", "Override frontend directory")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	dataset, err := record.Load(cfg.Data.Transactions, cfg.Data.Identity)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Loaded %d transactions from %s", dataset.Len(), cfg.Data.Transactions)

	detector := fraud.NewDetector(cfg.Detector.DenyThreshold, cfg.Detector.CriticalThreshold)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, events := stats.NewTracker()
	go tracker.Run(ctx)

	table := stream.NewTable(ctx, dataset, detector, stream.Config{
		MinDelay:      cfg.Stream.MinDelay,
		MaxDelay:      cfg.Stream.MaxDelay,
		ProgressBatch: cfg.Stream.ProgressBatch,
	}, events)

	frontendDir := *frontendPath
	if *devMode && frontendDir == "" {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "frontend")
		// If running with go run, the exe path is in a temp dir, use CWD instead
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "..", "frontend")
		}
	}

	// Embedded frontend handler: when built with -tags embed, serves from binary.
	// Otherwise falls back to serving from the filesystem.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
		if embeddedHandler == nil {
			cwd, _ := os.Getwd()
			fallback := filepath.Join(cwd, "..", "frontend")
			if *frontendPath != "" {
				fallback = *frontendPath
			}
			if _, err := os.Stat(fallback); err == nil {
				log.Printf("No embedded frontend, falling back to: %s", fallback)
				embeddedHandler = http.FileServer(http.Dir(fallback))
			}
		}
	}

	server := ws.NewServer(table, detector, tracker, dataset, frontendDir, *devMode, embeddedHandler, cfg.Server.AllowedOrigins)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
