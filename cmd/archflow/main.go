package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/username/archflow"
	"github.com/username/archflow/pkg/config"
	"github.com/username/archflow/pkg/spi"
	"github.com/username/archflow/pkg/spi/archive"
	"github.com/username/archflow/pkg/spi/engine"
	filestore "github.com/username/archflow/pkg/spi/store/file"
	"github.com/username/archflow/pkg/spi/store/pg"
	"github.com/username/archflow/pkg/spi/store/redis"
	"github.com/username/archflow/pkg/util"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("ARCHFLOW_CONFIG_PATH", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting ArchFlow")
	log.Printf("Archive: %s", cfg.ArchiveDir)
	log.Printf("Engine: %s", cfg.EngineURL)
	log.Printf("Cursor driver: %s", cfg.CursorDriver)

	// 1. Setup Source
	backoff := util.NewBackoff(cfg.MaxRetries, cfg.RetryDelay)
	src := spi.NewRetryingFileSource(archive.NewDir(cfg.ArchiveDir), backoff)

	// 2. Setup Engine
	eng, err := engine.Dial(cfg.EngineURL)
	if err != nil {
		log.Fatalf("Failed to connect to engine at %s: %v", cfg.EngineURL, err)
	}
	defer eng.Close()

	// 3. Setup Cursor Store
	var cursors spi.CursorStore
	switch cfg.CursorDriver {
	case "file":
		log.Printf("Using file cursor store at: %s", cfg.CursorPath)
		cursors = filestore.NewStore(cfg.CursorPath)
	case "postgres":
		log.Printf("Using PostgreSQL cursor store with DSN provided in config")
		cursors, err = pg.NewStore(cfg.CursorPath)
	case "redis":
		log.Printf("Using Redis cursor store at: %s", cfg.CursorPath)
		cursors, err = redis.NewStore(cfg.CursorPath, "", 0)
	default:
		log.Fatalf("Unknown cursor driver: %s. Supported: file, postgres, redis", cfg.CursorDriver)
	}
	if err != nil {
		log.Fatalf("Failed to initialize cursor store (%s): %v", cfg.CursorDriver, err)
	}

	// 4. Metrics server
	if cfg.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	// 5. Run with Graceful Shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	ingestor := archflow.New(cfg, src, eng, cursors)
	if err := ingestor.Run(ctx); err != nil {
		log.Fatalf("Ingestor stopped with error: %v", err)
	}
	log.Println("Goodbye.")
}
