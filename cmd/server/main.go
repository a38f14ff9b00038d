package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/carreras-sync/internal/api"
	"github.com/UkralStul/carreras-sync/internal/blob"
	"github.com/UkralStul/carreras-sync/internal/config"
	"github.com/UkralStul/carreras-sync/internal/events"
	"github.com/UkralStul/carreras-sync/internal/logging"
	"github.com/UkralStul/carreras-sync/internal/realtime"
	"github.com/UkralStul/carreras-sync/internal/seed"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/UkralStul/carreras-sync/internal/storage/gormstore"
	"github.com/UkralStul/carreras-sync/internal/storage/inmemory"
	"github.com/UkralStul/carreras-sync/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

func main() {
	storageType := flag.String("storage", "", "Storage type (in-memory or postgres), overrides STORAGE")
	seedCount := flag.Int("seed", -1, "Number of demo users to seed, overrides SEED")
	flag.Parse()

	cfg, err := config.Load(".", "..")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *storageType != "" {
		cfg.Storage = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
	}
	if *seedCount >= 0 {
		cfg.Seed = *seedCount
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis необязателен: без него уведомления и события живут в процессе
	var rdb *redis.Client
	var broker realtime.Broker
	if cfg.RedisURL != "" {
		rdb, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("redis unavailable, falling back to in-process broker: %v", err)
		} else {
			defer rdb.Close()
			broker = realtime.NewRedis(rdb, logger)
		}
	}
	if broker == nil {
		broker = realtime.NewMemory(logger)
	}

	log.Printf("Starting server with %s storage", cfg.Storage)
	store, err := openStore(cfg, gormstore.Options{Broker: broker, Logger: logger, LogSQL: cfg.LogLevel == "debug"})
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	if cfg.Seed > 0 {
		if _, err := seed.Fill(ctx, store, cfg.Seed, logger); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
	}

	blobs, blobDir, err := openBlobs(cfg)
	if err != nil {
		log.Fatalf("failed to open blob store: %v", err)
	}

	// Сервер сам хостит relay: шина пишет в него напрямую, а другим процессам - через redis или слот
	relay := events.NewRelay(logger)
	transport := cfg.EventsTransport
	if transport == "relay" && cfg.EventsRelayURL == "" {
		transport = "auto"
	}
	bus, err := events.Open(ctx, events.Options{
		Transport: transport,
		Redis:     rdb,
		RelayURL:  cfg.EventsRelayURL,
		SlotDir:   cfg.EventsSlotDir,
		Local:     relay.Local(),
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("failed to open app events bus: %v", err)
	}
	defer bus.Close()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.New(api.Options{
			Store:     store,
			Blobs:     blobs,
			Bus:       bus,
			Relay:     relay,
			JWTSecret: cfg.JWTSecret,
			Logger:    logger,
			BlobDir:   blobDir,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown failed: %v", err)
		}
	}()

	log.Printf("listening on http://localhost:%s/ (api under /api, app events relay at /ws/events)", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed to start: %v", err)
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func openStore(cfg *config.Config, opts gormstore.Options) (storage.Store, error) {
	if cfg.Storage == "postgres" {
		return postgres.New(cfg.DatabaseURL, opts)
	}
	return inmemory.New(opts)
}

// openBlobs возвращает хранилище файлов и каталог для раздачи по /storage (только для fs).
func openBlobs(cfg *config.Config) (blob.Store, string, error) {
	if cfg.BlobDriver == "cloudinary" {
		c, err := blob.NewCloudinary(cfg.CloudinaryURL, "carreras")
		return c, "", err
	}
	if err := os.MkdirAll(cfg.BlobDir, 0o755); err != nil {
		return nil, "", err
	}
	fs := blob.NewFS(afero.NewOsFs(), cfg.BlobDir, cfg.BlobPublicURL)
	return fs, fs.Root(), nil
}
