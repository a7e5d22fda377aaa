package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/headcount/internal/api"
	"github.com/your-org/headcount/internal/api/ws"
	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
	"github.com/your-org/headcount/internal/observability"
	"github.com/your-org/headcount/internal/processing"
	"github.com/your-org/headcount/internal/queue"
	"github.com/your-org/headcount/internal/storage"
	"github.com/your-org/headcount/internal/vision"
	"github.com/your-org/headcount/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting headcount API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Devices left active by a previous process have no worker anymore.
	if err := db.DemoteActiveDevices(context.Background()); err != nil {
		slog.Warn("demote stale active devices", "error", err)
	}

	// Connect to MinIO
	snapshots, err := storage.NewSnapshotStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := snapshots.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relay recorded counts to WebSocket clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create count consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeCounts(ctx, "api-counts", func(ctx context.Context, msg jetstream.Msg) error {
		var count models.Count
		if err := json.Unmarshal(msg.Data(), &count); err != nil {
			return err
		}

		kind := models.KindCamera
		if count.RoomID != nil {
			kind = models.KindRoom
		}

		resp := dto.CountResponse{
			ID:              count.ID,
			CameraID:        count.CameraID,
			RoomID:          count.RoomID,
			PeopleCount:     count.PeopleCount,
			FramesProcessed: count.FramesProcessed,
			InferenceTimeMs: count.InferenceTimeMs,
			Timestamp:       count.Timestamp.Format(time.RFC3339),
		}
		if count.SnapshotKey != "" {
			resp.SnapshotURL = "/v1/counts/" + strconv.FormatInt(count.ID, 10) + "/snapshot"
		}

		hub.BroadcastCount(&dto.WSEvent{
			Type: "count_recorded",
			Kind: string(kind),
			Data: resp,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start count consumer", "error", err)
	}

	// Processing lifecycle: registry + manager over the stubbed capture source.
	registry := processing.NewRegistry()
	manager := processing.NewManager(registry, db, producer, snapshots,
		vision.StubFactory(time.Second), cfg.Processing)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		Snapshots: snapshots,
		Producer:  producer,
		Manager:   manager,
		Hub:       hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	manager.StopAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
