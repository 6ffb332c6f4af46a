// Command placement-center boots the consensus-replicated metadata
// service: the KV engine, the metadata store, the two expiration sweep
// loops, and the chi-routed RPC surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/config"
	"github.com/robustmq/robustmq-go/internal/consensus"
	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/rpcserver"
	"github.com/robustmq/robustmq-go/internal/store"
	"github.com/robustmq/robustmq-go/internal/sweep"
)

func main() {
	cfg := config.LoadPlacementCenter()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := kv.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open metadata store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	metaStore := store.NewMetadataStore(engine)
	applier := consensus.NewApplier(metaStore)

	// The placement center's own cache.Manager instance tracks nothing but
	// live broker membership (C5's broker registry slice): register_node
	// populates it, and get_share_sub_leader (C6) reads it back per spec §2.
	cacheManager := cache.NewManager()

	sweeper := sweep.New(cfg.ClusterName, metaStore)
	go sweeper.RunRetainMessageLoop(ctx)
	go sweeper.RunLastWillLoop(ctx)
	slog.Info("expiration sweepers started", "cluster", cfg.ClusterName)

	rpc := rpcserver.New(metaStore, applier, cacheManager)
	r := chi.NewRouter()
	r.Mount("/rpc", rpc.Router())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("placement center starting", "port", cfg.Port, "cluster", cfg.ClusterName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down placement center")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("placement center stopped")
}
