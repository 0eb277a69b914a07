package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"syncd/config"
	"syncd/devserver"
)

func main() {
	flag.Set("logtostderr", "true")
	flag.Parse()
	defer glog.Flush()

	cfg := config.Load()

	store := devserver.NewStore()
	if err := store.Seed(cfg.SeedPassword); err != nil {
		glog.Fatalf("Failed to seed store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := devserver.New(cfg, store)
	glog.Infof("Server starting on %s (users alice, bob, carol)", cfg.ServerAddr)
	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		glog.Fatalf("Failed to start server: %v", err)
	}
}
