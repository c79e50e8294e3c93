package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beatbridge/beatbridge/config"
	"github.com/beatbridge/beatbridge/server"
)

func main() {
	cfg := config.New()

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		panic(err)
	}

	if err := srv.Start(); err != nil {
		panic(err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		os.Exit(1)
	}
}
