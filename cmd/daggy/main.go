package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daggy/internal/app"
)

const shutdownGrace = 5 * time.Second

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("bye")
}
