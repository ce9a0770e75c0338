package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/uabridge"
)

func main() {
	if err := uabridge.LoadEnv("../../.env"); err != nil {
		log.Fatalf("load env: %v", err)
	}
	flow, err := uabridge.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bridge exited: %v", err)
	}
}
