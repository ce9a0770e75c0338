package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/uabridge/pkg/uabridge"
)

// Reads from the configured OPC UA server but prints to stdout instead of
// posting to ThingsBoard. Checkpoints live in memory for the process lifetime.
func main() {
	flow, err := uabridge.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(d uabridge.Delivery) error {
		switch d.Kind {
		case uabridge.DeliveryAttributes:
			fmt.Printf("%s attributes %v\n", d.Token, d.Attributes)
		case uabridge.DeliveryTelemetry:
			for _, s := range d.Samples {
				fmt.Printf("%s %s %v\n", d.Token, s.Time().Format(time.RFC3339Nano), s.Values)
			}
		case uabridge.DeliveryRPCResponse:
			fmt.Printf("%s rpc %d -> %+v\n", d.Token, d.CommandID, d.Response)
		}
		return nil
	}

	if err := flow.Run(ctx, uabridge.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bridge error: %v", err)
	}
}
