package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/uabridge"
)

// Hands every delivery to a worker goroutine and triggers one on-demand
// history backfill per device at startup.
func main() {
	flow, err := uabridge.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, deliveries, closeSink := uabridge.NewChannelSink("fanout", 32)
	defer closeSink()

	end := time.Now().UTC()
	for _, d := range flow.Config().Devices {
		for _, h := range d.Histories {
			params := fmt.Sprintf(`{"historyName":%q,"startTime":%q,"endTime":%q}`,
				h.Name, end.Add(-24*time.Hour).Format(time.RFC3339), end.Format(time.RFC3339))
			if err := sink.Submit(d.Token, uabridge.Command{ID: 1, Method: "getHistory", Params: []byte(params)}); err != nil {
				log.Fatalf("submit: %v", err)
			}
			break
		}
	}

	go fanoutWorker(ctx, "ingest", deliveries)

	if err := flow.Run(ctx, uabridge.StreamOutSink(sink)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bridge error: %v", err)
	}
}

func fanoutWorker(ctx context.Context, name string, deliveries <-chan uabridge.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-deliveries:
			fmt.Printf("[%s] %s %s samples=%d attrs=%d\n", name, d.Token, d.Kind, len(d.Samples), len(d.Attributes))
		}
	}
}
