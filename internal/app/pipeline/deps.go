// Package pipeline runs the per-device tasks: the subscription poller, the
// history schedulers, the command dispatcher and the orchestrator that owns them.
package pipeline

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// Deps are the collaborators shared by every device task.
type Deps struct {
	Source   ports.Source
	Sink     ports.TelemetrySink
	Obs      ports.Observability
	Clock    clock.Clock
	Location *time.Location
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	return d
}

// sleepCtx waits d on clk, returning early with ctx's error on cancellation.
func sleepCtx(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// historyTelemetry turns archived points into single-key samples named key.
func historyTelemetry(key string, points []domain.HistoryPoint) []domain.Telemetry {
	out := make([]domain.Telemetry, 0, len(points))
	for _, p := range points {
		out = append(out, domain.NewTelemetry(p.Timestamp, map[string]any{key: p.Value}))
	}
	return out
}
