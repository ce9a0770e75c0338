package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// ErrNothingToForward marks a poll cycle in which no tag was read successfully.
var ErrNothingToForward = errors.New("pipeline: no tag values to forward")

// Poller samples a device's subscription tags every interval and forwards
// them as device attributes.
type Poller struct {
	deps   Deps
	device domain.Device

	// last successful payload, kept for change logging only
	last map[string]any
}

func NewPoller(device domain.Device, deps Deps) *Poller {
	return &Poller{deps: deps.withDefaults(), device: device}
}

// Run polls until ctx is done. A device without subscription tags returns at once.
func (p *Poller) Run(ctx context.Context) error {
	sub := p.device.Subscription
	if sub == nil || len(sub.Tags) == 0 {
		return nil
	}
	interval := sub.Period()

	p.deps.Obs.LogInfo("poller_started",
		ports.F("device", p.device.Name),
		ports.F("tags", len(sub.Tags)),
		ports.F("interval", interval.String()))

	for {
		start := p.deps.Clock.Now()
		if _, err := p.Cycle(ctx); err != nil && ctx.Err() == nil {
			if errors.Is(err, ErrNothingToForward) {
				p.deps.Obs.LogWarn("poll_cycle_empty", err, ports.F("device", p.device.Name))
			} else {
				p.deps.Obs.LogError("poll_cycle_failed", err, ports.F("device", p.device.Name))
			}
		}
		elapsed := p.deps.Clock.Since(start)
		p.deps.Obs.ObserveLatency(observability.PollCycleLatency, elapsed.Seconds())

		if err := sleepCtx(ctx, p.deps.Clock, nextDelay(interval, elapsed)); err != nil {
			return nil
		}
	}
}

// Cycle performs one read-and-forward pass and returns the forwarded map.
// Tags with a bad status are left out; an all-bad read forwards nothing.
func (p *Poller) Cycle(ctx context.Context) (map[string]any, error) {
	p.deps.Obs.IncCounter(observability.PollCycles, 1)
	tags := p.device.Subscription.Tags

	values, err := p.deps.Source.ReadValues(ctx, p.device.Subscription.NodeIDs())
	if err != nil {
		p.deps.Obs.IncCounter(observability.PollCyclesSkipped, 1)
		return nil, fmt.Errorf("read %d tags: %w", len(tags), err)
	}

	attrs := make(map[string]any, len(tags))
	for i, tag := range tags {
		if i >= len(values) {
			break
		}
		v := values[i]
		if !v.OK() {
			p.deps.Obs.IncCounter(observability.TagReadFailures, 1)
			p.deps.Obs.LogWarn("poll_tag_read_failed", v.Err,
				ports.F("device", p.device.Name),
				ports.F("tag", tag.Name),
				ports.F("node_id", tag.NodeID))
			continue
		}
		attrs[tag.Name] = v.Value
	}

	if len(attrs) == 0 {
		p.deps.Obs.IncCounter(observability.PollCyclesSkipped, 1)
		return nil, ErrNothingToForward
	}

	p.logChanges(attrs)

	if err := p.deps.Sink.SendAttributes(ctx, p.device.Token, attrs); err != nil {
		p.deps.Obs.IncCounter(observability.PollCyclesSkipped, 1)
		return nil, fmt.Errorf("send attributes: %w", err)
	}
	p.last = attrs
	return attrs, nil
}

func (p *Poller) logChanges(attrs map[string]any) {
	if p.last == nil {
		return
	}
	var changed []string
	for k, v := range attrs {
		if prev, ok := p.last[k]; !ok || !reflect.DeepEqual(prev, v) {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	p.deps.Obs.LogDebug("poll_values_changed",
		ports.F("device", p.device.Name),
		ports.F("keys", changed))
}

// nextDelay is the sleep after a cycle that took elapsed: never negative,
// zero when the cycle overran its interval.
func nextDelay(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}
