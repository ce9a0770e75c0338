package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/app/schedule"
	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// SchedulerState is the lifecycle position of a HistoryScheduler.
type SchedulerState int32

const (
	StateWaiting SchedulerState = iota
	StateRunning
	StateDone
)

func (s SchedulerState) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("SchedulerState(%d)", int32(s))
	}
}

// CycleResult describes one history cycle.
type CycleResult struct {
	Window     schedule.Window
	Forwarded  int
	Checkpoint time.Time // zero when the checkpoint did not move
	Skipped    bool
}

// HistoryScheduler backfills one history stream of one device on its cron schedule.
type HistoryScheduler struct {
	deps    Deps
	device  domain.Device
	history domain.History
	cron    *schedule.Cron
	state   atomic.Int32
}

func NewHistoryScheduler(device domain.Device, history domain.History, deps Deps) (*HistoryScheduler, error) {
	c, err := schedule.ParseCron(history.CheckCron)
	if err != nil {
		return nil, fmt.Errorf("device %s history %s: %w", device.Name, history.Name, err)
	}
	if _, err := schedule.DefaultWindow(history.HistoryType, time.Now()); err != nil {
		return nil, fmt.Errorf("device %s history %s: %w", device.Name, history.Name, err)
	}
	s := &HistoryScheduler{
		deps:    deps.withDefaults(),
		device:  device,
		history: history,
		cron:    c,
	}
	s.state.Store(int32(StateWaiting))
	return s, nil
}

func (s *HistoryScheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

func (s *HistoryScheduler) setState(st SchedulerState) {
	s.state.Store(int32(st))
}

// Run waits for each fire time and runs a cycle, until ctx is done or the
// expression has no future fire time.
func (s *HistoryScheduler) Run(ctx context.Context) error {
	defer s.setState(StateDone)

	for {
		now := s.deps.Clock.Now()
		next := s.cron.Next(now, s.deps.Location)
		if next.IsZero() {
			s.deps.Obs.LogWarn("history_schedule_exhausted", nil, s.fields()...)
			return nil
		}

		s.setState(StateWaiting)
		s.deps.Obs.LogDebug("history_next_fire", append(s.fields(), ports.F("at", next))...)
		if err := sleepCtx(ctx, s.deps.Clock, next.Sub(now)); err != nil {
			return nil
		}

		s.setState(StateRunning)
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.deps.Obs.IncCounter(observability.HistoryCyclesFailed, 1)
			s.deps.Obs.LogError("history_cycle_failed", err, s.fields()...)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// RunCycle performs one backfill: read the checkpoint, compute the window,
// read the archive and forward it, then advance the checkpoint to the newest
// forwarded timestamp. Any failure leaves the checkpoint untouched.
func (s *HistoryScheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	s.deps.Obs.IncCounter(observability.HistoryCycles, 1)
	key := s.history.CheckpointKey()

	attrs, err := s.deps.Sink.GetAttributes(ctx, s.device.Token, []string{key}, nil)
	if err != nil {
		return res, fmt.Errorf("get checkpoint %s: %w", key, err)
	}
	checkpoint := s.checkpoint(attrs)

	now := s.deps.Clock.Now().In(s.deps.Location)
	w, err := schedule.CheckpointWindow(s.history.HistoryType, now, checkpoint)
	if err != nil {
		return res, err
	}
	res.Window = w

	if !w.Valid() {
		res.Skipped = true
		s.deps.Obs.LogWarn("history_window_invalid", nil,
			append(s.fields(), ports.F("start", w.Start), ports.F("end", w.End))...)
		return res, nil
	}

	started := s.deps.Clock.Now()
	points, err := s.deps.Source.ReadHistory(ctx, domain.HistoryRequest{
		NodeID: s.history.NodeID,
		Start:  w.Start,
		End:    w.End,
	})
	s.deps.Obs.ObserveLatency(observability.HistoryReadLatency, s.deps.Clock.Since(started).Seconds())
	if err != nil {
		return res, fmt.Errorf("read %s %s: %w", s.history.NodeID, w, err)
	}
	if len(points) == 0 {
		s.deps.Obs.LogInfo("history_no_data",
			append(s.fields(), ports.F("start", w.Start), ports.F("end", w.End))...)
		return res, nil
	}

	samples := historyTelemetry(s.history.Name, points)
	if err := s.deps.Sink.SendTelemetry(ctx, s.device.Token, samples); err != nil {
		return res, fmt.Errorf("send %d points: %w", len(samples), err)
	}
	res.Forwarded = len(samples)
	s.deps.Obs.IncCounter(observability.HistoryPointsForwarded, float64(len(samples)))

	if err := ctx.Err(); err != nil {
		return res, err
	}

	maxTs, _ := domain.MaxTimestamp(samples)
	if checkpoint != nil && !maxTs.After(*checkpoint) {
		// bounding values can sit at or before the window start
		s.deps.Obs.LogInfo("history_checkpoint_unchanged",
			append(s.fields(),
				ports.F("points", len(samples)),
				ports.F("newest", domain.FormatCheckpoint(maxTs)),
				ports.F("checkpoint", domain.FormatCheckpoint(*checkpoint)))...)
		return res, nil
	}
	if err := s.deps.Sink.SendAttributes(ctx, s.device.Token, map[string]any{
		key: domain.FormatCheckpoint(maxTs),
	}); err != nil {
		return res, fmt.Errorf("set checkpoint %s: %w", key, err)
	}
	res.Checkpoint = maxTs

	s.deps.Obs.LogInfo("history_cycle_completed",
		append(s.fields(),
			ports.F("start", w.Start),
			ports.F("end", w.End),
			ports.F("points", len(samples)),
			ports.F("checkpoint", domain.FormatCheckpoint(maxTs)))...)
	return res, nil
}

// checkpoint extracts the stored checkpoint; an unreadable value counts as absent.
func (s *HistoryScheduler) checkpoint(attrs *domain.Attributes) *time.Time {
	if attrs == nil || attrs.Client == nil {
		return nil
	}
	raw, ok := attrs.Client[s.history.CheckpointKey()]
	if !ok || raw == nil {
		return nil
	}
	t, err := domain.ParseCheckpoint(raw)
	if err != nil {
		s.deps.Obs.LogWarn("history_checkpoint_invalid", err, s.fields()...)
		return nil
	}
	return &t
}

func (s *HistoryScheduler) fields() []ports.Field {
	return []ports.Field{
		ports.F("device", s.device.Name),
		ports.F("history", s.history.Name),
	}
}
