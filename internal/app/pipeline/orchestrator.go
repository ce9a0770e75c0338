package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// ErrNoDevices is returned by Run when there is nothing to orchestrate.
var ErrNoDevices = errors.New("pipeline: no devices")

// Orchestrator starts every device task plus the session supervisor and
// joins them on shutdown.
type Orchestrator struct {
	devices      []domain.Device
	deps         Deps
	session      ports.SessionProvider
	pollInterval time.Duration
}

// NewOrchestrator wires the tasks for devices. session may be nil when the
// source manages its own connection. commandPoll paces the command pull loop.
func NewOrchestrator(devices []domain.Device, deps Deps, session ports.SessionProvider, commandPoll time.Duration) *Orchestrator {
	return &Orchestrator{
		devices:      devices,
		deps:         deps.withDefaults(),
		session:      session,
		pollInterval: commandPoll,
	}
}

type task struct {
	name string
	run  func(context.Context) error
}

// Run blocks until ctx is done and every task has returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.devices) == 0 {
		return ErrNoDevices
	}
	tasks, err := o.tasks()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if o.session != nil {
		g.Go(func() error { return o.session.Run(gctx) })
	}
	for _, t := range tasks {
		o.deps.Obs.LogDebug("task_started", ports.F("task", t.name))
		g.Go(func() error { return t.run(gctx) })
	}

	o.deps.Obs.LogInfo("orchestrator_started",
		ports.F("devices", len(o.devices)),
		ports.F("tasks", len(tasks)))

	err = g.Wait()
	o.deps.Obs.LogInfo("orchestrator_stopped")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// tasks builds one poller, one scheduler per scheduled history and one
// command loop per device. All are built before any starts.
func (o *Orchestrator) tasks() ([]task, error) {
	dispatcher := NewCommandDispatcher(o.devices, o.deps, o.pollInterval)

	var tasks []task
	for _, dev := range o.devices {
		if dev.Subscription != nil && len(dev.Subscription.Tags) > 0 {
			tasks = append(tasks, task{name: dev.Name + "/poller", run: NewPoller(dev, o.deps).Run})
		}
		for _, h := range dev.Histories {
			if !h.Scheduled() {
				continue
			}
			s, err := NewHistoryScheduler(dev, h, o.deps)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task{name: dev.Name + "/history/" + h.Name, run: s.Run})
		}
		token := dev.Token
		tasks = append(tasks, task{name: dev.Name + "/commands", run: func(ctx context.Context) error {
			return dispatcher.Run(ctx, token)
		}})
	}
	return tasks, nil
}
