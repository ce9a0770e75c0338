package uabridge

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Flow assembles a Bridge in three steps: Conf picks the configuration and
// the devices to serve, StreamIN the OPC UA side, StreamOUT the sink side.
type Flow struct {
	cfg  *Config
	opts []Option
	err  error
}

// FlowOption adjusts the configuration before anything is wired.
type FlowOption func(*Flow)

// StreamInOption configures the reading side: source, session, observability.
type StreamInOption func(*Flow)

// StreamOutOption configures the delivery side: sink, command polling, observability.
type StreamOutOption func(*Flow)

// Conf loads the YAML config and its device file, then applies opts.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an in-memory Config. The first failing
// FlowOption aborts the build.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(f)
		if f.err != nil {
			return nil, f.err
		}
	}
	return f, nil
}

// Config returns the configuration the Bridge will be built from.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw Bridge options.
func (f *Flow) Options(opts ...Option) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the delivery options and builds the Bridge.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Bridge, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return NewBridge(f.cfg, f.opts...)
}

// Run builds the Bridge and runs it until ctx is cancelled.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	b, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}

// WithFlowOptions appends Bridge options during Conf.
func WithFlowOptions(opts ...Option) FlowOption {
	return func(f *Flow) {
		f.appendOptions(opts...)
	}
}

// OnlyDevices keeps the configured devices whose name or token is listed,
// so one device file can be split across several bridge processes.
func OnlyDevices(names ...string) FlowOption {
	return func(f *Flow) {
		kept := make([]Device, 0, len(names))
		for _, d := range f.cfg.Devices {
			if slices.Contains(names, d.Name) || slices.Contains(names, d.Token) {
				kept = append(kept, d)
			}
		}
		if len(kept) == 0 {
			f.err = fmt.Errorf("no configured device matches %v", names)
			return
		}
		f.cfg.Devices = kept
	}
}

// InTimezone overrides the zone used for cron schedules, history windows
// and zone-less command times.
func InTimezone(name string) FlowOption {
	return func(f *Flow) {
		if err := f.cfg.SetTimezone(name); err != nil {
			f.err = err
		}
	}
}

// StreamInSource replaces the OPC UA reader.
func StreamInSource(src Source) StreamInOption {
	return func(f *Flow) {
		if src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInSession sets the connection supervisor for a custom source.
func StreamInSession(p SessionProvider) StreamInOption {
	return func(f *Flow) {
		if p != nil {
			f.appendOptions(WithSessionProvider(p))
		}
	}
}

// StreamInObservability overrides the default zerolog + Prometheus stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink replaces the ThingsBoard client.
func StreamOutSink(s TelemetrySink) StreamOutOption {
	return func(f *Flow) {
		if s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutObservability is StreamInObservability for callers configuring the sink side last.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback delivers to fn through an in-process CallbackSink.
func StreamOutCallback(name string, fn DeliveryFunc) StreamOutOption {
	return func(f *Flow) {
		f.appendOptions(WithSink(NewCallbackSink(name, fn)))
	}
}

// StreamOutCommandPoll changes how often each device pulls remote commands.
func StreamOutCommandPoll(every time.Duration) StreamOutOption {
	return func(f *Flow) {
		if every <= 0 {
			f.err = fmt.Errorf("command poll interval must be positive, got %s", every)
			return
		}
		f.cfg.ThingsBoard.RPCPollInterval = every
	}
}

func (f *Flow) appendOptions(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
