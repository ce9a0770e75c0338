package uabridge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/ghalamif/uabridge/internal/adapters/queue"
	"github.com/ghalamif/uabridge/internal/domain"
)

var (
	// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
	ErrChannelSinkClosed = errors.New("uabridge: channel sink closed")
	// ErrCommandQueueFull is returned by Submit when a device already has
	// commandQueueCapacity commands pending.
	ErrCommandQueueFull = errors.New("uabridge: command queue full")
)

const commandQueueCapacity = 64

// DeliveryKind tells what a Delivery carries.
type DeliveryKind string

const (
	DeliveryAttributes  DeliveryKind = "attributes"
	DeliveryTelemetry   DeliveryKind = "telemetry"
	DeliveryRPCResponse DeliveryKind = "rpc_response"
)

// Delivery is one outbound write of the bridge.
type Delivery struct {
	Kind       DeliveryKind
	Token      string
	Attributes map[string]any
	Samples    []Telemetry
	CommandID  int
	Response   CommandResponse
}

// DeliveryFunc receives every Delivery of a CallbackSink.
type DeliveryFunc func(Delivery) error

// CallbackSink is an in-process TelemetrySink. Client attributes written
// through it are kept in memory so history checkpoints work, and commands
// queued with Submit are handed to the dispatcher.
type CallbackSink struct {
	name string
	fn   DeliveryFunc

	mu       sync.Mutex
	attrs    map[string]map[string]any
	commands *queue.CommandQueue
}

// NewCallbackSink adapts fn into a TelemetrySink so callers can plug
// arbitrary functions without defining structs.
func NewCallbackSink(name string, fn DeliveryFunc) *CallbackSink {
	if name == "" {
		name = "callback"
	}
	return &CallbackSink{
		name:     name,
		fn:       fn,
		attrs:    make(map[string]map[string]any),
		commands: queue.NewCommandQueue(commandQueueCapacity),
	}
}

// NewChannelSink exposes deliveries via a channel; it returns the sink, the
// read-only channel, and a close function the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (*CallbackSink, <-chan Delivery, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Delivery, buffer)
	closed := make(chan struct{})
	var once sync.Once

	s := NewCallbackSink(name, func(d Delivery) error {
		select {
		case <-closed:
			return ErrChannelSinkClosed
		default:
		}
		select {
		case <-closed:
			return ErrChannelSinkClosed
		case ch <- d:
			return nil
		}
	})
	return s, ch, func() {
		once.Do(func() { close(closed) })
	}
}

func (s *CallbackSink) Name() string { return s.name }

// Submit queues cmd for the device with token.
func (s *CallbackSink) Submit(token string, cmd Command) error {
	if !s.commands.Enqueue(token, cmd) {
		return ErrCommandQueueFull
	}
	return nil
}

func (s *CallbackSink) SendAttributes(_ context.Context, token string, attrs map[string]any) error {
	s.mu.Lock()
	stored, ok := s.attrs[token]
	if !ok {
		stored = make(map[string]any, len(attrs))
		s.attrs[token] = stored
	}
	maps.Copy(stored, attrs)
	s.mu.Unlock()

	return s.deliver(Delivery{Kind: DeliveryAttributes, Token: token, Attributes: maps.Clone(attrs)})
}

func (s *CallbackSink) SendTelemetry(_ context.Context, token string, samples []domain.Telemetry) error {
	if len(samples) == 0 {
		return nil
	}
	return s.deliver(Delivery{Kind: DeliveryTelemetry, Token: token, Samples: samples})
}

func (s *CallbackSink) GetAttributes(_ context.Context, token string, clientKeys, _ []string) (*domain.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &domain.Attributes{Client: make(map[string]any, len(clientKeys))}
	for _, k := range clientKeys {
		if v, ok := s.attrs[token][k]; ok {
			out.Client[k] = v
		}
	}
	return out, nil
}

func (s *CallbackSink) PollCommand(_ context.Context, token string) (*domain.Command, error) {
	return s.commands.Dequeue(token), nil
}

func (s *CallbackSink) RespondCommand(_ context.Context, token string, id int, resp domain.CommandResponse) error {
	return s.deliver(Delivery{Kind: DeliveryRPCResponse, Token: token, CommandID: id, Response: resp})
}

func (s *CallbackSink) deliver(d Delivery) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(d)
}

var _ TelemetrySink = (*CallbackSink)(nil)
