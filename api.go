package uabridge

import (
	"time"

	base "github.com/ghalamif/uabridge/pkg/uabridge"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrCommandQueueFull  = base.ErrCommandQueueFull
)

// Type aliases so consumers can import github.com/ghalamif/uabridge directly.
type (
	Config            = base.Config
	OPCUAConfig       = base.OPCUAConfig
	ThingsBoardConfig = base.ThingsBoardConfig
	MetricsConfig     = base.MetricsConfig
	LogConfig         = base.LogConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Bridge            = base.Bridge
	Option            = base.Option
	Device            = base.Device
	Subscription      = base.Subscription
	Tag               = base.Tag
	History           = base.History
	HistoryType       = base.HistoryType
	Telemetry         = base.Telemetry
	Attributes        = base.Attributes
	Command           = base.Command
	CommandResponse   = base.CommandResponse
	TagValue          = base.TagValue
	HistoryRequest    = base.HistoryRequest
	HistoryPoint      = base.HistoryPoint
	Source            = base.Source
	SessionProvider   = base.SessionProvider
	TelemetrySink     = base.TelemetrySink
	Observability     = base.Observability
	Delivery          = base.Delivery
	DeliveryKind      = base.DeliveryKind
	DeliveryFunc      = base.DeliveryFunc
	CallbackSink      = base.CallbackSink
)

const (
	HistoryDaily        = base.HistoryDaily
	HistoryHourly       = base.HistoryHourly
	DeliveryAttributes  = base.DeliveryAttributes
	DeliveryTelemetry   = base.DeliveryTelemetry
	DeliveryRPCResponse = base.DeliveryRPCResponse
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func LoadDevices(path string) ([]Device, error) {
	return base.LoadDevices(path)
}

func LoadEnv(files ...string) error {
	return base.LoadEnv(files...)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...Option) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src Source) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInSession(p SessionProvider) StreamInOption {
	return base.StreamInSession(p)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s TelemetrySink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn DeliveryFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Bridge and options.
func NewBridge(cfg *Config, opts ...Option) (*Bridge, error) {
	return base.NewBridge(cfg, opts...)
}

func WithSource(src Source) Option {
	return base.WithSource(src)
}

func WithSink(s TelemetrySink) Option {
	return base.WithSink(s)
}

func WithSessionProvider(p SessionProvider) Option {
	return base.WithSessionProvider(p)
}

func WithObservability(obs Observability) Option {
	return base.WithObservability(obs)
}

func WithoutMetricsServer() Option {
	return base.WithoutMetricsServer()
}

func NopObservability() Observability {
	return base.NopObservability()
}

// Sink adapters.
func NewCallbackSink(name string, fn DeliveryFunc) *CallbackSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (*CallbackSink, <-chan Delivery, func()) {
	return base.NewChannelSink(name, buffer)
}

func OnlyDevices(names ...string) FlowOption {
	return base.OnlyDevices(names...)
}

func InTimezone(name string) FlowOption {
	return base.InTimezone(name)
}

func StreamOutCommandPoll(every time.Duration) StreamOutOption {
	return base.StreamOutCommandPoll(every)
}
