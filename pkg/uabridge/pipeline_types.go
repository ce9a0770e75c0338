package uabridge

import (
	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// Device is one sink identity together with the nodes that feed it.
type Device = domain.Device

// Subscription is the polled tag set of a device.
type Subscription = domain.Subscription

// Tag maps a telemetry key to a source node.
type Tag = domain.Tag

// History is an archived node backfilled on a schedule or on demand.
type History = domain.History

// HistoryType selects the default backfill window shape.
type HistoryType = domain.HistoryType

const (
	HistoryDaily  = domain.HistoryTypeDaily
	HistoryHourly = domain.HistoryTypeHourly
)

// Telemetry is one timestamped set of values.
type Telemetry = domain.Telemetry

// Attributes holds client and shared attribute values.
type Attributes = domain.Attributes

// Command is a remote command pulled from the sink.
type Command = domain.Command

// CommandResponse answers a Command.
type CommandResponse = domain.CommandResponse

// TagValue, HistoryRequest and HistoryPoint are the Source read types.
type (
	TagValue       = domain.TagValue
	HistoryRequest = domain.HistoryRequest
	HistoryPoint   = domain.HistoryPoint
)

// Source reads live values and archives (OPC UA by default).
type Source = ports.Source

// SessionProvider keeps the Source's connection alive.
type SessionProvider = ports.SessionProvider

// TelemetrySink receives attributes and telemetry and serves remote commands.
type TelemetrySink = ports.TelemetrySink

// Observability emits logs and metrics.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field
