package domain

import "time"

// Telemetry is the canonical unit forwarded to the sink: one timestamp, many keys.
type Telemetry struct {
	Ts     int64          `json:"ts"`
	Values map[string]any `json:"values"`
}

// NewTelemetry stamps values with t in epoch milliseconds.
func NewTelemetry(t time.Time, values map[string]any) Telemetry {
	return Telemetry{Ts: t.UnixMilli(), Values: values}
}

// Time returns Ts as a UTC time.
func (t Telemetry) Time() time.Time {
	return time.UnixMilli(t.Ts).UTC()
}

// MaxTimestamp returns the latest Ts in samples, or false when samples is empty.
func MaxTimestamp(samples []Telemetry) (time.Time, bool) {
	if len(samples) == 0 {
		return time.Time{}, false
	}
	max := samples[0].Ts
	for _, s := range samples[1:] {
		if s.Ts > max {
			max = s.Ts
		}
	}
	return time.UnixMilli(max).UTC(), true
}

// TagValue is the outcome of reading one node in a batch.
type TagValue struct {
	NodeID string
	Value  any
	Err    error
}

// OK reports whether the node was read with a Good status.
func (v TagValue) OK() bool { return v.Err == nil }

// HistoryRequest bounds a raw history read.
type HistoryRequest struct {
	NodeID    string
	Start     time.Time
	End       time.Time
	MaxValues uint32
}

// HistoryPoint is one archived value.
type HistoryPoint struct {
	Timestamp time.Time
	Value     any
}

// Attributes mirrors the sink's client/shared attribute scopes.
type Attributes struct {
	Client map[string]any `json:"client"`
	Shared map[string]any `json:"shared"`
}
