package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPollInterval is used when a subscription omits its interval.
const DefaultPollInterval = 10000

// Device is one sink identity and the OPC UA nodes that feed it.
type Device struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description" json:"description"`
	Token        string        `yaml:"token" json:"token"`
	Subscription *Subscription `yaml:"subscription" json:"subscription,omitempty"`
	Histories    []History     `yaml:"histories" json:"histories"`
}

// Subscription polls a fixed tag set every Interval milliseconds.
type Subscription struct {
	Interval int   `yaml:"interval" json:"interval"`
	Tags     []Tag `yaml:"tags" json:"tags"`
}

// Period returns the poll interval as a duration.
func (s *Subscription) Period() time.Duration {
	if s == nil || s.Interval <= 0 {
		return DefaultPollInterval * time.Millisecond
	}
	return time.Duration(s.Interval) * time.Millisecond
}

// NodeIDs returns the node ids of all tags in declaration order.
func (s *Subscription) NodeIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Tags))
	for i, tag := range s.Tags {
		ids[i] = tag.NodeID
	}
	return ids
}

// Tag maps a telemetry key to a source node.
type Tag struct {
	Name   string `yaml:"name" json:"name"`
	NodeID string `yaml:"nodeId" json:"nodeId"`
}

// History is an archived node that is backfilled on a cron schedule or on demand.
type History struct {
	Name        string      `yaml:"name" json:"name"`
	NodeID      string      `yaml:"nodeId" json:"nodeId"`
	CheckCron   string      `yaml:"checkCron" json:"checkCron,omitempty"`
	HistoryType HistoryType `yaml:"historyType" json:"historyType,omitempty"`
}

// Scheduled reports whether the history has an automatic backfill schedule.
func (h History) Scheduled() bool {
	return strings.TrimSpace(h.CheckCron) != ""
}

// CheckpointKey is the client attribute that stores the last delivered timestamp.
func (h History) CheckpointKey() string {
	return CheckpointPrefix + h.Name
}

// FindHistory returns the device's history stream with the given name.
func (d *Device) FindHistory(name string) (History, bool) {
	for _, h := range d.Histories {
		if h.Name == name {
			return h, true
		}
	}
	return History{}, false
}

// HistoryType selects the shape of the default backfill window.
type HistoryType int

const (
	HistoryTypeUnknown HistoryType = iota
	HistoryTypeDaily
	HistoryTypeHourly
)

// ParseHistoryType accepts "daily" and "hourly" in any case.
func ParseHistoryType(s string) (HistoryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return HistoryTypeDaily, nil
	case "hourly":
		return HistoryTypeHourly, nil
	case "":
		return HistoryTypeUnknown, nil
	default:
		return HistoryTypeUnknown, fmt.Errorf("unknown history type %q", s)
	}
}

func (t HistoryType) String() string {
	switch t {
	case HistoryTypeDaily:
		return "daily"
	case HistoryTypeHourly:
		return "hourly"
	default:
		return ""
	}
}

func (t HistoryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *HistoryType) UnmarshalText(text []byte) error {
	parsed, err := ParseHistoryType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
