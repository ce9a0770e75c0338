package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gopcua/opcua/ua"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/uabridge/internal/app/schedule"
	"github.com/ghalamif/uabridge/internal/domain"
)

var (
	ErrNoDevices      = errors.New("config: no devices configured")
	ErrDuplicateToken = errors.New("config: duplicate device token")
	ErrDuplicateName  = errors.New("config: duplicate name")
	ErrInvalidDevice  = errors.New("config: invalid device")
)

// deviceEntry accepts "subscriptions" as an alias of "subscription".
type deviceEntry struct {
	domain.Device `yaml:",inline"`
	Subscriptions *domain.Subscription `yaml:"subscriptions"`
}

// LoadDevices reads and validates the device file at path.
func LoadDevices(path string) ([]domain.Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devices file: %w", err)
	}
	devices, err := ParseDevices(raw)
	if err != nil {
		return nil, fmt.Errorf("devices file %s: %w", path, err)
	}
	return devices, nil
}

// ParseDevices decodes a JSON (or YAML) list of devices and validates it.
func ParseDevices(raw []byte) ([]domain.Device, error) {
	var entries []deviceEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoDevices
	}

	devices := make([]domain.Device, 0, len(entries))
	tokens := make(map[string]string, len(entries))
	for i, e := range entries {
		d := e.Device
		if d.Subscription == nil {
			d.Subscription = e.Subscriptions
		}
		if err := normalizeDevice(&d); err != nil {
			return nil, fmt.Errorf("device %d (%s): %w", i, d.Name, err)
		}
		if other, ok := tokens[d.Token]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateToken, other, d.Name)
		}
		tokens[d.Token] = d.Name
		devices = append(devices, d)
	}
	return devices, nil
}

func normalizeDevice(d *domain.Device) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Token = strings.TrimSpace(d.Token)
	if d.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidDevice)
	}
	if d.Name == "" {
		d.Name = d.Token
	}

	if sub := d.Subscription; sub != nil {
		if sub.Interval <= 0 {
			sub.Interval = domain.DefaultPollInterval
		}
		seen := make(map[string]struct{}, len(sub.Tags))
		for _, tag := range sub.Tags {
			if strings.TrimSpace(tag.Name) == "" {
				return fmt.Errorf("%w: tag with node %q has no name", ErrInvalidDevice, tag.NodeID)
			}
			if _, dup := seen[tag.Name]; dup {
				return fmt.Errorf("%w: tag %q", ErrDuplicateName, tag.Name)
			}
			seen[tag.Name] = struct{}{}
			if err := checkNodeID(tag.NodeID); err != nil {
				return fmt.Errorf("tag %q: %w", tag.Name, err)
			}
		}
	}

	seen := make(map[string]struct{}, len(d.Histories))
	for _, h := range d.Histories {
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("%w: history with node %q has no name", ErrInvalidDevice, h.NodeID)
		}
		if _, dup := seen[h.Name]; dup {
			return fmt.Errorf("%w: history %q", ErrDuplicateName, h.Name)
		}
		seen[h.Name] = struct{}{}
		if err := checkNodeID(h.NodeID); err != nil {
			return fmt.Errorf("history %q: %w", h.Name, err)
		}
		if !h.Scheduled() {
			continue
		}
		if _, err := schedule.ParseCron(h.CheckCron); err != nil {
			return fmt.Errorf("%w: history %q: %w", ErrInvalidDevice, h.Name, err)
		}
		if h.HistoryType == domain.HistoryTypeUnknown {
			return fmt.Errorf("%w: history %q: historyType is required with checkCron", ErrInvalidDevice, h.Name)
		}
	}
	return nil
}

// identifier kinds of the string node id form, e.g. "ns=2;s=Boiler1.Temp"
var nodeIDKinds = []string{"i=", "s=", "g=", "b="}

// checkNodeID requires the explicit string form. ua.ParseNodeID on its own
// reads a bare name as a string id in namespace 0.
func checkNodeID(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: nodeId is required", ErrInvalidDevice)
	}
	ident := raw
	if ns, rest, ok := strings.Cut(raw, ";"); ok {
		if !strings.HasPrefix(ns, "ns=") {
			return fmt.Errorf("%w: nodeId %q: namespace must be ns=<index>", ErrInvalidDevice, raw)
		}
		ident = rest
	}
	known := false
	for _, kind := range nodeIDKinds {
		if strings.HasPrefix(ident, kind) && len(ident) > len(kind) {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: nodeId %q: identifier must start with i=, s=, g= or b=", ErrInvalidDevice, raw)
	}
	if _, err := ua.ParseNodeID(raw); err != nil {
		return fmt.Errorf("%w: nodeId %q: %w", ErrInvalidDevice, raw, err)
	}
	return nil
}
