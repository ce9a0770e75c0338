package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// CheckpointPrefix prefixes the client attribute holding a history checkpoint.
const CheckpointPrefix = "lastRead_"

// CheckpointLayout is the layout used when writing checkpoints.
const CheckpointLayout = "2006-01-02T15:04:05.000Z"

// legacy "u" layout written by earlier deployments; seconds precision only.
const legacyCheckpointLayout = "2006-01-02 15:04:05Z"

// FormatCheckpoint renders t in UTC with millisecond precision.
func FormatCheckpoint(t time.Time) string {
	return t.UTC().Format(CheckpointLayout)
}

// ParseCheckpoint decodes an attribute value into a checkpoint time.
// Strings in CheckpointLayout, RFC 3339 and the legacy layout are accepted,
// as are epoch milliseconds.
func ParseCheckpoint(v any) (time.Time, error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("checkpoint is empty")
	case string:
		return parseCheckpointString(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
			return time.Time{}, fmt.Errorf("checkpoint %v out of range", val)
		}
		return time.UnixMilli(int64(val)).UTC(), nil
	case int64:
		return time.UnixMilli(val).UTC(), nil
	case int:
		return time.UnixMilli(int64(val)).UTC(), nil
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("checkpoint %q: %w", val, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported checkpoint type %T", v)
	}
}

func parseCheckpointString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("checkpoint is empty")
	}
	for _, layout := range []string{CheckpointLayout, time.RFC3339Nano, legacyCheckpointLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized checkpoint %q", s)
}
