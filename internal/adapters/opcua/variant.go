package opcua

import (
	"fmt"
	"time"

	"github.com/gopcua/opcua/ua"
)

// variantToValue unwraps v into a value that encodes cleanly as JSON telemetry.
func variantToValue(v *ua.Variant) any {
	if v == nil {
		return nil
	}

	switch val := v.Value().(type) {
	case nil:
		return nil
	case bool, string:
		return val
	case float32:
		return float64(val)
	case float64:
		return val
	case int8:
		return int64(val)
	case uint8:
		return int64(val)
	case int16:
		return int64(val)
	case uint16:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case int64:
		return val
	case uint64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case *ua.LocalizedText:
		if val == nil {
			return nil
		}
		return val.Text
	case *ua.QualifiedName:
		if val == nil {
			return nil
		}
		return val.Name
	case *ua.NodeID:
		if val == nil {
			return nil
		}
		return val.String()
	case ua.StatusCode:
		return uint32(val)
	case []byte:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}
