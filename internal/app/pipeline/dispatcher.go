package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/domain"
	"github.com/ghalamif/uabridge/internal/ports"
)

// Zone-less layouts are read in the dispatcher's location.
var commandTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CommandDispatcher pulls remote commands per device and answers each one.
type CommandDispatcher struct {
	deps         Deps
	devices      map[string]domain.Device
	pollInterval time.Duration
}

func NewCommandDispatcher(devices []domain.Device, deps Deps, pollInterval time.Duration) *CommandDispatcher {
	byToken := make(map[string]domain.Device, len(devices))
	for _, d := range devices {
		byToken[d.Token] = d
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &CommandDispatcher{
		deps:         deps.withDefaults(),
		devices:      byToken,
		pollInterval: pollInterval,
	}
}

// Run pulls commands for token until ctx is done. Pull errors are logged and
// the loop continues.
func (d *CommandDispatcher) Run(ctx context.Context, token string) error {
	name := d.deviceName(token)
	limiter := rate.NewLimiter(rate.Every(d.pollInterval), 1)

	d.deps.Obs.LogInfo("command_dispatcher_started", ports.F("device", name))
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		cmd, err := d.deps.Sink.PollCommand(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.deps.Obs.LogError("command_poll_failed", err, ports.F("device", name))
			continue
		}
		if cmd == nil {
			continue
		}

		resp := d.Handle(ctx, token, cmd)
		if err := d.deps.Sink.RespondCommand(ctx, token, cmd.ID, resp); err != nil && ctx.Err() == nil {
			d.deps.Obs.LogError("command_respond_failed", err,
				ports.F("device", name),
				ports.F("command_id", cmd.ID),
				ports.F("method", cmd.Method))
		}
	}
}

// Handle executes cmd for the device owning token. It never fails: problems
// are reported in the response.
func (d *CommandDispatcher) Handle(ctx context.Context, token string, cmd *domain.Command) domain.CommandResponse {
	d.deps.Obs.IncCounter(observability.Commands, 1)

	var resp domain.CommandResponse
	switch {
	case strings.EqualFold(cmd.Method, domain.MethodGetHistory):
		resp = d.getHistory(ctx, token, cmd)
	default:
		resp = domain.Failed(domain.ReasonUnknownMethod)
	}

	fields := []ports.Field{
		ports.F("device", d.deviceName(token)),
		ports.F("command_id", cmd.ID),
		ports.F("method", cmd.Method),
	}
	if !resp.Success {
		d.deps.Obs.IncCounter(observability.CommandsFailed, 1)
		d.deps.Obs.LogWarn("command_failed", nil, append(fields, ports.F("reason", resp.Message))...)
	} else {
		d.deps.Obs.LogInfo("command_handled", fields...)
	}
	return resp
}

func (d *CommandDispatcher) getHistory(ctx context.Context, token string, cmd *domain.Command) domain.CommandResponse {
	params, err := decodeParams(cmd.Params)
	if err != nil {
		return domain.Failed(domain.ReasonInvalidParameters)
	}
	if params.HistoryName == "" || params.StartTime == "" || params.EndTime == "" {
		return domain.Failed(domain.ReasonInvalidParameters)
	}

	device, ok := d.devices[token]
	if !ok {
		return domain.Failed(domain.ReasonDeviceNotFound)
	}
	history, ok := device.FindHistory(params.HistoryName)
	if !ok {
		return domain.Failed(domain.ReasonHistoryNotFound)
	}

	start, err := parseCommandTime(params.StartTime, d.deps.Location)
	if err != nil {
		return domain.Failed(domain.ReasonInvalidParameters)
	}
	end, err := parseCommandTime(params.EndTime, d.deps.Location)
	if err != nil {
		return domain.Failed(domain.ReasonInvalidParameters)
	}
	if start.After(end) {
		return domain.Failed(domain.ReasonInvalidRange)
	}

	fields := []ports.Field{
		ports.F("device", device.Name),
		ports.F("history", history.Name),
		ports.F("start", start),
		ports.F("end", end),
	}

	points, err := d.deps.Source.ReadHistory(ctx, domain.HistoryRequest{
		NodeID: history.NodeID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		d.deps.Obs.LogError("command_history_read_failed", err, fields...)
		return domain.Failed(domain.ReasonReadFailed)
	}
	if len(points) == 0 {
		return domain.Failed(domain.ReasonNoData)
	}

	if err := d.deps.Sink.SendTelemetry(ctx, device.Token, historyTelemetry(history.Name, points)); err != nil {
		d.deps.Obs.LogError("command_forward_failed", err, fields...)
		return domain.Failed(domain.ReasonForwardFailed)
	}
	d.deps.Obs.IncCounter(observability.HistoryPointsForwarded, float64(len(points)))
	return domain.Succeeded()
}

// decodeParams accepts params as an object or as a JSON string holding one.
func decodeParams(raw json.RawMessage) (domain.GetHistoryParams, error) {
	var p domain.GetHistoryParams
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, fmt.Errorf("params missing")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return p, err
		}
		raw = []byte(inner)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	p.HistoryName = strings.TrimSpace(p.HistoryName)
	p.StartTime = strings.TrimSpace(p.StartTime)
	p.EndTime = strings.TrimSpace(p.EndTime)
	return p, nil
}

// parseCommandTime accepts RFC 3339 or a zone-less layout read in loc.
func parseCommandTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range commandTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (d *CommandDispatcher) deviceName(token string) string {
	if dev, ok := d.devices[token]; ok {
		return dev.Name
	}
	return "unknown"
}
