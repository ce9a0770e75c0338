package domain

import "encoding/json"

// MethodGetHistory fetches a named history stream over an explicit range.
const MethodGetHistory = "getHistory"

// Failure reasons returned to the caller of a remote command.
const (
	ReasonInvalidParameters = "Invalid parameters."
	ReasonDeviceNotFound    = "Device not found."
	ReasonHistoryNotFound   = "History not found."
	ReasonInvalidRange      = "Invalid time range."
	ReasonNoData            = "No data found."
	ReasonReadFailed        = "History read failed."
	ReasonForwardFailed     = "Telemetry forward failed."
	ReasonUnknownMethod     = "Unknown method."
)

// Command is a server-side RPC request pulled from the sink.
type Command struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// CommandResponse is posted back for every command, including rejected ones.
type CommandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Succeeded is the response for a fully handled command.
func Succeeded() CommandResponse {
	return CommandResponse{Success: true}
}

// Failed is the response for a command that could not be handled.
func Failed(reason string) CommandResponse {
	return CommandResponse{Success: false, Message: reason}
}

// GetHistoryParams are the params of MethodGetHistory.
type GetHistoryParams struct {
	HistoryName string `json:"historyName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}
