//go:generate mockgen -destination=mock_ports.go -package=ports github.com/ghalamif/uabridge/internal/ports Source,TelemetrySink

package ports

import (
	"context"

	"github.com/ghalamif/uabridge/internal/domain"
)

// TelemetrySink is the device API of the telemetry platform. Every call is
// addressed by the device's access token.
type TelemetrySink interface {
	SendAttributes(ctx context.Context, token string, attrs map[string]any) error
	SendTelemetry(ctx context.Context, token string, samples []domain.Telemetry) error
	GetAttributes(ctx context.Context, token string, clientKeys, sharedKeys []string) (*domain.Attributes, error)
	// PollCommand returns (nil, nil) when no command is pending.
	PollCommand(ctx context.Context, token string) (*domain.Command, error)
	RespondCommand(ctx context.Context, token string, id int, resp domain.CommandResponse) error
}
