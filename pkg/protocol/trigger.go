package protocol

import (
	"context"
	"log/slog"
)

// TriggerCallback maps an observed external cause to an execution request.
type TriggerCallback func(ctx context.Context, definitionID string, payload map[string]any) error

// TriggerSource watches an external cause (cron schedule, queue, webhook) and
// invokes the callback for each observed occurrence. The engine never listens
// for causes itself.
type TriggerSource interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerSourceFactory creates trigger sources from configuration.
type TriggerSourceFactory interface {
	Create(config map[string]any, logger *slog.Logger) (TriggerSource, error)
	ID() string
}
