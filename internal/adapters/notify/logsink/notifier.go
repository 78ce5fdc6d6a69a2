// Package logsink writes acceptance notices to the structured log. It is
// the sink used when no chat destination is configured.
package logsink

import (
	"context"
	"log/slog"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

type Notifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, notice domain.AcceptanceNotice) error {
	for _, load := range notice.Loads {
		n.logger.InfoContext(ctx, "load accepted",
			"cycle", notice.CycleID,
			"external_id", load.ExternalID,
			"origin", load.OriginLocation,
			"origin_at", load.OriginDateTime,
			"dest", load.DestLocation,
			"dest_at", load.DestDateTime,
			"consignee", load.Consignee,
			"weight_lbs", load.WeightLbs,
			"ship_mode", load.ShipMode,
		)
	}
	return nil
}
