package ports

import (
	"context"

	"github.com/bnema/truck-load-watch/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, notice domain.AcceptanceNotice) error
}
