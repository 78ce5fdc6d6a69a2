package application

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type cycleIDKey struct{}

func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, cycleID)
}

// CycleIDFrom returns the cycle id carried by ctx, or a new ULID when the
// caller did not set one.
func CycleIDFrom(ctx context.Context) string {
	if cycleID, ok := ctx.Value(cycleIDKey{}).(string); ok && cycleID != "" {
		return cycleID
	}
	return ulid.Make().String()
}
