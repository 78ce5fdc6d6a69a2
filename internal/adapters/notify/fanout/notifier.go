// Package fanout delivers one notice to several sinks concurrently.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/truck-load-watch/internal/domain"
	"github.com/bnema/truck-load-watch/internal/ports"
)

type Sink struct {
	Name     string
	Notifier ports.Notifier
}

type Notifier struct {
	sinks []Sink
}

var _ ports.Notifier = (*Notifier)(nil)

func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

func (n *Notifier) Len() int {
	return len(n.sinks)
}

// Notify waits for every sink. A failing sink never stops the others; all
// failures are joined.
func (n *Notifier) Notify(ctx context.Context, notice domain.AcceptanceNotice) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, sink := range n.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Notifier.Notify(ctx, notice); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sink.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
