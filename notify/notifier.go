// Package notify delivers completed scan results to external consumers.
package notify

import (
	"context"

	"arbflow/logger"
	"arbflow/models"
)

// Sink consumes a scan result. Implementations must tolerate being called
// once per monitor iteration.
type Sink interface {
	Publish(ctx context.Context, result models.ScanResult) error
}

// Fanout forwards each result to every registered sink. A failing sink is
// logged and skipped; it never blocks delivery to the others.
type Fanout struct {
	sinks []Sink
	log   *logger.Log
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: logger.GetLogger()}
}

func (f *Fanout) Publish(ctx context.Context, result models.ScanResult) error {
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, result); err != nil {
			f.log.WithComponent("notify").WithError(err).Warn("sink publish failed")
		}
	}
	return nil
}
