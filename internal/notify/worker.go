package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/medcart/internal/domain/notification"
)

// WorkerConfig tunes the dispatch loop.
type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Worker drains the notification outbox through a Dispatcher.
type Worker struct {
	outbox     notification.Outbox
	dispatcher notification.Dispatcher
	cfg        WorkerConfig
	tracer     trace.Tracer
}

// NewWorker creates an outbox worker.
func NewWorker(outbox notification.Outbox, dispatcher notification.Dispatcher, cfg WorkerConfig, tracer trace.Tracer) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Worker{outbox: outbox, dispatcher: dispatcher, cfg: cfg, tracer: tracer}
}

// Run processes batches every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("notify")
	lg.Info("Starting outbox worker",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize),
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("Outbox worker stopping")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				lg.Error("Process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch dispatches one batch and returns how many messages were handled.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := w.tracer.Start(ctx, "notify.ProcessBatch")
	defer span.End()

	lg := zctx.From(ctx)
	n, err := w.outbox.Process(ctx, w.cfg.BatchSize, w.cfg.MaxAttempts, func(ctx context.Context, m notification.Message) error {
		if err := w.dispatcher.Dispatch(ctx, m); err != nil {
			lg.Warn("Dispatch notification",
				zap.Stringer("id", m.ID),
				zap.String("type", string(m.Notification.Type)),
				zap.Int("attempt", m.Attempts+1),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
	span.SetAttributes(attribute.Int("outbox.processed", n))
	if err != nil {
		span.RecordError(err)
		return n, errors.Wrap(err, "process outbox")
	}
	return n, nil
}
