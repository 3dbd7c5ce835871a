package store

import (
	"context"
	"time"

	"github.com/matheus3301/tgp/internal/bus"
	"github.com/matheus3301/tgp/internal/drain"
	"go.uber.org/zap"
)

// Recorder persists every drained batch published on the bus.
type Recorder struct {
	db      *DB
	bus     *bus.Bus
	logger  *zap.Logger
	bufSize int
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRecorder creates a batch recorder.
func NewRecorder(db *DB, b *bus.Bus, logger *zap.Logger, bufSize int) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Recorder{db: db, bus: b, logger: logger, bufSize: bufSize}
}

// Start subscribes to batch events. The recorder publishes account.recorded
// from its own loop, so it must not listen on the whole namespace.
func (r *Recorder) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.SubscribeLossless(bus.KindAccountBatch, r.bufSize)

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handle(ctx, evt)
			case <-ctx.Done():
				flush := context.WithoutCancel(ctx)
				for {
					select {
					case evt := <-ch:
						r.handle(flush, evt)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop stops the recorder and waits for it to exit. Batches already
// buffered on the subscription are written first.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Recorder) handle(ctx context.Context, evt bus.Event) {
	if evt.Kind != bus.KindAccountBatch {
		return
	}
	batch, ok := evt.Payload.(*drain.Batch)
	if !ok {
		r.logger.Warn("unexpected payload", zap.String("kind", evt.Kind))
		return
	}
	r.record(ctx, batch)
}

func (r *Recorder) record(ctx context.Context, batch *drain.Batch) {
	if err := r.db.SaveBatch(ctx, batch); err != nil {
		r.logger.Error("failed to record batch", zap.Error(err), zap.String("batch_id", batch.ID))
		r.bus.Publish(bus.Event{
			Kind:      bus.KindAccountRecordFailed,
			Timestamp: time.Now(),
			Payload:   err,
		})
		return
	}
	r.logger.Debug("batch recorded", zap.String("batch_id", batch.ID))
	r.bus.Publish(bus.Event{
		Kind:      bus.KindAccountRecorded,
		Timestamp: time.Now(),
		Payload:   batch.ID,
	})
}
