package status

import (
	"context"

	"github.com/matheus3301/tgp/internal/bus"
	"go.uber.org/zap"
)

// Monitor moves the machine between Ready and Degraded as batch writes fail
// and recover.
type Monitor struct {
	machine *Machine
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor for m.
func NewMonitor(m *Machine, b *bus.Bus, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{machine: m, bus: b, logger: logger}
}

// Start subscribes to recorder outcomes.
func (mon *Monitor) Start(ctx context.Context) {
	ctx, mon.cancel = context.WithCancel(ctx)
	mon.done = make(chan struct{})
	ch, unsub := mon.bus.Subscribe("account.record", 16)

	go func() {
		defer close(mon.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				mon.observe(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the monitor and waits for it to exit.
func (mon *Monitor) Stop() {
	if mon.cancel != nil {
		mon.cancel()
		<-mon.done
	}
}

func (mon *Monitor) observe(evt bus.Event) {
	current := mon.machine.Current()
	switch {
	case evt.Kind == bus.KindAccountRecordFailed && current == Ready:
		mon.logger.Warn("store writes failing, daemon degraded")
		_ = mon.machine.Transition(Degraded)
	case evt.Kind == bus.KindAccountRecorded && current == Degraded:
		mon.logger.Info("store writes recovered")
		_ = mon.machine.Transition(Ready)
	}
}
