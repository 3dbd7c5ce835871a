package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/tgp/internal/bus"
	"go.uber.org/goleak"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Ready}},
		{[]State{Error, Booting}},
		{[]State{Ready, Degraded, Ready}},
		{[]State{Ready, Degraded, Stopping}},
		{[]State{Stopping}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, to := range tt.path {
			from := m.Current()
			if err := m.Transition(to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", from, to, err)
			}
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Degraded); err == nil {
		t.Error("Transition(BOOTING -> DEGRADED) should fail")
	}
	_ = m.Transition(Stopping)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(STOPPING -> READY) should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("daemon.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Ready); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change := evt.Payload.(StatusChange)
		if change.From != Booting || change.To != Ready {
			t.Errorf("change = %+v, want BOOTING -> READY", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}
}

func TestMonitorDegradesAndRecovers(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := bus.New()
	m := NewMachine(b)
	_ = m.Transition(Ready)

	changes, unsub := b.Subscribe(bus.KindDaemonStatusChanged, 10)
	defer unsub()

	mon := NewMonitor(m, b, nil)
	mon.Start(context.Background())
	defer mon.Stop()

	b.Publish(bus.Event{Kind: bus.KindAccountRecordFailed, Timestamp: time.Now(), Payload: errors.New("disk full")})
	waitFor(t, changes, Degraded)

	b.Publish(bus.Event{Kind: bus.KindAccountRecorded, Timestamp: time.Now(), Payload: "b1"})
	waitFor(t, changes, Ready)
}

func waitFor(t *testing.T, ch <-chan bus.Event, want State) {
	t.Helper()
	select {
	case evt := <-ch:
		if got := evt.Payload.(StatusChange).To; got != want {
			t.Fatalf("state = %s, want %s", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", want)
	}
}
