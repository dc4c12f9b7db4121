package events

import (
	"log/slog"
	"math/big"
	"sync"

	"defiledger/core/types"
)

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers, tests).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding everything. Engines default
// to it so event wiring stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder collects emitted events for inspection in tests and the RPC event
// feed.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// LogEmitter writes every event to a structured logger. The daemon uses it so
// state changes land in the log stream alongside engine output.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wires a LogEmitter to logger, falling back to the default
// logger when nil.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	flattened := evt.Event()
	if flattened == nil {
		return
	}
	attrs := make([]any, 0, 2+2*len(flattened.Attributes))
	attrs = append(attrs, "event", flattened.Type)
	for k, v := range flattened.Attributes {
		attrs = append(attrs, k, v)
	}
	l.logger.Info("ledger event", attrs...)
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if evt == nil {
		return
	}
	flattened := evt.Event()
	if flattened == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, flattened)
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
