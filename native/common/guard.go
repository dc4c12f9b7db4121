package common

import "sync/atomic"

// ErrModulePaused is returned when a governance pause switch blocks a module's
// mutating operations.
var ErrModulePaused = State("module paused")

// ErrReentrantCall is returned when a mutating operation enters an engine that
// is mid-flight in an external asset transfer. Reentrant calls are rejected
// outright, never queued.
var ErrReentrantCall = State("reentrant call rejected")

// PauseView reports whether a named module is currently paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the operation when the module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a concurrency-safe PauseView with toggleable switches per module.
type Pauses struct {
	paused map[string]*atomic.Bool
}

// NewPauses constructs pause switches for the given module names. Switches for
// unknown modules read as unpaused.
func NewPauses(modules ...string) *Pauses {
	p := &Pauses{paused: make(map[string]*atomic.Bool, len(modules))}
	for _, m := range modules {
		p.paused[m] = new(atomic.Bool)
	}
	return p
}

// IsPaused satisfies PauseView.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	flag, ok := p.paused[module]
	return ok && flag.Load()
}

// SetPaused flips the switch for a known module and reports whether the module
// name was recognised.
func (p *Pauses) SetPaused(module string, paused bool) bool {
	if p == nil {
		return false
	}
	flag, ok := p.paused[module]
	if !ok {
		return false
	}
	flag.Store(paused)
	return true
}

// CallGuard marks the window during which an engine is executing an external
// asset transfer. Mutating entrypoints consult Enter before taking the engine
// lock: a call arriving while the guard is armed would otherwise be a
// reentrant callback from the transfer target, so it is rejected.
type CallGuard struct {
	armed atomic.Bool
}

// Enter rejects the call when the guard is armed.
func (g *CallGuard) Enter() error {
	if g.armed.Load() {
		return ErrReentrantCall
	}
	return nil
}

// Arm marks the start of an external transfer window.
func (g *CallGuard) Arm() { g.armed.Store(true) }

// Disarm marks the end of the transfer window.
func (g *CallGuard) Disarm() { g.armed.Store(false) }
