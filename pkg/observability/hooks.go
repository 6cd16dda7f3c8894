// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about knob mutations, node evaluation passes and project
// persistence.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the knob engine never
// imports a metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetKnobHooks(&myKnobHooks{})
//	    observability.SetProjectHooks(&myProjectHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Knobs().OnValueChanged(ctx, observability.KnobEvent{Node: "blur", Knob: "size"})
package observability

import (
	"context"
	"sync"
	"time"
)

// KnobEvent identifies the knob slot an event is about. Dimension and View
// are -1 when the event covers every dimension or view.
type KnobEvent struct {
	// KnobID is stable for the lifetime of the knob, unlike its name.
	KnobID    string
	Node      string
	Knob      string
	Dimension int
	View      int
	Time      float64
	Reason    string

	// Key times added to or removed from the slot by a curve copy.
	KeysAdded   []float64
	KeysRemoved []float64
}

// =============================================================================
// Knob Hooks
// =============================================================================

// KnobHooks receives events from the knob value model.
type KnobHooks interface {
	// OnValueChanged records a value, keyframe or expression change that was
	// propagated to the knob's holder.
	OnValueChanged(ctx context.Context, ev KnobEvent)

	// Link events. master is "node.knob" of the storage owner.
	OnLinked(ctx context.Context, ev KnobEvent, master string)
	OnUnlinked(ctx context.Context, ev KnobEvent, restored bool)

	// OnExpressionInvalid records an expression that failed to compile or evaluate.
	OnExpressionInvalid(ctx context.Context, ev KnobEvent, reason string)

	// View events.
	OnViewSplit(ctx context.Context, ev KnobEvent)
	OnViewUnsplit(ctx context.Context, ev KnobEvent)
}

// =============================================================================
// Project Hooks
// =============================================================================

// ProjectHooks receives events from nodes and project persistence.
type ProjectHooks interface {
	// OnEvaluate records one coalesced evaluation pass of a node.
	OnEvaluate(ctx context.Context, node string, changedKnobs int)

	// OnLoad records a project decode.
	OnLoad(ctx context.Context, format string, nodeCount int, duration time.Duration, err error)

	// OnSave records a project encode.
	OnSave(ctx context.Context, format string, nodeCount int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopKnobHooks is a no-op implementation of KnobHooks.
type NoopKnobHooks struct{}

func (NoopKnobHooks) OnValueChanged(context.Context, KnobEvent)              {}
func (NoopKnobHooks) OnLinked(context.Context, KnobEvent, string)            {}
func (NoopKnobHooks) OnUnlinked(context.Context, KnobEvent, bool)            {}
func (NoopKnobHooks) OnExpressionInvalid(context.Context, KnobEvent, string) {}
func (NoopKnobHooks) OnViewSplit(context.Context, KnobEvent)                 {}
func (NoopKnobHooks) OnViewUnsplit(context.Context, KnobEvent)               {}

// NoopProjectHooks is a no-op implementation of ProjectHooks.
type NoopProjectHooks struct{}

func (NoopProjectHooks) OnEvaluate(context.Context, string, int)                   {}
func (NoopProjectHooks) OnLoad(context.Context, string, int, time.Duration, error) {}
func (NoopProjectHooks) OnSave(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	knobHooks    KnobHooks    = NoopKnobHooks{}
	projectHooks ProjectHooks = NoopProjectHooks{}
	hooksMu      sync.RWMutex
)

// SetKnobHooks registers custom knob hooks.
// This should be called once at application startup before any knob is created.
func SetKnobHooks(h KnobHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		knobHooks = h
	}
}

// SetProjectHooks registers custom project hooks.
// This should be called once at application startup before any project is loaded.
func SetProjectHooks(h ProjectHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		projectHooks = h
	}
}

// Knobs returns the registered knob hooks.
func Knobs() KnobHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return knobHooks
}

// Project returns the registered project hooks.
func Project() ProjectHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return projectHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	knobHooks = NoopKnobHooks{}
	projectHooks = NoopProjectHooks{}
}
