package knob

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/expr"
)

// Holder owns a set of knobs and is notified of their changes.
type Holder interface {
	Name() string

	// BeginChanges and EndChanges nest. Only the outermost EndChanges
	// runs the holder's evaluation pass.
	BeginChanges()
	EndChanges()

	// OnKnobValueChanged is called after a knob's value changed in view.
	// It reports whether the holder handled the change.
	OnKnobValueChanged(ctx context.Context, k Param, reason Reason, t float64, view anim.ViewIdx) bool

	// OnKnobViewsChanged is called after a knob split or unsplit a view.
	OnKnobViewsChanged(ctx context.Context, k Param)

	// CurrentTime and CurrentView are the holder's timeline position, used
	// when the context carries no render context.
	CurrentTime(ctx context.Context) float64
	CurrentView(ctx context.Context) anim.ViewIdx

	// InvalidateHash drops any hash the holder cached over its knobs.
	InvalidateHash()

	// App returns the application, or nil for a standalone holder without
	// auto-keying or expressions.
	App() App
}

// Registrar is implemented by holders that keep a list of their knobs.
// Knobs register themselves on construction.
type Registrar interface {
	RegisterKnob(k Param)
}

// App is the application-wide collaborator of a holder.
type App interface {
	// Compiler returns the expression compiler, or nil if expressions are
	// not available.
	Compiler() expr.Compiler
	// AutoKeying reports whether user edits create keyframes.
	AutoKeying() bool
	// ResolveKnob finds the knob an expression reference names, relative to from.
	ResolveKnob(from Param, ref string) (Param, error)
	Logger() *log.Logger
}

// SlotRef names one (knob, dimension, view) slot.
type SlotRef struct {
	Knob      Param
	Dimension anim.DimIdx
	View      anim.ViewIdx
}

func (r SlotRef) String() string {
	return fmt.Sprintf("%s[%d]@%d", qualifiedName(r.Knob), r.Dimension, r.View)
}

// Listener is a slot whose expression reads a dimension of another knob.
type Listener struct {
	Knob      Param
	Dimension anim.DimIdx
	View      anim.ViewIdx

	// ListenedDimension is the dimension of the listened knob being read.
	ListenedDimension anim.DimIdx
}

func qualifiedName(p Param) string {
	if p == nil {
		return "<nil>"
	}
	if h := p.Holder(); h != nil && h.Name() != "" {
		return h.Name() + "." + p.Name()
	}
	return p.Name()
}

type ctxKey int

const (
	batchKey ctxKey = iota
	evaluatingKey
)

// batch is the set of knobs already notified in one top-level change.
type batch struct {
	mu      sync.Mutex
	visited map[Param]bool
}

// withBatch returns a context carrying the current change batch, creating
// one if ctx has none.
func withBatch(ctx context.Context) (context.Context, *batch) {
	if b, ok := ctx.Value(batchKey).(*batch); ok {
		return ctx, b
	}
	b := &batch{visited: make(map[Param]bool)}
	return context.WithValue(ctx, batchKey, b), b
}

// visit marks p and reports whether it was not visited before.
func (b *batch) visit(p Param) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.visited[p] {
		return false
	}
	b.visited[p] = true
	return true
}

type evalSlot struct {
	knob Param
	dim  anim.DimIdx
	view anim.ViewIdx
}

// evaluating is an immutable linked set of slots whose expression is being
// evaluated on this call stack.
type evaluating struct {
	slot evalSlot
	next *evaluating
}

func (e *evaluating) contains(s evalSlot) bool {
	for ; e != nil; e = e.next {
		if e.slot == s {
			return true
		}
	}
	return false
}

func enterEvaluation(ctx context.Context, s evalSlot) (context.Context, bool) {
	cur, _ := ctx.Value(evaluatingKey).(*evaluating)
	if cur.contains(s) {
		return ctx, false
	}
	return context.WithValue(ctx, evaluatingKey, &evaluating{slot: s, next: cur}), true
}
