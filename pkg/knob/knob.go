package knob

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/expr"
)

// Knob is an animated parameter holding values of type T.
//
// All methods are safe for concurrent use. Every (dimension, view) slot and
// every per-slot map has its own lock, so readers of one dimension are not
// blocked by writers of another.
type Knob[T Value] struct {
	id     uuid.UUID
	name   string
	kind   Kind
	nDims  int
	holder Holder
	opts   options
	views  *anim.AnimatingObject

	dataMu sync.RWMutex
	data   []map[anim.ViewIdx]*dimViewData[T]
	saved  []map[anim.ViewIdx]*dimViewData[T]

	defMu      sync.RWMutex
	defaults   []T
	initial    []T
	initialSet []bool

	exprMu sync.RWMutex
	exprs  []map[anim.ViewIdx]*expression

	modMu    sync.Mutex
	modified []map[anim.ViewIdx]bool

	visMu      sync.Mutex
	allVisible map[anim.ViewIdx]bool

	lisMu     sync.Mutex
	listeners []Listener

	hashMu    sync.Mutex
	hashCache map[HashArgs]uint64
	hashGen   uint64 // bumped by invalidateHash

	pendingMu sync.Mutex
	pending   []pendingRestore
}

// NewInt returns an integer knob with dims dimensions.
func NewInt(h Holder, name string, dims int, opts ...Option) *Knob[int] {
	return newKnob[int](h, KindInt, name, dims, opts)
}

// NewDouble returns a floating point knob with dims dimensions.
func NewDouble(h Holder, name string, dims int, opts ...Option) *Knob[float64] {
	return newKnob[float64](h, KindDouble, name, dims, opts)
}

// NewColor returns an rgb (3) or rgba (4) color knob.
func NewColor(h Holder, name string, dims int, opts ...Option) *Knob[float64] {
	return newKnob[float64](h, KindColor, name, dims, opts)
}

// NewBool returns a boolean knob.
func NewBool(h Holder, name string, opts ...Option) *Knob[bool] {
	return newKnob[bool](h, KindBool, name, 1, opts)
}

// NewChoice returns a choice knob holding the selected index.
func NewChoice(h Holder, name string, opts ...Option) *Knob[int] {
	return newKnob[int](h, KindChoice, name, 1, opts)
}

// NewButton returns a button knob. Buttons never animate.
func NewButton(h Holder, name string, opts ...Option) *Knob[bool] {
	return newKnob[bool](h, KindButton, name, 1, opts)
}

// NewString returns a string knob.
func NewString(h Holder, name string, opts ...Option) *Knob[string] {
	return newKnob[string](h, KindString, name, 1, opts)
}

// NewPath returns a file path knob. Paths never animate.
func NewPath(h Holder, name string, opts ...Option) *Knob[string] {
	return newKnob[string](h, KindPath, name, 1, opts)
}

// Create returns a knob of the given kind. It is used when the kind is only
// known at run time, for instance when loading a project.
func Create(h Holder, kind Kind, name string, dims int, opts ...Option) (Param, error) {
	if dims < 1 {
		return nil, errors.Invalid("knob %q: dimension count %d", name, dims)
	}
	switch kind {
	case KindInt, KindChoice:
		return newKnob[int](h, kind, name, dims, opts), nil
	case KindDouble, KindColor:
		return newKnob[float64](h, kind, name, dims, opts), nil
	case KindBool, KindButton:
		return newKnob[bool](h, kind, name, dims, opts), nil
	case KindString, KindPath:
		return newKnob[string](h, kind, name, dims, opts), nil
	}
	return nil, errors.Invalid("knob %q: unknown kind %v", name, kind)
}

func newKnob[T Value](h Holder, kind Kind, name string, dims int, opts []Option) *Knob[T] {
	if dims < 1 {
		dims = 1
	}
	o := defaultOptions()
	o.animated = kind.Animatable()
	for _, opt := range opts {
		opt(&o)
	}
	if !kind.Animatable() {
		o.animated = false
	}
	if o.label == "" {
		o.label = name
	}

	k := &Knob[T]{
		id:         uuid.New(),
		name:       name,
		kind:       kind,
		nDims:      dims,
		holder:     h,
		opts:       o,
		views:      anim.NewAnimatingObject(o.canSplitViews),
		data:       make([]map[anim.ViewIdx]*dimViewData[T], dims),
		saved:      make([]map[anim.ViewIdx]*dimViewData[T], dims),
		defaults:   make([]T, dims),
		initial:    make([]T, dims),
		initialSet: make([]bool, dims),
		exprs:      make([]map[anim.ViewIdx]*expression, dims),
		modified:   make([]map[anim.ViewIdx]bool, dims),
		allVisible: map[anim.ViewIdx]bool{anim.ViewMain: true},
		hashCache:  make(map[HashArgs]uint64),
	}
	for d := range dims {
		data := k.newData(k.defaults[d])
		data.owners = []owner[T]{{knob: k, dim: anim.DimIdx(d), view: anim.ViewMain}}
		k.data[d] = map[anim.ViewIdx]*dimViewData[T]{anim.ViewMain: data}
		k.saved[d] = make(map[anim.ViewIdx]*dimViewData[T])
		k.exprs[d] = make(map[anim.ViewIdx]*expression)
		k.modified[d] = map[anim.ViewIdx]bool{anim.ViewMain: false}
	}
	if r, ok := h.(Registrar); ok {
		r.RegisterKnob(k)
	}
	return k
}

func (k *Knob[T]) newData(v T) *dimViewData[T] {
	d := newData(k.kind.DataType(), k.opts.animated, v)
	if d.curve != nil && k.opts.rangeSet {
		d.curve.SetRange(k.opts.min, k.opts.max)
	}
	return d
}

// ID returns the knob's unique identity.
func (k *Knob[T]) ID() uuid.UUID { return k.id }

// Name returns the script name of the knob.
func (k *Knob[T]) Name() string { return k.name }

// Label returns the user facing label.
func (k *Knob[T]) Label() string { return k.opts.label }

// Hint returns the help text.
func (k *Knob[T]) Hint() string { return k.opts.hint }

// Kind returns the kind the knob was created with.
func (k *Knob[T]) Kind() Kind { return k.kind }

// DataType returns the keyframe payload type.
func (k *Knob[T]) DataType() curve.DataType { return k.kind.DataType() }

// Dimensions returns the number of dimensions.
func (k *Knob[T]) Dimensions() int { return k.nDims }

// DimensionName returns the conventional name of dimension d ("x", "r", ...),
// or "" for single dimension knobs.
func (k *Knob[T]) DimensionName(d anim.DimIdx) string {
	return k.kind.dimensionName(int(d), k.nDims)
}

// Holder returns the knob's holder, which may be nil.
func (k *Knob[T]) Holder() Holder { return k.holder }

// IsAnimatable reports whether the knob can hold keyframes.
func (k *Knob[T]) IsAnimatable() bool { return k.opts.animated }

// IsPersistent reports whether the knob is saved with its holder.
func (k *Knob[T]) IsPersistent() bool { return k.opts.persistent }

// IsUserKnob reports whether the knob was created by the user.
func (k *Knob[T]) IsUserKnob() bool { return k.opts.userKnob }

// IsMetadataSlave reports whether the knob affects metadata.
func (k *Knob[T]) IsMetadataSlave() bool { return k.opts.metadataSlave }

// EvaluateOnChange reports whether changes trigger a holder evaluation.
func (k *Knob[T]) EvaluateOnChange() bool { return k.opts.evaluateOnChange }

// HashingStrategy returns how animated dimensions are hashed.
func (k *Knob[T]) HashingStrategy() HashingStrategy { return k.opts.hashing }

func (k *Knob[T]) String() string {
	return fmt.Sprintf("%s(%s)", qualifiedName(k), k.kind)
}

func (k *Knob[T]) app() App {
	if k.holder == nil {
		return nil
	}
	return k.holder.App()
}

func (k *Knob[T]) logger() *log.Logger {
	if a := k.app(); a != nil && a.Logger() != nil {
		return a.Logger()
	}
	return log.Default()
}

func (k *Knob[T]) beginChanges() {
	if k.holder != nil {
		k.holder.BeginChanges()
	}
}

func (k *Knob[T]) endChanges() {
	if k.holder != nil {
		k.holder.EndChanges()
	}
}

// currentTime returns the render time of ctx, else the holder's time.
func (k *Knob[T]) currentTime(ctx context.Context) float64 {
	if rc, ok := anim.RenderContextFrom(ctx); ok {
		return rc.Time
	}
	if k.holder != nil {
		return k.holder.CurrentTime(ctx)
	}
	return 0
}

func (k *Knob[T]) currentView(ctx context.Context) anim.ViewIdx {
	if rc, ok := anim.RenderContextFrom(ctx); ok {
		return rc.View
	}
	if k.holder != nil {
		return k.holder.CurrentView(ctx)
	}
	return anim.ViewMain
}

// checkDim returns an INVALID_ARGUMENT error when d is out of range.
func (k *Knob[T]) checkDim(d anim.DimIdx) error {
	if d < 0 || int(d) >= k.nDims {
		return errors.Invalid("knob %q: dimension %d out of range [0,%d)", k.name, d, k.nDims)
	}
	return nil
}

func (k *Knob[T]) dims(s anim.DimSpec) ([]anim.DimIdx, error) {
	dims, ok := anim.ExpandDims(s, k.nDims)
	if !ok {
		return nil, errors.Invalid("knob %q: dimension %v out of range [0,%d)", k.name, s, k.nDims)
	}
	return dims, nil
}

// ViewIdxFromGetSpec resolves a getter view spec to a split view, falling
// back to the main view.
func (k *Knob[T]) ViewIdxFromGetSpec(ctx context.Context, s anim.ViewGetSpec) anim.ViewIdx {
	v := s.Value()
	if s.IsCurrent() {
		v = k.currentView(ctx)
	}
	return k.views.ResolveView(v)
}

// setViews resolves a setter view spec to distinct split views.
func (k *Knob[T]) setViews(ctx context.Context, s anim.ViewSetSpec) ([]anim.ViewIdx, error) {
	switch {
	case s.IsAll():
		return k.views.Views(), nil
	case s.IsCurrent():
		return []anim.ViewIdx{k.views.ResolveView(k.currentView(ctx))}, nil
	case s.IsViewIdx():
		return []anim.ViewIdx{k.views.ResolveView(s.Value())}, nil
	}
	return nil, errors.Invalid("knob %q: invalid view spec %v", k.name, s)
}

// slot returns the storage of (d, v). v must already be resolved; a view
// that was unsplit concurrently reads the main view.
func (k *Knob[T]) slot(d anim.DimIdx, v anim.ViewIdx) *dimViewData[T] {
	k.dataMu.RLock()
	defer k.dataMu.RUnlock()
	if data, ok := k.data[d][v]; ok {
		return data
	}
	return k.data[d][anim.ViewMain]
}

func (k *Knob[T]) setSlot(d anim.DimIdx, v anim.ViewIdx, data *dimViewData[T]) {
	k.dataMu.Lock()
	k.data[d][v] = data
	k.dataMu.Unlock()
}

// Curve returns the keyframe curve of (d, v), or nil if the knob cannot
// animate. Mutating it directly bypasses change notification.
func (k *Knob[T]) Curve(d anim.DimIdx, v anim.ViewIdx) *curve.Curve {
	if k.checkDim(d) != nil {
		return nil
	}
	data := k.slot(d, k.views.ResolveView(v))
	data.mu.RLock()
	defer data.mu.RUnlock()
	return data.curve
}

func (k *Knob[T]) exprKind() expr.Kind {
	if k.kind.DataType() == curve.DataTypeString {
		return expr.KindText
	}
	return expr.KindNumber
}
