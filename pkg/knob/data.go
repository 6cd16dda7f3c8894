package knob

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
)

var dataIDs atomic.Uint64

type owner[T Value] struct {
	knob *Knob[T]
	dim  anim.DimIdx
	view anim.ViewIdx
}

// dimViewData is the storage of one or more (knob, dimension, view) slots.
// Its owners are the slots pointing at it, in insertion order; they are
// used for notification and never for lifetime.
type dimViewData[T Value] struct {
	id uint64

	mu      sync.RWMutex
	value   T
	curve   *curve.Curve           // nil when the knob cannot animate
	strings *curve.StringAnimation // string payloads only
	owners  []owner[T]
}

func newData[T Value](typ curve.DataType, animated bool, v T) *dimViewData[T] {
	d := &dimViewData[T]{id: dataIDs.Add(1), value: v}
	if animated {
		d.curve = curve.New(typ)
		if typ == curve.DataTypeString {
			d.strings = curve.NewStringAnimation()
		}
	}
	return d
}

// clone returns an unowned copy of the value and curve.
func (d *dimViewData[T]) clone() *dimViewData[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := &dimViewData[T]{id: dataIDs.Add(1), value: d.value}
	if d.curve != nil {
		out.curve = d.curve.Clone()
	}
	if d.strings != nil {
		out.strings = d.strings.Clone()
	}
	return out
}

// copyFrom replaces the value and curve of d with those of src, shifting
// keyframes by offset and keeping only those in r. It reports whether
// anything differed and the key times the copy added and removed.
func (d *dimViewData[T]) copyFrom(src *dimViewData[T], offset float64, r *curve.TimeRange) (changed bool, added, removed []float64) {
	if d == src {
		return false, nil, nil
	}
	unlock := lockData(src, d)
	changed = d.value != src.value
	d.value = src.value
	var curveChanged bool
	if d.curve != nil && src.curve != nil {
		curveChanged, added, removed = d.curve.CloneFrom(src.curve, offset, r)
		if src.strings != nil {
			d.strings = src.strings.Clone()
		}
	}
	unlock()
	return changed || curveChanged, added, removed
}

// lockData read-locks src and write-locks dst in ascending id order.
func lockData[T Value](src, dst *dimViewData[T]) (unlock func()) {
	if src.id < dst.id {
		src.mu.RLock()
		dst.mu.Lock()
	} else {
		dst.mu.Lock()
		src.mu.RLock()
	}
	return func() {
		src.mu.RUnlock()
		dst.mu.Unlock()
	}
}

// lockAll write-locks every distinct storage in ascending id order.
func lockAll[T Value](ds []*dimViewData[T]) (unlock func()) {
	sorted := slices.Clone(ds)
	slices.SortFunc(sorted, func(a, b *dimViewData[T]) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	sorted = slices.Compact(sorted)
	for _, d := range sorted {
		d.mu.Lock()
	}
	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			sorted[i].mu.Unlock()
		}
	}
}

func (d *dimViewData[T]) animated() bool {
	return d.curve != nil && d.curve.IsAnimated()
}

// valueAt returns the curve value at t if animated, else the plain value.
// The caller holds d.mu.
func (d *dimViewData[T]) valueAt(t float64) T {
	if !d.animated() {
		return d.value
	}
	if d.strings != nil {
		s, _ := d.strings.StringAt(d.curve, t)
		return any(s).(T)
	}
	return fromFloat[T](d.curve.ValueAt(t))
}

func (d *dimViewData[T]) addOwner(o owner[T]) {
	if !slices.Contains(d.owners, o) {
		d.owners = append(d.owners, o)
	}
}

func (d *dimViewData[T]) removeOwner(o owner[T]) {
	d.owners = slices.DeleteFunc(d.owners, func(x owner[T]) bool { return x == o })
}

func toFloat[T Value](v T) float64 {
	switch x := any(v).(type) {
	case int:
		return float64(x)
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func fromFloat[T Value](f float64) T {
	var zero T
	var out any
	switch any(zero).(type) {
	case int:
		out = int(math.Round(f))
	case float64:
		out = f
	case bool:
		out = f >= 0.5
	default:
		return zero
	}
	return out.(T)
}
