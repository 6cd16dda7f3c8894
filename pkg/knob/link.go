package knob

import (
	"context"
	"sync"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/observability"
)

// topologyMu serializes changes to which storage a slot points at (link,
// unlink, split, unsplit) across all knobs. Value reads and writes do not
// take it.
var topologyMu sync.Mutex

type slotPair struct {
	dim, otherDim   anim.DimIdx
	view, otherView anim.ViewIdx
}

// pairs resolves a (this, other) addressing pair. "All" on one side must be
// matched by "all" on the other.
func (k *Knob[T]) pairs(ctx context.Context, o *Knob[T], dim, otherDim anim.DimSpec, view, otherView anim.ViewSetSpec) ([]slotPair, error) {
	if dim.IsAll() != otherDim.IsAll() {
		return nil, errors.Invalid("knob %q: dimension %v cannot pair with %v", k.name, dim, otherDim)
	}
	if view.IsAll() != otherView.IsAll() {
		return nil, errors.Invalid("knob %q: view %v cannot pair with %v", k.name, view, otherView)
	}

	var dims [][2]anim.DimIdx
	if dim.IsAll() {
		if k.nDims != o.nDims {
			return nil, errors.Invalid("knob %q has %d dimensions, %q has %d", k.name, k.nDims, o.name, o.nDims)
		}
		for d := range k.nDims {
			dims = append(dims, [2]anim.DimIdx{anim.DimIdx(d), anim.DimIdx(d)})
		}
	} else {
		if err := k.checkDim(dim.Value()); err != nil {
			return nil, err
		}
		if err := o.checkDim(otherDim.Value()); err != nil {
			return nil, err
		}
		dims = [][2]anim.DimIdx{{dim.Value(), otherDim.Value()}}
	}

	var views [][2]anim.ViewIdx
	if view.IsAll() {
		for _, v := range k.views.Views() {
			views = append(views, [2]anim.ViewIdx{v, o.views.ResolveView(v)})
		}
	} else {
		mine, err := k.setViews(ctx, view)
		if err != nil {
			return nil, err
		}
		theirs, err := o.setViews(ctx, otherView)
		if err != nil {
			return nil, err
		}
		views = [][2]anim.ViewIdx{{mine[0], theirs[0]}}
	}

	out := make([]slotPair, 0, len(dims)*len(views))
	for _, d := range dims {
		for _, v := range views {
			out = append(out, slotPair{dim: d[0], otherDim: d[1], view: v[0], otherView: v[1]})
		}
	}
	return out, nil
}

func (k *Knob[T]) peer(other Param) (*Knob[T], error) {
	o, ok := other.(*Knob[T])
	if !ok || o == nil {
		var zero T
		return nil, errors.Invalid("knob %q holds %T values and cannot pair with %v", k.name, zero, other)
	}
	return o, nil
}

// LinkTo makes the selected slots of k share the storage of the matching
// slots of other. It reports whether any slot changed storage.
//
// The storage a slot held before its first link is kept and restored by
// Unlink. Every slot that shared the old storage follows the link.
func (k *Knob[T]) LinkTo(ctx context.Context, other Param, dim, otherDim anim.DimSpec, view, otherView anim.ViewSetSpec) (bool, error) {
	o, err := k.peer(other)
	if err != nil {
		return false, err
	}
	pairs, err := k.pairs(ctx, o, dim, otherDim, view, otherView)
	if err != nil {
		return false, err
	}

	var changes []change
	now := k.currentTime(ctx)
	for _, p := range pairs {
		if k.linkSlot(p, o) {
			changes = append(changes, change{dim: p.dim, view: p.view, t: now})
			observability.Knobs().OnLinked(ctx, k.event(int(p.dim), int(p.view), now, ReasonPluginEdited), qualifiedName(o))
		}
	}
	if len(changes) == 0 {
		return false, nil
	}
	k.beginChanges()
	k.evaluateValueChange(ctx, changes, ReasonPluginEdited)
	k.endChanges()
	return true, nil
}

func (k *Knob[T]) linkSlot(p slotPair, o *Knob[T]) bool {
	topologyMu.Lock()
	defer topologyMu.Unlock()

	src := o.slot(p.otherDim, p.otherView)
	old := k.slot(p.dim, p.view)
	if src == old {
		return false
	}

	k.dataMu.Lock()
	if k.saved[p.dim][p.view] == nil {
		k.saved[p.dim][p.view] = old
	}
	k.dataMu.Unlock()

	unlock := lockAll([]*dimViewData[T]{old, src})
	moved := old.owners
	old.owners = nil
	for _, m := range moved {
		src.addOwner(m)
	}
	unlock()

	for _, m := range moved {
		m.knob.setSlot(m.dim, m.view, src)
	}
	return true
}

// Unlink gives the selected slots their own storage again. If a slot has a
// snapshot from before it was linked and copyState is false, the snapshot
// is restored; otherwise the slot gets an independent copy of the state it
// currently shares. Expressions are not affected.
func (k *Knob[T]) Unlink(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec, copyState bool) error {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}
	var changes []change
	now := k.currentTime(ctx)
	for _, a := range addrs {
		changed, restored := k.unlinkSlot(a, copyState)
		if changed {
			changes = append(changes, change{dim: a.dim, view: a.view, t: now})
			observability.Knobs().OnUnlinked(ctx, k.event(int(a.dim), int(a.view), now, ReasonPluginEdited), restored)
		}
	}
	if len(changes) == 0 {
		return nil
	}
	k.beginChanges()
	k.evaluateValueChange(ctx, changes, ReasonPluginEdited)
	k.endChanges()
	return nil
}

func (k *Knob[T]) unlinkSlot(a slotAddr, copyState bool) (changed, restored bool) {
	topologyMu.Lock()
	defer topologyMu.Unlock()

	self := owner[T]{knob: k, dim: a.dim, view: a.view}
	cur := k.slot(a.dim, a.view)
	k.dataMu.RLock()
	saved := k.saved[a.dim][a.view]
	k.dataMu.RUnlock()

	cur.mu.Lock()
	sole := len(cur.owners) == 1 && cur.owners[0] == self
	if sole && saved == nil {
		cur.mu.Unlock()
		return false, false
	}
	cur.removeOwner(self)
	cur.mu.Unlock()

	next := saved
	if saved == nil || copyState {
		next = cur.clone()
	}
	next.mu.Lock()
	next.addOwner(self)
	next.mu.Unlock()

	k.dataMu.Lock()
	k.data[a.dim][a.view] = next
	delete(k.saved[a.dim], a.view)
	k.dataMu.Unlock()
	return true, next == saved
}

// IsLinked reports whether (d, v) shares its storage with another slot.
func (k *Knob[T]) IsLinked(d anim.DimIdx, v anim.ViewIdx) bool {
	return len(k.SharedValues(d, v)) > 0
}

// SharingMaster returns the first slot that pointed at the storage of
// (d, v), unless that slot belongs to k itself.
func (k *Knob[T]) SharingMaster(d anim.DimIdx, v anim.ViewIdx) (SlotRef, bool) {
	if k.checkDim(d) != nil {
		return SlotRef{}, false
	}
	data := k.slot(d, k.views.ResolveView(v))
	data.mu.RLock()
	defer data.mu.RUnlock()
	if len(data.owners) == 0 || data.owners[0].knob == k {
		return SlotRef{}, false
	}
	o := data.owners[0]
	return SlotRef{Knob: o.knob, Dimension: o.dim, View: o.view}, true
}

// masterSlot returns the first owner of the storage of (d, v) unless it is
// that slot itself. Unlike SharingMaster it reports links between
// dimensions of the same knob.
func (k *Knob[T]) masterSlot(d anim.DimIdx, v anim.ViewIdx) (SlotRef, bool) {
	v = k.views.ResolveView(v)
	data := k.slot(d, v)
	data.mu.RLock()
	defer data.mu.RUnlock()
	if len(data.owners) == 0 {
		return SlotRef{}, false
	}
	o := data.owners[0]
	if o == (owner[T]{knob: k, dim: d, view: v}) {
		return SlotRef{}, false
	}
	return SlotRef{Knob: o.knob, Dimension: o.dim, View: o.view}, true
}

// SharedValues returns the other slots sharing the storage of (d, v).
func (k *Knob[T]) SharedValues(d anim.DimIdx, v anim.ViewIdx) []SlotRef {
	if k.checkDim(d) != nil {
		return nil
	}
	v = k.views.ResolveView(v)
	self := owner[T]{knob: k, dim: d, view: v}
	data := k.slot(d, v)
	data.mu.RLock()
	defer data.mu.RUnlock()
	var out []SlotRef
	for _, o := range data.owners {
		if o != self {
			out = append(out, SlotRef{Knob: o.knob, Dimension: o.dim, View: o.view})
		}
	}
	return out
}

// CopyKnob copies the value, keyframes and expression of the selected slots
// of other into k as one change. Keyframes outside r (when non-nil) are
// dropped and the rest are shifted by offset. It reports whether anything
// changed.
func (k *Knob[T]) CopyKnob(ctx context.Context, other Param, view anim.ViewSetSpec, dim anim.DimSpec, otherView anim.ViewSetSpec, otherDim anim.DimSpec, r *curve.TimeRange, offset float64) (bool, error) {
	o, err := k.peer(other)
	if err != nil {
		return false, err
	}
	pairs, err := k.pairs(ctx, o, dim, otherDim, view, otherView)
	if err != nil {
		return false, err
	}

	k.beginChanges()
	defer k.endChanges()

	var changes []change
	now := k.currentTime(ctx)
	for _, p := range pairs {
		changed, added, removed := k.slot(p.dim, p.view).copyFrom(o.slot(p.otherDim, p.otherView), offset, r)
		if o != k || p.dim != p.otherDim || p.view != p.otherView {
			if k.copyExpression(ctx, o, p) {
				changed = true
			}
		}
		if changed {
			changes = append(changes, change{dim: p.dim, view: p.view, t: now, added: added, removed: removed})
		}
	}
	if len(changes) == 0 {
		return false, nil
	}
	k.evaluateValueChange(ctx, changes, ReasonPluginEdited)
	return true, nil
}

func (k *Knob[T]) copyExpression(ctx context.Context, o *Knob[T], p slotPair) bool {
	src := o.expressionAt(p.otherDim, p.otherView)
	dst := k.expressionAt(p.dim, p.view)
	switch {
	case src == nil && dst == nil:
		return false
	case src == nil:
		return k.clearExpressionSlot(p.dim, p.view)
	case dst != nil && dst.src == src.src && dst.usesRet == src.usesRet:
		return false
	}
	changed, _ := k.setExpressionSlot(ctx, p.dim, p.view, src.src, src.usesRet, false)
	return changed
}
