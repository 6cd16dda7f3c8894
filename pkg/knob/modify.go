package knob

import (
	"context"

	"github.com/matzehuels/knobs/pkg/anim"
)

// computeHasModifications recomputes the modification flag of every slot
// and reports whether any flag changed. A slot is modified when it has an
// expression or keyframes, or its value differs from the default.
func (k *Knob[T]) computeHasModifications() bool {
	views := k.views.Views()
	k.defMu.RLock()
	defaults := append([]T(nil), k.defaults...)
	k.defMu.RUnlock()

	flags := make([]map[anim.ViewIdx]bool, k.nDims)
	for d := range k.nDims {
		flags[d] = make(map[anim.ViewIdx]bool, len(views))
		for _, v := range views {
			dim := anim.DimIdx(d)
			data := k.slot(dim, v)
			data.mu.RLock()
			mod := data.animated() || data.value != defaults[d]
			data.mu.RUnlock()
			flags[d][v] = mod || k.expressionAt(dim, v) != nil
		}
	}

	k.modMu.Lock()
	defer k.modMu.Unlock()
	changed := false
	for d := range k.nDims {
		for v, mod := range flags[d] {
			if k.modified[d][v] != mod {
				changed = true
			}
		}
		k.modified[d] = flags[d]
	}
	return changed
}

// HasModifications reports whether any dimension in any view differs from
// its default.
func (k *Knob[T]) HasModifications() bool {
	for d := range k.nDims {
		if k.HasModificationsForDimension(anim.DimIdx(d)) {
			return true
		}
	}
	return false
}

// HasModificationsForDimension reports whether any view of d is modified.
func (k *Knob[T]) HasModificationsForDimension(d anim.DimIdx) bool {
	if k.checkDim(d) != nil {
		return false
	}
	k.modMu.Lock()
	defer k.modMu.Unlock()
	for _, mod := range k.modified[d] {
		if mod {
			return true
		}
	}
	return false
}

// DefaultValue returns the default of dimension d.
func (k *Knob[T]) DefaultValue(d anim.DimIdx) (T, error) {
	if err := k.checkDim(d); err != nil {
		var zero T
		return zero, err
	}
	k.defMu.RLock()
	defer k.defMu.RUnlock()
	return k.defaults[d], nil
}

// HasDefaultValueChanged reports whether the default of d differs from the
// first default it was given.
func (k *Knob[T]) HasDefaultValueChanged(d anim.DimIdx) bool {
	if k.checkDim(d) != nil {
		return false
	}
	k.defMu.RLock()
	defer k.defMu.RUnlock()
	return k.initialSet[d] && k.defaults[d] != k.initial[d]
}

// SetDefaultValueWithoutApplying changes the default of the selected
// dimensions, leaving current values alone.
func (k *Knob[T]) SetDefaultValueWithoutApplying(v T, dim anim.DimSpec) error {
	dims, err := k.dims(dim)
	if err != nil {
		return err
	}
	k.defMu.Lock()
	for _, d := range dims {
		k.defaults[d] = v
		if !k.initialSet[d] {
			k.initial[d] = v
			k.initialSet[d] = true
		}
	}
	k.defMu.Unlock()
	k.computeHasModifications()
	k.invalidateHash()
	return nil
}

// SetDefaultValue changes the default of the selected dimensions and resets
// them to it in every view.
func (k *Knob[T]) SetDefaultValue(ctx context.Context, v T, dim anim.DimSpec) error {
	if err := k.SetDefaultValueWithoutApplying(v, dim); err != nil {
		return err
	}
	return k.ResetToDefaultValue(ctx, anim.ViewSetSpecAll, dim)
}

// ResetToDefaultValue removes keyframes and expressions from the selected
// slots and restores their default value.
func (k *Knob[T]) ResetToDefaultValue(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec) error {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}
	k.beginChanges()
	defer k.endChanges()

	var changes []change
	now := k.currentTime(ctx)
	for _, a := range addrs {
		def, _ := k.DefaultValue(a.dim)
		changed := k.clearExpressionSlot(a.dim, a.view)
		data := k.slot(a.dim, a.view)
		data.mu.Lock()
		if data.curve != nil && len(data.curve.Clear()) > 0 {
			changed = true
		}
		if data.value != def {
			data.value = def
			changed = true
		}
		data.mu.Unlock()
		if changed {
			changes = append(changes, change{dim: a.dim, view: a.view, t: now})
		}
	}
	if len(changes) > 0 {
		k.evaluateValueChange(ctx, changes, ReasonRestoreDefault)
	}
	return nil
}

// AllDimensionsVisible reports whether the dimensions of view v are shown
// expanded. A folded knob edits every dimension through the first one.
func (k *Knob[T]) AllDimensionsVisible(v anim.ViewIdx) bool {
	v = k.views.ResolveView(v)
	k.visMu.Lock()
	defer k.visMu.Unlock()
	vis, ok := k.allVisible[v]
	return !ok || vis
}

// SetAllDimensionsVisible expands or folds the dimensions of the selected
// views. Folding copies dimension 0 into the other dimensions.
func (k *Knob[T]) SetAllDimensionsVisible(ctx context.Context, view anim.ViewSetSpec, visible bool) error {
	views, err := k.setViews(ctx, view)
	if err != nil {
		return err
	}
	var changes []change
	now := k.currentTime(ctx)
	for _, v := range views {
		k.visMu.Lock()
		k.allVisible[v] = visible
		k.visMu.Unlock()
		if visible {
			continue
		}
		first := k.slot(0, v)
		for d := 1; d < k.nDims; d++ {
			if changed, added, removed := k.slot(anim.DimIdx(d), v).copyFrom(first, 0, nil); changed {
				changes = append(changes, change{dim: anim.DimIdx(d), view: v, t: now, added: added, removed: removed})
			}
		}
	}
	if len(changes) > 0 {
		k.beginChanges()
		k.evaluateValueChange(ctx, changes, ReasonUserEdited)
		k.endChanges()
	}
	return nil
}

// AutoAdjustFoldExpandDimensions folds the selected views whose dimensions
// all hold the same value and keyframes without expressions, and expands
// the others.
func (k *Knob[T]) AutoAdjustFoldExpandDimensions(ctx context.Context, view anim.ViewSetSpec) error {
	views, err := k.setViews(ctx, view)
	if err != nil {
		return err
	}
	for _, v := range views {
		fold := k.nDims > 1 && k.dimensionsEqual(v)
		k.visMu.Lock()
		k.allVisible[v] = !fold
		k.visMu.Unlock()
	}
	return nil
}

func (k *Knob[T]) dimensionsEqual(v anim.ViewIdx) bool {
	first := k.slot(0, v)
	if k.expressionAt(0, v) != nil {
		return false
	}
	first.mu.RLock()
	val := first.value
	first.mu.RUnlock()
	for d := 1; d < k.nDims; d++ {
		dim := anim.DimIdx(d)
		if k.expressionAt(dim, v) != nil {
			return false
		}
		data := k.slot(dim, v)
		data.mu.RLock()
		same := data.value == val && (data.curve == nil || data.curve.Equal(first.curve))
		data.mu.RUnlock()
		if !same {
			return false
		}
	}
	return true
}
