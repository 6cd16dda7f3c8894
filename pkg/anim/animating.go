package anim

import (
	"slices"
	"sync"
)

// AnimatingObject owns the list of views an object holds independent data
// for. The list always contains [ViewMain] and keeps insertion order.
//
// AnimatingObject is safe for concurrent use.
type AnimatingObject struct {
	mu       sync.RWMutex
	views    []ViewIdx
	canSplit bool
}

// NewAnimatingObject returns an object holding only the main view. When
// canSplit is false, SplitView always fails.
func NewAnimatingObject(canSplit bool) *AnimatingObject {
	return &AnimatingObject{views: []ViewIdx{ViewMain}, canSplit: canSplit}
}

// CanSplitViews reports whether additional views may be split.
func (a *AnimatingObject) CanSplitViews() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.canSplit
}

// Views returns a copy of the split view list, main view first.
func (a *AnimatingObject) Views() []ViewIdx {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.views)
}

// HasView reports whether v currently holds independent data.
func (a *AnimatingObject) HasView(v ViewIdx) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Contains(a.views, v)
}

// SplitView appends v to the view list. It returns false if splitting is
// not supported, v is negative, or v is already split.
func (a *AnimatingObject) SplitView(v ViewIdx) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.canSplit || v < 0 || slices.Contains(a.views, v) {
		return false
	}
	a.views = append(a.views, v)
	return true
}

// UnSplitView removes v from the view list. The main view is never removed.
func (a *AnimatingObject) UnSplitView(v ViewIdx) bool {
	if v == ViewMain {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	i := slices.Index(a.views, v)
	if i < 0 {
		return false
	}
	a.views = slices.Delete(a.views, i, i+1)
	return true
}

// ResolveView returns v if it is split, otherwise the main view.
func (a *AnimatingObject) ResolveView(v ViewIdx) ViewIdx {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if slices.Contains(a.views, v) {
		return v
	}
	return ViewMain
}
