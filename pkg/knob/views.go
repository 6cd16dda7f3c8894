package knob

import (
	"context"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/observability"
)

// Views returns the split views, main view first.
func (k *Knob[T]) Views() []anim.ViewIdx { return k.views.Views() }

// CanSplitViews reports whether views may be split.
func (k *Knob[T]) CanSplitViews() bool { return k.views.CanSplitViews() }

// HasView reports whether v holds independent data.
func (k *Knob[T]) HasView(v anim.ViewIdx) bool { return k.views.HasView(v) }

// SplitView gives view v its own copy of the main view's data, flags and
// expressions. It returns false if the knob cannot split or v is already
// split.
func (k *Knob[T]) SplitView(ctx context.Context, v anim.ViewIdx) bool {
	topologyMu.Lock()
	if !k.views.SplitView(v) {
		topologyMu.Unlock()
		return false
	}
	for d := range k.nDims {
		dim := anim.DimIdx(d)
		nd := k.slot(dim, anim.ViewMain).clone()
		nd.owners = []owner[T]{{knob: k, dim: dim, view: v}}
		k.setSlot(dim, v, nd)
	}
	k.modMu.Lock()
	for d := range k.nDims {
		k.modified[d][v] = k.modified[d][anim.ViewMain]
	}
	k.modMu.Unlock()
	k.visMu.Lock()
	k.allVisible[v] = k.allVisible[anim.ViewMain]
	k.visMu.Unlock()
	topologyMu.Unlock()

	k.beginChanges()
	defer k.endChanges()
	for d := range k.nDims {
		dim := anim.DimIdx(d)
		if e := k.expressionAt(dim, anim.ViewMain); e != nil {
			_, _ = k.setExpressionSlot(ctx, dim, v, e.src, e.usesRet, false)
		}
	}
	k.invalidateHash()
	if k.holder != nil {
		k.holder.OnKnobViewsChanged(ctx, k)
	}
	observability.Knobs().OnViewSplit(ctx, k.event(-1, int(v), k.currentTime(ctx), ReasonUserEdited))
	return true
}

// UnSplitView drops the data of view v, which then reads the main view
// again. The main view cannot be unsplit.
func (k *Knob[T]) UnSplitView(ctx context.Context, v anim.ViewIdx) bool {
	if v == anim.ViewMain {
		return false
	}
	topologyMu.Lock()
	if !k.views.UnSplitView(v) {
		topologyMu.Unlock()
		return false
	}
	k.dataMu.Lock()
	dropped := make([]*dimViewData[T], k.nDims)
	for d := range k.nDims {
		dropped[d] = k.data[d][v]
		delete(k.data[d], v)
		delete(k.saved[d], v)
	}
	k.dataMu.Unlock()
	for d, data := range dropped {
		if data == nil {
			continue
		}
		data.mu.Lock()
		data.removeOwner(owner[T]{knob: k, dim: anim.DimIdx(d), view: v})
		data.mu.Unlock()
	}
	k.modMu.Lock()
	for d := range k.nDims {
		delete(k.modified[d], v)
	}
	k.modMu.Unlock()
	k.visMu.Lock()
	delete(k.allVisible, v)
	k.visMu.Unlock()
	topologyMu.Unlock()

	for d := range k.nDims {
		k.clearExpressionSlot(anim.DimIdx(d), v)
	}
	k.invalidateHash()
	if k.holder != nil {
		k.holder.OnKnobViewsChanged(ctx, k)
	}
	observability.Knobs().OnViewUnsplit(ctx, k.event(-1, int(v), k.currentTime(ctx), ReasonUserEdited))
	return true
}

// UnSplitAllViews unsplits every view but the main one.
func (k *Knob[T]) UnSplitAllViews(ctx context.Context) {
	for _, v := range k.views.Views() {
		if v != anim.ViewMain {
			k.UnSplitView(ctx, v)
		}
	}
}
