package knob

import (
	"context"
	"slices"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/observability"
)

// evaluateValueChange runs after slots of k changed: it refreshes the
// modification flags and hashes, notifies the holder once per view and
// propagates to listeners and to other owners of the changed storage.
func (k *Knob[T]) evaluateValueChange(ctx context.Context, changes []change, reason Reason) {
	ctx, b := withBatch(ctx)
	b.visit(k)
	k.notify(ctx, changes, reason)
	k.refreshListeners(ctx, changes)
}

func (k *Knob[T]) notify(ctx context.Context, changes []change, reason Reason) {
	k.invalidateHash()
	k.computeHasModifications()
	if k.holder != nil {
		k.holder.InvalidateHash()
	}

	var seen []anim.ViewIdx
	for _, c := range changes {
		ev := k.event(int(c.dim), int(c.view), c.t, reason)
		ev.KeysAdded, ev.KeysRemoved = c.added, c.removed
		observability.Knobs().OnValueChanged(ctx, ev)
		if slices.Contains(seen, c.view) {
			continue
		}
		seen = append(seen, c.view)
		if k.holder != nil {
			k.holder.OnKnobValueChanged(ctx, k, reason, c.t, c.view)
		}
	}
}

// refreshListeners notifies every knob that reads a changed dimension
// through an expression, and every other knob sharing a changed storage.
// Each knob is notified at most once per batch.
func (k *Knob[T]) refreshListeners(ctx context.Context, changes []change) {
	_, b := withBatch(ctx)
	t := changes[0].t

	type target struct {
		p      Param
		reason Reason
	}
	var targets []target
	add := func(p Param, r Reason) {
		for _, x := range targets {
			if x.p == p {
				return
			}
		}
		targets = append(targets, target{p, r})
	}

	for _, l := range k.Listeners() {
		for _, c := range changes {
			if l.ListenedDimension == c.dim {
				add(l.Knob, ReasonExpression)
				break
			}
		}
	}
	for _, c := range changes {
		data := k.slot(c.dim, c.view)
		data.mu.RLock()
		owners := slices.Clone(data.owners)
		data.mu.RUnlock()
		for _, o := range owners {
			if o.knob != k {
				add(o.knob, ReasonPluginEdited)
			}
		}
	}

	for _, x := range targets {
		if b.visit(x.p) {
			x.p.onDependencyChanged(ctx, t, x.reason)
		}
	}
}

// onDependencyChanged is called when a value k reads changed elsewhere.
// The data of k is untouched; only derived state is refreshed.
func (k *Knob[T]) onDependencyChanged(ctx context.Context, t float64, reason Reason) {
	var changes []change
	for _, v := range k.views.Views() {
		for d := range k.nDims {
			changes = append(changes, change{dim: anim.DimIdx(d), view: v, t: t})
		}
	}
	k.notify(ctx, changes, reason)
	k.refreshListeners(ctx, changes)
}

func (k *Knob[T]) event(dim, view int, t float64, reason Reason) observability.KnobEvent {
	ev := observability.KnobEvent{KnobID: k.id.String(), Knob: k.name, Dimension: dim, View: view, Time: t, Reason: reason.String()}
	if k.holder != nil {
		ev.Node = k.holder.Name()
	}
	return ev
}
