package knob

import (
	"context"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
)

type slotAddr struct {
	dim  anim.DimIdx
	view anim.ViewIdx
}

func (k *Knob[T]) slotsFor(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec) ([]slotAddr, error) {
	dims, err := k.dims(dim)
	if err != nil {
		return nil, err
	}
	views, err := k.setViews(ctx, view)
	if err != nil {
		return nil, err
	}
	out := make([]slotAddr, 0, len(dims)*len(views))
	for _, d := range dims {
		for _, v := range views {
			out = append(out, slotAddr{d, v})
		}
	}
	return out, nil
}

// animatedSlots returns the distinct storages of addrs that have a curve.
func (k *Knob[T]) animatedSlots(addrs []slotAddr) []*dimViewData[T] {
	var out []*dimViewData[T]
	for _, a := range addrs {
		data := k.slot(a.dim, a.view)
		if data.curve == nil {
			continue
		}
		dup := false
		for _, x := range out {
			if x == data {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, data)
		}
	}
	return out
}

func changesOf(addrs []slotAddr, t float64) []change {
	out := make([]change, len(addrs))
	for i, a := range addrs {
		out[i] = change{dim: a.dim, view: a.view, t: t}
	}
	return out
}

// WarpValuesAtTime applies w to the keyframes at times in every selected
// slot. It is all-or-nothing: if any slot lacks a keyframe at any of the
// times, or the warp would collide keyframes, nothing changes and it
// returns false.
func (k *Knob[T]) WarpValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, w curve.Warp, reason Reason) (bool, error) {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return false, err
	}
	if len(times) == 0 {
		return true, nil
	}
	datas := k.animatedSlots(addrs)
	if len(datas) == 0 {
		return false, nil
	}

	unlock := lockAll(datas)
	for _, d := range datas {
		if _, ok := d.curve.Clone().Warp(times, w); !ok {
			unlock()
			return false, nil
		}
	}
	for _, d := range datas {
		d.curve.Warp(times, w)
	}
	unlock()

	k.beginChanges()
	k.evaluateValueChange(ctx, changesOf(addrs, times[0]), reason)
	k.endChanges()
	return true, nil
}

// MoveValueAtTime translates the keyframe at t by dt in time and dv in value.
func (k *Knob[T]) MoveValueAtTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, dt, dv float64, reason Reason) (bool, error) {
	return k.WarpValuesAtTime(ctx, []float64{t}, view, dim, curve.Translate{DT: dt, DV: dv}, reason)
}

// MoveValuesAtTime translates the keyframes at times by dt and dv.
func (k *Knob[T]) MoveValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, dt, dv float64, reason Reason) (bool, error) {
	return k.WarpValuesAtTime(ctx, times, view, dim, curve.Translate{DT: dt, DV: dv}, reason)
}

// TransformValueAtTime applies an affine transform to the keyframe at t.
func (k *Knob[T]) TransformValueAtTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, m curve.Affine, reason Reason) (bool, error) {
	return k.WarpValuesAtTime(ctx, []float64{t}, view, dim, m, reason)
}

// TransformValuesAtTime applies an affine transform to the keyframes at times.
func (k *Knob[T]) TransformValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, m curve.Affine, reason Reason) (bool, error) {
	return k.WarpValuesAtTime(ctx, times, view, dim, m, reason)
}

// DeleteValuesAtTime removes the keyframes at times. Times without a
// keyframe are ignored. When the last keyframe of a slot is removed the
// plain value becomes the animated value at the current time, as with
// [Knob.RemoveAnimation].
func (k *Knob[T]) DeleteValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}
	now := k.currentTime(ctx)
	removed := false
	for _, d := range k.animatedSlots(addrs) {
		d.mu.Lock()
		if len(times) > 0 && d.curve.Len() > 0 {
			last := d.valueAt(now)
			if len(d.curve.RemoveKeyFrames(times...)) > 0 {
				removed = true
				if !d.curve.IsAnimated() {
					d.value = last
				}
			}
		}
		d.mu.Unlock()
	}
	if removed {
		k.beginChanges()
		k.evaluateValueChange(ctx, changesOf(addrs, now), reason)
		k.endChanges()
	}
	return nil
}

// DeleteValueAtTime removes the keyframe at t, if any.
func (k *Knob[T]) DeleteValueAtTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error {
	return k.DeleteValuesAtTime(ctx, []float64{t}, view, dim, reason)
}

// RemoveAnimation removes every keyframe of the selected slots. The plain
// value becomes the animated value at the current time.
func (k *Knob[T]) RemoveAnimation(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error {
	now := k.currentTime(ctx)
	return k.truncate(ctx, view, dim, reason, now, func(c *curve.Curve) []float64 { return c.Clear() })
}

// DeleteAnimationBeforeTime removes keyframes strictly before t.
func (k *Knob[T]) DeleteAnimationBeforeTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error {
	return k.truncate(ctx, view, dim, reason, t, func(c *curve.Curve) []float64 { return c.RemoveBefore(t) })
}

// DeleteAnimationAfterTime removes keyframes strictly after t.
func (k *Knob[T]) DeleteAnimationAfterTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error {
	return k.truncate(ctx, view, dim, reason, t, func(c *curve.Curve) []float64 { return c.RemoveAfter(t) })
}

func (k *Knob[T]) truncate(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason, t float64, cut func(*curve.Curve) []float64) error {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}
	removed := false
	for _, d := range k.animatedSlots(addrs) {
		d.mu.Lock()
		last := d.valueAt(t)
		if len(cut(d.curve)) > 0 {
			removed = true
			if !d.curve.IsAnimated() {
				d.value = last
			}
		}
		d.mu.Unlock()
	}
	if removed {
		k.beginChanges()
		k.evaluateValueChange(ctx, changesOf(addrs, t), reason)
		k.endChanges()
	}
	return nil
}

// SetInterpolationAtTime changes the interpolation of the keyframes at
// times. It returns false without changing anything if any selected slot
// lacks a keyframe at one of the times.
func (k *Knob[T]) SetInterpolationAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, interp curve.Interpolation, reason Reason) (bool, error) {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return false, err
	}
	datas := k.animatedSlots(addrs)
	if len(datas) == 0 || len(times) == 0 {
		return false, nil
	}
	unlock := lockAll(datas)
	for _, d := range datas {
		for _, t := range times {
			if _, ok := d.curve.KeyFrameAt(t); !ok {
				unlock()
				return false, nil
			}
		}
	}
	ok := true
	for _, d := range datas {
		for _, t := range times {
			ok = d.curve.SetInterpolation(t, interp) && ok
		}
	}
	unlock()

	k.beginChanges()
	k.evaluateValueChange(ctx, changesOf(addrs, times[0]), reason)
	k.endChanges()
	return ok, nil
}

// SetDerivativesAtTime sets user derivatives on the keyframe at t.
func (k *Knob[T]) SetDerivativesAtTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, left, right float64, reason Reason) (bool, error) {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return false, err
	}
	datas := k.animatedSlots(addrs)
	if len(datas) == 0 {
		return false, nil
	}
	unlock := lockAll(datas)
	for _, d := range datas {
		if _, ok := d.curve.KeyFrameAt(t); !ok || d.curve.Type() != curve.DataTypeDouble {
			unlock()
			return false, nil
		}
	}
	for _, d := range datas {
		d.curve.SetDerivatives(t, left, right)
	}
	unlock()

	k.beginChanges()
	k.evaluateValueChange(ctx, changesOf(addrs, t), reason)
	k.endChanges()
	return true, nil
}

// SetRange sets the clamping range of the selected dimensions in every view.
func (k *Knob[T]) SetRange(dim anim.DimSpec, lo, hi float64) error {
	dims, err := k.dims(dim)
	if err != nil {
		return err
	}
	for _, d := range dims {
		for _, v := range k.views.Views() {
			if data := k.slot(d, v); data.curve != nil {
				data.curve.SetRange(lo, hi)
			}
		}
	}
	k.invalidateHash()
	return nil
}

// readCurve runs fn on the curve of a resolved slot, if it has one.
func (k *Knob[T]) readCurve(d anim.DimIdx, v anim.ViewIdx, fn func(*curve.Curve)) error {
	if err := k.checkDim(d); err != nil {
		return err
	}
	data := k.slot(d, k.views.ResolveView(v))
	data.mu.RLock()
	defer data.mu.RUnlock()
	if data.curve != nil {
		fn(data.curve)
	}
	return nil
}

// KeyFrameCount returns the number of keyframes of (d, v).
func (k *Knob[T]) KeyFrameCount(d anim.DimIdx, v anim.ViewIdx) (int, error) {
	n := 0
	err := k.readCurve(d, v, func(c *curve.Curve) { n = c.Len() })
	return n, err
}

// KeyFrameTimes returns the keyframe times of (d, v) in order.
func (k *Knob[T]) KeyFrameTimes(d anim.DimIdx, v anim.ViewIdx) ([]float64, error) {
	var out []float64
	err := k.readCurve(d, v, func(c *curve.Curve) { out = c.Times() })
	return out, err
}

// KeyFrames returns the keyframes of (d, v) in order.
func (k *Knob[T]) KeyFrames(d anim.DimIdx, v anim.ViewIdx) ([]curve.KeyFrame, error) {
	var out []curve.KeyFrame
	err := k.readCurve(d, v, func(c *curve.Curve) { out = c.KeyFrames() })
	return out, err
}

// IsAnimated reports whether (d, v) has keyframes. It is false for an
// invalid dimension.
func (k *Knob[T]) IsAnimated(d anim.DimIdx, v anim.ViewIdx) bool {
	n, err := k.KeyFrameCount(d, v)
	return err == nil && n > 0
}

// PreviousKeyFrameTime returns the time of the last keyframe before t.
func (k *Knob[T]) PreviousKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool) {
	return k.navigate(d, v, t, (*curve.Curve).Previous)
}

// NextKeyFrameTime returns the time of the first keyframe after t.
func (k *Knob[T]) NextKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool) {
	return k.navigate(d, v, t, (*curve.Curve).Next)
}

// NearestKeyFrameTime returns the time of the keyframe closest to t; on a
// tie the earlier keyframe wins.
func (k *Knob[T]) NearestKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool) {
	return k.navigate(d, v, t, (*curve.Curve).Nearest)
}

func (k *Knob[T]) navigate(d anim.DimIdx, v anim.ViewIdx, t float64, fn func(*curve.Curve, float64) (curve.KeyFrame, bool)) (float64, bool) {
	var (
		kf curve.KeyFrame
		ok bool
	)
	if err := k.readCurve(d, v, func(c *curve.Curve) { kf, ok = fn(c, t) }); err != nil {
		return 0, false
	}
	return kf.Time, ok
}
