package curve

import (
	"math"
	"slices"
)

// Warp maps a keyframe's (time, value) to a new (time, value).
type Warp interface {
	Apply(t, v float64) (float64, float64)
}

// Translate shifts keyframes by DT in time and DV in value.
type Translate struct {
	DT, DV float64
}

// Apply implements Warp.
func (w Translate) Apply(t, v float64) (float64, float64) { return t + w.DT, v + w.DV }

// Affine is a 2D affine transform of (time, value):
//
//	t' = A*t + B*v + C
//	v' = D*t + E*v + F
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine { return Affine{A: 1, E: 1} }

// Scale returns a transform scaling time by st and value by sv around the
// pivot (pt, pv).
func Scale(st, sv, pt, pv float64) Affine {
	return Affine{A: st, C: pt - st*pt, E: sv, F: pv - sv*pv}
}

// Apply implements Warp.
func (w Affine) Apply(t, v float64) (float64, float64) {
	return w.A*t + w.B*v + w.C, w.D*t + w.E*v + w.F
}

// derivativeScale returns the factor user derivatives are multiplied by
// under w, when w does not shear time against value.
func derivativeScale(w Warp) (float64, bool) {
	switch w := w.(type) {
	case Translate:
		return 1, true
	case Affine:
		if w.B == 0 && w.D == 0 && w.A != 0 {
			return w.E / w.A, true
		}
	}
	return 0, false
}

// Warp applies w to exactly the keyframes at times. It is all-or-nothing:
// if any time has no keyframe, or the warped keyframes would produce a
// non-finite time or share a time with another keyframe, the curve is left
// untouched and ok is false. On success it returns the warped keyframes.
//
// Value changes are ignored for string curves, whose values are ordinals.
func (c *Curve) Warp(times []float64, w Warp) (moved []KeyFrame, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := make(map[int]bool, len(times))
	for _, t := range times {
		i, found := c.search(t)
		if !found {
			return nil, false
		}
		selected[i] = true
	}
	if len(selected) == 0 {
		return nil, true
	}

	scale, scaleOK := derivativeScale(w)
	next := make([]KeyFrame, len(c.keys))
	for i, k := range c.keys {
		if !selected[i] {
			next[i] = k
			continue
		}
		nt, nv := w.Apply(k.Time, k.Value)
		if math.IsNaN(nt) || math.IsInf(nt, 0) || math.IsNaN(nv) || math.IsInf(nv, 0) {
			return nil, false
		}
		if c.typ == DataTypeString {
			nv = k.Value
		}
		wk := k
		wk.Time, wk.Value = nt, nv
		if k.Interp.UserDerivatives() && scaleOK {
			wk.Left *= scale
			wk.Right *= scale
		}
		wk = c.normalize(wk)
		next[i] = wk
		moved = append(moved, wk)
	}

	slices.SortStableFunc(next, func(a, b KeyFrame) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	for i := 1; i < len(next); i++ {
		if next[i].Time == next[i-1].Time {
			return nil, false
		}
	}

	c.keys = next
	c.refresh()
	return moved, true
}
