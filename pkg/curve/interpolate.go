package curve

import "math"

// evaluate interpolates keys (non-empty, sorted) at t.
func evaluate(keys []KeyFrame, t float64) float64 {
	n := len(keys)
	first, last := keys[0], keys[n-1]
	if t <= first.Time {
		if t < first.Time && n > 1 && first.Interp == Linear {
			return first.Value + first.Left*(t-first.Time)
		}
		return first.Value
	}
	if t >= last.Time {
		if t > last.Time && n > 1 && last.Interp == Linear {
			return last.Value + last.Right*(t-last.Time)
		}
		return last.Value
	}
	// keys[i-1].Time <= t < keys[i].Time
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if keys[mid].Time <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hermite(keys[lo], keys[hi], t)
}

func hermite(k0, k1 KeyFrame, t float64) float64 {
	if k0.Interp == Constant {
		return k0.Value
	}
	dt := k1.Time - k0.Time
	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*k0.Value + h10*dt*k0.Right + h01*k1.Value + h11*dt*k1.Left
}

func slope(a, b KeyFrame) float64 {
	return (b.Value - a.Value) / (b.Time - a.Time)
}

// computeDerivatives refreshes Left/Right of every keyframe whose
// interpolation derives them automatically.
func computeDerivatives(keys []KeyFrame) {
	n := len(keys)
	for i := range keys {
		k := &keys[i]
		hasPrev, hasNext := i > 0, i < n-1
		switch k.Interp {
		case Free, Broken:
		case Constant, Horizontal:
			k.Left, k.Right = 0, 0
		case Linear:
			switch {
			case hasPrev && hasNext:
				k.Left, k.Right = slope(keys[i-1], *k), slope(*k, keys[i+1])
			case hasPrev:
				s := slope(keys[i-1], *k)
				k.Left, k.Right = s, s
			case hasNext:
				s := slope(*k, keys[i+1])
				k.Left, k.Right = s, s
			default:
				k.Left, k.Right = 0, 0
			}
		case CatmullRom, Cubic:
			d := catmullRom(keys, i)
			k.Left, k.Right = d, d
		case Smooth:
			d := smooth(keys, i)
			k.Left, k.Right = d, d
		}
	}
	cubicRuns(keys)
}

func catmullRom(keys []KeyFrame, i int) float64 {
	n := len(keys)
	switch {
	case i > 0 && i < n-1:
		prev, next := keys[i-1], keys[i+1]
		return (next.Value - prev.Value) / (next.Time - prev.Time)
	case i > 0:
		return slope(keys[i-1], keys[i])
	case i < n-1:
		return slope(keys[i], keys[i+1])
	}
	return 0
}

func smooth(keys []KeyFrame, i int) float64 {
	if i == 0 || i == len(keys)-1 {
		return 0
	}
	prev, k, next := keys[i-1], keys[i], keys[i+1]
	if (k.Value-prev.Value)*(next.Value-k.Value) <= 0 {
		return 0
	}
	d := catmullRom(keys, i)
	limit := 3 * math.Min(math.Abs(slope(prev, k)), math.Abs(slope(k, next)))
	if math.Abs(d) > limit {
		d = math.Copysign(limit, d)
	}
	return d
}

// cubicRuns overwrites the derivatives of every maximal run of two or more
// consecutive Cubic keyframes with those of a natural cubic spline through
// the run.
func cubicRuns(keys []KeyFrame) {
	for start := 0; start < len(keys); {
		if keys[start].Interp != Cubic {
			start++
			continue
		}
		end := start
		for end+1 < len(keys) && keys[end+1].Interp == Cubic {
			end++
		}
		if end > start {
			d := naturalSpline(keys[start : end+1])
			for j, v := range d {
				keys[start+j].Left, keys[start+j].Right = v, v
			}
		}
		start = end + 1
	}
}

// naturalSpline solves the tridiagonal system for the first derivatives of
// the natural cubic spline through keys (len >= 2).
func naturalSpline(keys []KeyFrame) []float64 {
	n := len(keys)
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	r := make([]float64, n)

	h := func(i int) float64 { return keys[i+1].Time - keys[i].Time }
	delta := func(i int) float64 { return (keys[i+1].Value - keys[i].Value) / h(i) }

	b[0], c[0], r[0] = 2, 1, 3*delta(0)
	for i := 1; i < n-1; i++ {
		a[i] = h(i)
		b[i] = 2 * (h(i-1) + h(i))
		c[i] = h(i - 1)
		r[i] = 3 * (h(i)*delta(i-1) + h(i-1)*delta(i))
	}
	a[n-1], b[n-1], r[n-1] = 1, 2, 3*delta(n-2)

	for i := 1; i < n; i++ {
		w := a[i] / b[i-1]
		b[i] -= w * c[i-1]
		r[i] -= w * r[i-1]
	}
	d := make([]float64, n)
	d[n-1] = r[n-1] / b[n-1]
	for i := n - 2; i >= 0; i-- {
		d[i] = (r[i] - c[i]*d[i+1]) / b[i]
	}
	return d
}
