package curve

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/knobs/pkg/hash"
)

var curveIDs atomic.Uint64

// Curve is an ordered set of keyframes, unique by time.
// The zero value is not usable - use New.
type Curve struct {
	id  uint64
	typ DataType

	mu       sync.RWMutex
	keys     []KeyFrame
	min, max float64
}

// New returns an empty curve animating values of type typ.
func New(typ DataType) *Curve {
	return &Curve{
		id:  curveIDs.Add(1),
		typ: typ,
		min: math.Inf(-1),
		max: math.Inf(1),
	}
}

// Type returns the data type the curve was created for.
func (c *Curve) Type() DataType { return c.typ }

// Len returns the number of keyframes.
func (c *Curve) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// IsAnimated reports whether the curve has at least one keyframe.
func (c *Curve) IsAnimated() bool { return c.Len() > 0 }

// KeyFrames returns a copy of the keyframes in time order.
func (c *Curve) KeyFrames() []KeyFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Times returns the keyframe times in order.
func (c *Curve) Times() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, len(c.keys))
	for i, k := range c.keys {
		out[i] = k.Time
	}
	return out
}

// KeyFrameAt returns the keyframe exactly at t.
func (c *Curve) KeyFrameAt(t float64) (KeyFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.search(t); ok {
		return c.keys[i], true
	}
	return KeyFrame{}, false
}

// KeyFrameIndex returns the index of the keyframe at t, or -1.
func (c *Curve) KeyFrameIndex(t float64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.search(t); ok {
		return i
	}
	return -1
}

// KeyFrameAtIndex returns the i-th keyframe in time order.
func (c *Curve) KeyFrameAtIndex(i int) (KeyFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.keys) {
		return KeyFrame{}, false
	}
	return c.keys[i], true
}

// Previous returns the last keyframe strictly before t.
func (c *Curve) Previous(t float64) (KeyFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, _ := c.search(t)
	if i == 0 {
		return KeyFrame{}, false
	}
	return c.keys[i-1], true
}

// Next returns the first keyframe strictly after t.
func (c *Curve) Next(t float64) (KeyFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, found := c.search(t)
	if found {
		i++
	}
	if i >= len(c.keys) {
		return KeyFrame{}, false
	}
	return c.keys[i], true
}

// Nearest returns the keyframe closest in time to t. When two keyframes are
// equally distant the earlier one wins.
func (c *Curve) Nearest(t float64) (KeyFrame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.keys) == 0 {
		return KeyFrame{}, false
	}
	i, found := c.search(t)
	switch {
	case found:
		return c.keys[i], true
	case i == 0:
		return c.keys[0], true
	case i == len(c.keys):
		return c.keys[i-1], true
	}
	prev, next := c.keys[i-1], c.keys[i]
	if t-prev.Time <= next.Time-t {
		return prev, true
	}
	return next, true
}

// SetOrAddKeyFrame inserts k, or replaces the keyframe at k.Time if its
// content differs. Derivatives of k are ignored unless k.Interp is Free or
// Broken.
func (c *Curve) SetOrAddKeyFrame(k KeyFrame) SetKeyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setOrAdd(k)
}

// SetOrAddKeyFrames applies SetOrAddKeyFrame to each key in order and
// returns the strongest result observed.
func (c *Curve) SetOrAddKeyFrames(keys []KeyFrame) SetKeyResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := KeyNoChange
	for _, k := range keys {
		res = max(res, c.setOrAdd(k))
	}
	return res
}

func (c *Curve) setOrAdd(k KeyFrame) SetKeyResult {
	k = c.normalize(k)
	i, found := c.search(k.Time)
	if found {
		old := c.keys[i]
		if old.Value == k.Value && old.Interp == k.Interp &&
			(!k.Interp.UserDerivatives() || (old.Left == k.Left && old.Right == k.Right)) {
			return KeyNoChange
		}
		c.keys[i] = k
		c.refresh()
		return KeyReplaced
	}
	c.keys = slices.Insert(c.keys, i, k)
	c.refresh()
	return KeyAdded
}

// RemoveKeyFrames removes the keyframes at the given times and returns the
// times that were actually removed. Times without a keyframe are ignored.
func (c *Curve) RemoveKeyFrames(times ...float64) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []float64
	for _, t := range times {
		if i, ok := c.search(t); ok {
			c.keys = slices.Delete(c.keys, i, i+1)
			removed = append(removed, t)
		}
	}
	if len(removed) > 0 {
		c.refresh()
	}
	return removed
}

// RemoveBefore removes every keyframe strictly before t.
func (c *Curve) RemoveBefore(t float64) []float64 {
	return c.removeIf(func(k KeyFrame) bool { return k.Time < t })
}

// RemoveAfter removes every keyframe strictly after t.
func (c *Curve) RemoveAfter(t float64) []float64 {
	return c.removeIf(func(k KeyFrame) bool { return k.Time > t })
}

// Clear removes every keyframe.
func (c *Curve) Clear() []float64 {
	return c.removeIf(func(KeyFrame) bool { return true })
}

func (c *Curve) removeIf(pred func(KeyFrame) bool) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []float64
	kept := c.keys[:0]
	for _, k := range c.keys {
		if pred(k) {
			removed = append(removed, k.Time)
			continue
		}
		kept = append(kept, k)
	}
	c.keys = kept
	if len(removed) > 0 {
		c.refresh()
	}
	return removed
}

// SetInterpolation changes the interpolation of the keyframe at t.
// It returns false if no keyframe exists at t or the curve's data type only
// supports constant interpolation.
func (c *Curve) SetInterpolation(t float64, interp Interpolation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.search(t)
	if !ok || (c.constantOnly() && interp != Constant) {
		return false
	}
	c.keys[i].Interp = interp
	c.refresh()
	return true
}

// SetDerivatives sets user derivatives on the keyframe at t, switching it
// to Free when left == right and Broken otherwise.
func (c *Curve) SetDerivatives(t, left, right float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.search(t)
	if !ok || c.constantOnly() {
		return false
	}
	k := &c.keys[i]
	k.Left, k.Right = left, right
	k.Interp = Free
	if left != right {
		k.Interp = Broken
	}
	c.refresh()
	return true
}

// SetRange sets the clamping range applied to numeric queries.
// It never modifies stored keyframes.
func (c *Curve) SetRange(lo, hi float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.min, c.max = lo, hi
}

// Range returns the clamping range. Unset bounds are infinite.
func (c *Curve) Range() (lo, hi float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.min, c.max
}

// ValueAt evaluates the curve at t. An empty curve evaluates to 0.
func (c *Curve) ValueAt(t float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.keys) == 0 {
		return 0
	}
	return c.clamp(c.typed(evaluate(c.keys, t)))
}

// Clone returns an independent copy of the curve.
func (c *Curve) Clone() *Curve {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Curve{
		id:   curveIDs.Add(1),
		typ:  c.typ,
		keys: slices.Clone(c.keys),
		min:  c.min,
		max:  c.max,
	}
}

// CloneFrom replaces the content of c with the keyframes of src that fall in
// r (all of them when r is nil), shifted in time by offset. The range of src
// is copied too. It reports whether anything changed along with the key
// times that were added to and removed from c.
func (c *Curve) CloneFrom(src *Curve, offset float64, r *TimeRange) (changed bool, added, removed []float64) {
	if src == c {
		return false, nil, nil
	}
	unlock := lockPair(src, c)
	defer unlock()

	next := make([]KeyFrame, 0, len(src.keys))
	for _, k := range src.keys {
		if r != nil && !r.Contains(k.Time) {
			continue
		}
		k.Time += offset
		next = append(next, c.normalize(k))
	}

	computeDerivatives(next)

	oldTimes := make(map[float64]bool, len(c.keys))
	for _, k := range c.keys {
		oldTimes[k.Time] = true
	}
	newTimes := make(map[float64]bool, len(next))
	for _, k := range next {
		newTimes[k.Time] = true
		if !oldTimes[k.Time] {
			added = append(added, k.Time)
		}
	}
	for _, k := range c.keys {
		if !newTimes[k.Time] {
			removed = append(removed, k.Time)
		}
	}

	changed = !slices.Equal(c.keys, next) || c.min != src.min || c.max != src.max
	c.keys = next
	c.min, c.max = src.min, src.max
	return changed, added, removed
}

// Equal reports whether both curves hold identical keyframes and ranges.
func (c *Curve) Equal(other *Curve) bool {
	if c == other {
		return true
	}
	if other == nil {
		return false
	}
	unlock := lockPair(c, other)
	defer unlock()
	return slices.Equal(c.keys, other.keys) && c.min == other.min && c.max == other.max
}

// AppendToHash appends every keyframe to h.
func (c *Curve) AppendToHash(h *hash.Hash64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h.AppendInt(int64(len(c.keys)))
	for _, k := range c.keys {
		h.AppendFloat(k.Time)
		h.AppendFloat(k.Value)
		h.AppendInt(int64(k.Interp))
		h.AppendFloat(k.Left)
		h.AppendFloat(k.Right)
	}
}

// search returns the index of the first keyframe with Time >= t and whether
// that keyframe is exactly at t.
func (c *Curve) search(t float64) (int, bool) {
	return slices.BinarySearchFunc(c.keys, t, func(k KeyFrame, t float64) int {
		switch {
		case k.Time < t:
			return -1
		case k.Time > t:
			return 1
		}
		return 0
	})
}

func (c *Curve) constantOnly() bool {
	return c.typ == DataTypeBool || c.typ == DataTypeString
}

func (c *Curve) normalize(k KeyFrame) KeyFrame {
	switch c.typ {
	case DataTypeBool:
		k.Interp = Constant
		k.Value = boolValue(k.Value)
	case DataTypeString:
		k.Interp = Constant
	case DataTypeInt:
		k.Value = math.Round(k.Value)
	}
	if !k.Interp.UserDerivatives() {
		k.Left, k.Right = 0, 0
	}
	return k
}

func (c *Curve) typed(v float64) float64 {
	switch c.typ {
	case DataTypeInt:
		return math.Round(v)
	case DataTypeBool:
		return boolValue(v)
	}
	return v
}

func (c *Curve) clamp(v float64) float64 {
	if c.typ != DataTypeDouble && c.typ != DataTypeInt {
		return v
	}
	return math.Min(math.Max(v, c.min), c.max)
}

func (c *Curve) refresh() {
	computeDerivatives(c.keys)
}

func boolValue(v float64) float64 {
	if v >= 0.5 {
		return 1
	}
	return 0
}

// lockPair read-locks a and write-locks b, acquiring them in ascending id
// order so that concurrent pairwise operations cannot deadlock.
func lockPair(a, b *Curve) (unlock func()) {
	if a.id < b.id {
		a.mu.RLock()
		b.mu.Lock()
	} else {
		b.mu.Lock()
		a.mu.RLock()
	}
	return func() {
		a.mu.RUnlock()
		b.mu.Unlock()
	}
}
