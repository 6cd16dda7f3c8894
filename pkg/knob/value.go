package knob

import (
	"context"
	"strconv"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
)

// TimedValue is one value of a batch write.
type TimedValue[T Value] struct {
	Time  float64
	Value T
}

// CurveValues is a batch of writes to one dimension and view.
type CurveValues[T Value] struct {
	Dimension anim.DimIdx
	View      anim.ViewSetSpec
	Values    []TimedValue[T]
}

type write[T Value] struct {
	t    float64
	v    T
	dim  anim.DimIdx
	view anim.ViewIdx
}

type change struct {
	dim  anim.DimIdx
	view anim.ViewIdx
	t    float64

	// Set when a curve was replaced wholesale.
	added, removed []float64
}

// ValueAtTime returns the value of dimension d at time t. An expression
// takes priority over keyframes, which take priority over the plain value.
func (k *Knob[T]) ValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (T, error) {
	if err := k.checkDim(d); err != nil {
		var zero T
		return zero, err
	}
	return k.valueAt(ctx, t, d, k.ViewIdxFromGetSpec(ctx, view)), nil
}

// Value returns the value of dimension d at the current time.
func (k *Knob[T]) Value(ctx context.Context, d anim.DimIdx, view anim.ViewGetSpec) (T, error) {
	return k.ValueAtTime(ctx, k.currentTime(ctx), d, view)
}

// RawValue returns the plain value of (d, v), ignoring keyframes and
// expressions.
func (k *Knob[T]) RawValue(d anim.DimIdx, v anim.ViewIdx) (T, error) {
	if err := k.checkDim(d); err != nil {
		var zero T
		return zero, err
	}
	data := k.slot(d, k.views.ResolveView(v))
	data.mu.RLock()
	defer data.mu.RUnlock()
	return data.value, nil
}

// valueAt reads a resolved slot.
func (k *Knob[T]) valueAt(ctx context.Context, t float64, d anim.DimIdx, v anim.ViewIdx) T {
	if e := k.expressionAt(d, v); e != nil && e.prog != nil {
		if out, ok := k.evalExpression(ctx, e, t, d, v); ok {
			return out
		}
	}
	data := k.slot(d, v)
	data.mu.RLock()
	defer data.mu.RUnlock()
	return data.valueAt(t)
}

// SetValue sets dimension dim to v at the current time.
func (k *Knob[T]) SetValue(ctx context.Context, v T, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	return k.SetValueAtTime(ctx, k.currentTime(ctx), v, view, dim, reason)
}

// SetValueAtTime sets the selected slots to v at time t. Slots that are
// not animated get a plain value unless auto-keying applies; animated slots
// get a keyframe at t.
func (k *Knob[T]) SetValueAtTime(ctx context.Context, t float64, v T, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	writes, err := k.expand(ctx, view, dim, []TimedValue[T]{{Time: t, Value: v}})
	if err != nil {
		return NothingChanged, err
	}
	return k.apply(ctx, writes, reason, false)
}

// SetKeyFrame sets a keyframe at t on the selected slots, animating them
// if needed. It fails with UNSUPPORTED on knobs that cannot animate.
func (k *Knob[T]) SetKeyFrame(ctx context.Context, t float64, v T, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	if !k.opts.animated {
		return NothingChanged, errors.New(errors.ErrCodeUnsupported, "knob %q cannot animate", k.name)
	}
	writes, err := k.expand(ctx, view, dim, []TimedValue[T]{{Time: t, Value: v}})
	if err != nil {
		return NothingChanged, err
	}
	return k.apply(ctx, writes, reason, true)
}

// SetMultipleValuesAtTime applies every value to the selected slots as one
// change.
func (k *Knob[T]) SetMultipleValuesAtTime(ctx context.Context, values []TimedValue[T], view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	writes, err := k.expand(ctx, view, dim, values)
	if err != nil {
		return NothingChanged, err
	}
	return k.apply(ctx, writes, reason, false)
}

// SetValueAcrossDimensions sets values[i] on dimension start+i at time t.
func (k *Knob[T]) SetValueAcrossDimensions(ctx context.Context, t float64, values []T, start anim.DimIdx, view anim.ViewSetSpec, reason Reason) (ReturnCode, error) {
	var writes []write[T]
	for i, v := range values {
		w, err := k.expand(ctx, view, anim.Dim(start+anim.DimIdx(i)), []TimedValue[T]{{Time: t, Value: v}})
		if err != nil {
			return NothingChanged, err
		}
		writes = append(writes, w...)
	}
	return k.apply(ctx, writes, reason, false)
}

// SetMultipleValuesAcrossDimensions applies several per-dimension batches
// as one change.
func (k *Knob[T]) SetMultipleValuesAcrossDimensions(ctx context.Context, curves []CurveValues[T], reason Reason) (ReturnCode, error) {
	var writes []write[T]
	for _, c := range curves {
		w, err := k.expand(ctx, c.View, anim.Dim(c.Dimension), c.Values)
		if err != nil {
			return NothingChanged, err
		}
		writes = append(writes, w...)
	}
	return k.apply(ctx, writes, reason, false)
}

// expand validates the addressing of a batch and resolves it to slots.
func (k *Knob[T]) expand(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec, values []TimedValue[T]) ([]write[T], error) {
	dims, err := k.dims(dim)
	if err != nil {
		return nil, err
	}
	views, err := k.setViews(ctx, view)
	if err != nil {
		return nil, err
	}
	out := make([]write[T], 0, len(values)*len(dims)*len(views))
	for _, tv := range values {
		for _, d := range dims {
			for _, v := range views {
				out = append(out, write[T]{t: tv.Time, v: tv.Value, dim: d, view: v})
			}
		}
	}
	return out, nil
}

// apply performs writes in order and notifies once.
func (k *Knob[T]) apply(ctx context.Context, writes []write[T], reason Reason, force bool) (ReturnCode, error) {
	if len(writes) == 0 {
		return NothingChanged, nil
	}
	autoKey := false
	if a := k.app(); a != nil && reason == ReasonUserEdited {
		autoKey = a.AutoKeying()
	}

	k.beginChanges()
	defer k.endChanges()

	code := NothingChanged
	var changes []change
	for _, w := range writes {
		c := k.applyWrite(w, force || autoKey)
		if c != NothingChanged {
			changes = append(changes, change{dim: w.dim, view: w.view, t: w.t})
		}
		code = max(code, c)
	}
	if len(changes) > 0 {
		k.evaluateValueChange(ctx, changes, reason)
	}
	return code, nil
}

func (k *Knob[T]) applyWrite(w write[T], key bool) ReturnCode {
	data := k.slot(w.dim, w.view)
	data.mu.Lock()
	defer data.mu.Unlock()

	if data.curve == nil || (!key && !data.curve.IsAnimated()) {
		if data.value == w.v {
			return NothingChanged
		}
		data.value = w.v
		return ValueChanged
	}

	var res curve.SetKeyResult
	if data.strings != nil {
		res = data.strings.InsertKeyFrame(data.curve, w.t, any(w.v).(string))
	} else {
		kf := curve.KeyFrame{Time: w.t, Value: toFloat(w.v), Interp: k.kind.defaultInterpolation()}
		if old, ok := data.curve.KeyFrameAt(w.t); ok {
			kf.Interp, kf.Left, kf.Right = old.Interp, old.Left, old.Right
		}
		res = data.curve.SetOrAddKeyFrame(kf)
	}
	switch res {
	case curve.KeyAdded:
		return KeyframeAdded
	case curve.KeyReplaced:
		return KeyframeModified
	}
	return NothingChanged
}

func formatValue[T Value](v T) string {
	switch x := any(v).(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	}
	return ""
}

func parseValue[T Value](s string) (T, error) {
	var zero T
	var out any
	var err error
	switch any(zero).(type) {
	case int:
		out, err = strconv.Atoi(s)
	case float64:
		out, err = strconv.ParseFloat(s, 64)
	case bool:
		out, err = strconv.ParseBool(s)
	case string:
		out = s
	}
	if err != nil {
		return zero, errors.Wrap(errors.ErrCodeInvalidArgument, err, "parse %q", s)
	}
	return out.(T), nil
}
