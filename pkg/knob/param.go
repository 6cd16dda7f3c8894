package knob

import (
	"context"

	"github.com/google/uuid"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/hash"
)

// Param is the type-erased view of a knob. Only [Knob] implements it.
type Param interface {
	ID() uuid.UUID
	Name() string
	Label() string
	Hint() string
	Kind() Kind
	DataType() curve.DataType
	Dimensions() int
	DimensionName(d anim.DimIdx) string
	Holder() Holder
	IsAnimatable() bool
	IsPersistent() bool
	IsUserKnob() bool
	IsMetadataSlave() bool
	EvaluateOnChange() bool
	String() string

	// Views
	Views() []anim.ViewIdx
	CanSplitViews() bool
	HasView(v anim.ViewIdx) bool
	SplitView(ctx context.Context, v anim.ViewIdx) bool
	UnSplitView(ctx context.Context, v anim.ViewIdx) bool
	UnSplitAllViews(ctx context.Context)
	ViewIdxFromGetSpec(ctx context.Context, s anim.ViewGetSpec) anim.ViewIdx

	// Typed access. A payload type that does not match the knob fails with
	// INVALID_ARGUMENT.
	SetIntValueAtTime(ctx context.Context, t float64, v int, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error)
	SetDoubleValueAtTime(ctx context.Context, t float64, v float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error)
	SetBoolValueAtTime(ctx context.Context, t float64, v bool, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error)
	SetStringValueAtTime(ctx context.Context, t float64, v string, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error)
	IntValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (int, error)
	DoubleValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (float64, error)
	BoolValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (bool, error)
	StringValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (string, error)

	// Text access for any payload type.
	ValueStringAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (string, error)
	SetValueFromString(ctx context.Context, t float64, s string, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason, key bool) (ReturnCode, error)

	// Keyframes
	KeyFrameCount(d anim.DimIdx, v anim.ViewIdx) (int, error)
	KeyFrameTimes(d anim.DimIdx, v anim.ViewIdx) ([]float64, error)
	KeyFrames(d anim.DimIdx, v anim.ViewIdx) ([]curve.KeyFrame, error)
	IsAnimated(d anim.DimIdx, v anim.ViewIdx) bool
	PreviousKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool)
	NextKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool)
	NearestKeyFrameTime(d anim.DimIdx, v anim.ViewIdx, t float64) (float64, bool)
	Curve(d anim.DimIdx, v anim.ViewIdx) *curve.Curve
	WarpValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, w curve.Warp, reason Reason) (bool, error)
	MoveValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, dt, dv float64, reason Reason) (bool, error)
	TransformValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, m curve.Affine, reason Reason) (bool, error)
	DeleteValuesAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error
	RemoveAnimation(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error
	DeleteAnimationBeforeTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error
	DeleteAnimationAfterTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) error
	SetInterpolationAtTime(ctx context.Context, times []float64, view anim.ViewSetSpec, dim anim.DimSpec, interp curve.Interpolation, reason Reason) (bool, error)
	SetDerivativesAtTime(ctx context.Context, t float64, view anim.ViewSetSpec, dim anim.DimSpec, left, right float64, reason Reason) (bool, error)
	SetRange(dim anim.DimSpec, lo, hi float64) error

	// Linking
	LinkTo(ctx context.Context, other Param, dim, otherDim anim.DimSpec, view, otherView anim.ViewSetSpec) (bool, error)
	Unlink(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec, copyState bool) error
	IsLinked(d anim.DimIdx, v anim.ViewIdx) bool
	SharingMaster(d anim.DimIdx, v anim.ViewIdx) (SlotRef, bool)
	SharedValues(d anim.DimIdx, v anim.ViewIdx) []SlotRef
	CopyKnob(ctx context.Context, other Param, view anim.ViewSetSpec, dim anim.DimSpec, otherView anim.ViewSetSpec, otherDim anim.DimSpec, r *curve.TimeRange, offset float64) (bool, error)

	// Expressions
	SetExpression(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec, text string, usesReturnVariable, failIfInvalid bool) error
	ClearExpression(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec) error
	Expression(d anim.DimIdx, v anim.ViewIdx) (text string, usesReturnVariable bool, ok bool)
	HasExpression(d anim.DimIdx, v anim.ViewIdx) bool
	ExpressionError(d anim.DimIdx, v anim.ViewIdx) string
	Dependencies(d anim.DimIdx, v anim.ViewIdx) []SlotRef
	Listeners() []Listener
	AddListener(l Listener)
	RemoveListener(l Listener)

	// State
	HasModifications() bool
	HasModificationsForDimension(d anim.DimIdx) bool
	HasDefaultValueChanged(d anim.DimIdx) bool
	ResetToDefaultValue(ctx context.Context, view anim.ViewSetSpec, dim anim.DimSpec) error
	AllDimensionsVisible(v anim.ViewIdx) bool
	SetAllDimensionsVisible(ctx context.Context, view anim.ViewSetSpec, visible bool) error
	AutoAdjustFoldExpandDimensions(ctx context.Context, view anim.ViewSetSpec) error
	AppendToHash(ctx context.Context, h *hash.Hash64, args HashArgs)
	Hash(ctx context.Context, args HashArgs) uint64

	// Persistence
	ToRecord() Record
	FromRecord(ctx context.Context, rec Record) error
	RestoreLinks(ctx context.Context, resolve func(node, knob string) (Param, error)) int
	RestoreExpressions(ctx context.Context) int

	exprNumber(ctx context.Context, t float64, d anim.DimIdx, v anim.ViewIdx) (float64, error)
	exprText(ctx context.Context, t float64, d anim.DimIdx, v anim.ViewIdx) (string, error)
	onDependencyChanged(ctx context.Context, t float64, reason Reason)
}

var (
	_ Param = (*Knob[int])(nil)
	_ Param = (*Knob[float64])(nil)
	_ Param = (*Knob[bool])(nil)
	_ Param = (*Knob[string])(nil)
)

// coerce converts a typed argument to the knob's payload type, failing when
// the types differ.
func coerce[T, V Value](k *Knob[T], v V) (T, error) {
	out, ok := any(v).(T)
	if !ok {
		var zero T
		return zero, errors.Invalid("knob %q holds %T values, not %T", k.name, zero, v)
	}
	return out, nil
}

func setTyped[T, V Value](ctx context.Context, k *Knob[T], t float64, v V, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	x, err := coerce(k, v)
	if err != nil {
		return NothingChanged, err
	}
	return k.SetValueAtTime(ctx, t, x, view, dim, reason)
}

func getTyped[V, T Value](ctx context.Context, k *Knob[T], t float64, d anim.DimIdx, view anim.ViewGetSpec) (V, error) {
	var zero V
	if _, ok := any(zero).(T); !ok {
		var have T
		return zero, errors.Invalid("knob %q holds %T values, not %T", k.name, have, zero)
	}
	v, err := k.ValueAtTime(ctx, t, d, view)
	if err != nil {
		return zero, err
	}
	return any(v).(V), nil
}

// SetIntValueAtTime implements Param.
func (k *Knob[T]) SetIntValueAtTime(ctx context.Context, t float64, v int, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	return setTyped(ctx, k, t, v, view, dim, reason)
}

// SetDoubleValueAtTime implements Param.
func (k *Knob[T]) SetDoubleValueAtTime(ctx context.Context, t float64, v float64, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	return setTyped(ctx, k, t, v, view, dim, reason)
}

// SetBoolValueAtTime implements Param.
func (k *Knob[T]) SetBoolValueAtTime(ctx context.Context, t float64, v bool, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	return setTyped(ctx, k, t, v, view, dim, reason)
}

// SetStringValueAtTime implements Param.
func (k *Knob[T]) SetStringValueAtTime(ctx context.Context, t float64, v string, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason) (ReturnCode, error) {
	return setTyped(ctx, k, t, v, view, dim, reason)
}

// IntValueAtTime implements Param.
func (k *Knob[T]) IntValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (int, error) {
	return getTyped[int](ctx, k, t, d, view)
}

// DoubleValueAtTime implements Param.
func (k *Knob[T]) DoubleValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (float64, error) {
	return getTyped[float64](ctx, k, t, d, view)
}

// BoolValueAtTime implements Param.
func (k *Knob[T]) BoolValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (bool, error) {
	return getTyped[bool](ctx, k, t, d, view)
}

// StringValueAtTime implements Param.
func (k *Knob[T]) StringValueAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (string, error) {
	return getTyped[string](ctx, k, t, d, view)
}

// ValueStringAtTime returns the value at t formatted as text.
func (k *Knob[T]) ValueStringAtTime(ctx context.Context, t float64, d anim.DimIdx, view anim.ViewGetSpec) (string, error) {
	v, err := k.ValueAtTime(ctx, t, d, view)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}

// SetValueFromString parses s as the knob's payload type and sets it at t,
// as a keyframe when key is true.
func (k *Knob[T]) SetValueFromString(ctx context.Context, t float64, s string, view anim.ViewSetSpec, dim anim.DimSpec, reason Reason, key bool) (ReturnCode, error) {
	v, err := parseValue[T](s)
	if err != nil {
		return NothingChanged, err
	}
	if key {
		return k.SetKeyFrame(ctx, t, v, view, dim, reason)
	}
	return k.SetValueAtTime(ctx, t, v, view, dim, reason)
}
