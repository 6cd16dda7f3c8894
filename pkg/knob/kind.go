package knob

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
)

// Value is the set of payload types a knob can hold.
type Value interface {
	int | float64 | bool | string
}

// Kind selects the behavior of a knob at construction.
type Kind int

const (
	KindInt Kind = iota
	KindDouble
	KindBool
	KindString
	KindColor
	KindChoice
	KindButton
	KindPath
)

var kindNames = [...]string{"int", "double", "bool", "string", "color", "choice", "button", "path"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, s) {
			return Kind(i), nil
		}
	}
	return 0, errors.Invalid("unknown knob kind %q", s)
}

// DataType returns the keyframe payload type of the kind.
func (k Kind) DataType() curve.DataType {
	switch k {
	case KindInt, KindChoice:
		return curve.DataTypeInt
	case KindDouble, KindColor:
		return curve.DataTypeDouble
	case KindBool, KindButton:
		return curve.DataTypeBool
	case KindString, KindPath:
		return curve.DataTypeString
	}
	return curve.DataTypeNone
}

// Animatable reports whether knobs of this kind can hold keyframes.
func (k Kind) Animatable() bool {
	return k != KindButton && k != KindPath
}

func (k Kind) defaultInterpolation() curve.Interpolation {
	switch k {
	case KindDouble, KindColor:
		return curve.Smooth
	case KindInt:
		return curve.Linear
	}
	return curve.Constant
}

var (
	spatialDimNames = [...]string{"x", "y", "z", "w"}
	colorDimNames   = [...]string{"r", "g", "b", "a"}
)

func (k Kind) dimensionName(d, n int) string {
	if n == 1 {
		return ""
	}
	names := spatialDimNames
	if k == KindColor {
		names = colorDimNames
	}
	if d < len(names) {
		return names[d]
	}
	return strconv.Itoa(d)
}

// ReturnCode reports what a setter changed. Codes are ordered so a batch
// reports the strongest code of its parts.
type ReturnCode int

const (
	// NothingChanged means the slot already held the value.
	NothingChanged ReturnCode = iota
	// ValueChanged means the plain value was set; no keyframe was touched.
	ValueChanged
	// KeyframeModified means an existing keyframe was replaced.
	KeyframeModified
	// KeyframeAdded means a new keyframe was inserted.
	KeyframeAdded
)

func (c ReturnCode) String() string {
	switch c {
	case ValueChanged:
		return "value-changed"
	case KeyframeModified:
		return "keyframe-modified"
	case KeyframeAdded:
		return "keyframe-added"
	}
	return "nothing-changed"
}

// Reason is why a value changed.
type Reason int

const (
	ReasonUserEdited Reason = iota
	ReasonPluginEdited
	ReasonTimeChanged
	ReasonRestoreDefault
	ReasonExpression
)

var reasonNames = [...]string{"user-edited", "plugin-edited", "time-changed", "restore-default", "expression"}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("Reason(%d)", int(r))
	}
	return reasonNames[r]
}

// HashType selects which part of a knob's state contributes to a hash.
type HashType int

const (
	// HashTimeViewVariant includes animated dimensions, at the queried time
	// or as a whole curve depending on the knob's [HashingStrategy].
	HashTimeViewVariant HashType = iota
	// HashTimeViewInvariant skips animated dimensions.
	HashTimeViewInvariant
	// HashOnlyMetadataSlaves includes only non-animated dimensions of knobs
	// flagged as affecting metadata.
	HashOnlyMetadataSlaves
)

func (t HashType) String() string {
	switch t {
	case HashTimeViewInvariant:
		return "time-view-invariant"
	case HashOnlyMetadataSlaves:
		return "only-metadata-slaves"
	}
	return "time-view-variant"
}

// HashingStrategy selects how animated dimensions contribute to a
// [HashTimeViewVariant] hash.
type HashingStrategy int

const (
	// HashingDefault hashes the value at the queried time.
	HashingDefault HashingStrategy = iota
	// HashingAnimation hashes the whole curve, for consumers whose result
	// depends on past or future keyframes.
	HashingAnimation
)

// HashArgs keys a hash query.
type HashArgs struct {
	Time float64
	View anim.ViewIdx
	Type HashType
}

// Option configures a knob at construction.
type Option func(*options)

type options struct {
	label            string
	hint             string
	canSplitViews    bool
	animated         bool
	animatedSet      bool
	hashing          HashingStrategy
	metadataSlave    bool
	persistent       bool
	userKnob         bool
	evaluateOnChange bool
	rangeSet         bool
	min, max         float64
}

func defaultOptions() options {
	return options{canSplitViews: true, persistent: true, evaluateOnChange: true}
}

// WithLabel sets the user facing label. It defaults to the name.
func WithLabel(label string) Option { return func(o *options) { o.label = label } }

// WithHint sets the help text.
func WithHint(hint string) Option { return func(o *options) { o.hint = hint } }

// WithSplitViews controls whether views may be split. Enabled by default.
func WithSplitViews(enabled bool) Option { return func(o *options) { o.canSplitViews = enabled } }

// WithAnimation overrides whether the knob may hold keyframes. Kinds that
// cannot animate ignore true.
func WithAnimation(enabled bool) Option {
	return func(o *options) { o.animated, o.animatedSet = enabled, true }
}

// WithHashingStrategy sets how animated dimensions are hashed.
func WithHashingStrategy(s HashingStrategy) Option { return func(o *options) { o.hashing = s } }

// WithMetadataSlave flags the knob as affecting metadata.
func WithMetadataSlave(enabled bool) Option { return func(o *options) { o.metadataSlave = enabled } }

// WithPersistent controls whether the knob is saved. Enabled by default.
func WithPersistent(enabled bool) Option { return func(o *options) { o.persistent = enabled } }

// WithUserKnob flags a knob created by the user rather than the node.
func WithUserKnob(enabled bool) Option { return func(o *options) { o.userKnob = enabled } }

// WithEvaluateOnChange controls whether a change triggers a holder
// evaluation pass. Enabled by default.
func WithEvaluateOnChange(enabled bool) Option {
	return func(o *options) { o.evaluateOnChange = enabled }
}

// WithRange sets the clamping range of every dimension's curve.
func WithRange(lo, hi float64) Option {
	return func(o *options) { o.rangeSet, o.min, o.max = true, lo, hi }
}
