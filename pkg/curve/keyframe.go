package curve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownInterpolation is returned by [ParseInterpolation] for names it
// does not recognize.
var ErrUnknownInterpolation = errors.New("unknown interpolation")

// DataType is the payload kind a curve animates.
type DataType int

const (
	// DataTypeNone marks parameters that cannot animate.
	DataTypeNone DataType = iota
	DataTypeInt
	DataTypeDouble
	DataTypeBool
	DataTypeString
)

var dataTypeNames = [...]string{"none", "int", "double", "bool", "string"}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// Interpolation selects how the segment leaving a keyframe is evaluated.
type Interpolation int

const (
	// Constant holds the keyframe value until the next keyframe.
	Constant Interpolation = iota
	// Linear uses the slopes to the neighbouring keyframes.
	Linear
	// Smooth is Catmull-Rom limited to avoid overshoot; flat at extrema and ends.
	Smooth
	// CatmullRom uses the slope between the previous and next keyframes.
	CatmullRom
	// Cubic fits a natural cubic spline through runs of cubic keyframes.
	Cubic
	// Horizontal uses zero derivatives.
	Horizontal
	// Free uses user-set derivatives with equal left and right slopes.
	Free
	// Broken uses user-set, independent left and right derivatives.
	Broken
)

var interpNames = [...]string{"constant", "linear", "smooth", "catmullrom", "cubic", "horizontal", "free", "broken"}

func (i Interpolation) String() string {
	if i < 0 || int(i) >= len(interpNames) {
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
	return interpNames[i]
}

// UserDerivatives reports whether derivatives are set by the user rather
// than computed from neighbouring keyframes.
func (i Interpolation) UserDerivatives() bool { return i == Free || i == Broken }

// ParseInterpolation returns the interpolation named s (case-insensitive).
func ParseInterpolation(s string) (Interpolation, error) {
	for i, n := range interpNames {
		if strings.EqualFold(n, s) {
			return Interpolation(i), nil
		}
	}
	return Constant, fmt.Errorf("%w: %q", ErrUnknownInterpolation, s)
}

// KeyFrame is a control point of a curve.
type KeyFrame struct {
	Time   float64
	Value  float64
	Interp Interpolation
	Left   float64 // derivative entering the keyframe
	Right  float64 // derivative leaving the keyframe
}

// SetKeyResult reports the outcome of [Curve.SetOrAddKeyFrame].
type SetKeyResult int

const (
	// KeyNoChange means a keyframe with identical content already existed.
	KeyNoChange SetKeyResult = iota
	// KeyReplaced means the keyframe at that time was modified.
	KeyReplaced
	// KeyAdded means a new keyframe was inserted.
	KeyAdded
)

func (r SetKeyResult) String() string {
	switch r {
	case KeyReplaced:
		return "replaced"
	case KeyAdded:
		return "added"
	}
	return "no-change"
}

// TimeRange is an inclusive time interval.
type TimeRange struct {
	First, Last float64
}

// Contains reports whether t lies in [First, Last].
func (r TimeRange) Contains(t float64) bool { return t >= r.First && t <= r.Last }
