package anim

import "strconv"

// ViewIdx is a concrete view index. 0 is the main view.
type ViewIdx int

// ViewMain is the always-present main view.
const ViewMain ViewIdx = 0

// DimIdx is a concrete dimension index.
type DimIdx int

// Sentinel values for the spec types. A spec that is not a sentinel carries
// a value >= 0.
const (
	specAll     = -1
	specCurrent = -2
)

// ViewSetSpec selects the views a setter writes to.
type ViewSetSpec int

const (
	// ViewSetSpecAll selects every split view of the target.
	ViewSetSpecAll ViewSetSpec = specAll
	// ViewSetSpecCurrent selects the view of the caller's render context.
	ViewSetSpecCurrent ViewSetSpec = specCurrent
)

// SetView returns a spec selecting exactly v.
func SetView(v ViewIdx) ViewSetSpec { return ViewSetSpec(v) }

// IsAll reports whether s selects every view.
func (s ViewSetSpec) IsAll() bool { return s == ViewSetSpecAll }

// IsCurrent reports whether s selects the current view.
func (s ViewSetSpec) IsCurrent() bool { return s == ViewSetSpecCurrent }

// IsViewIdx reports whether s selects a concrete view.
func (s ViewSetSpec) IsViewIdx() bool { return s >= 0 }

// Valid reports whether s is a sentinel or a non-negative index.
func (s ViewSetSpec) Valid() bool { return s >= specCurrent }

// Value returns the concrete view. It is only meaningful when IsViewIdx is true.
func (s ViewSetSpec) Value() ViewIdx { return ViewIdx(s) }

func (s ViewSetSpec) String() string {
	switch s {
	case ViewSetSpecAll:
		return "all"
	case ViewSetSpecCurrent:
		return "current"
	}
	return strconv.Itoa(int(s))
}

// ViewGetSpec selects the view a getter reads from.
type ViewGetSpec int

// ViewGetSpecCurrent reads the view of the caller's render context.
const ViewGetSpecCurrent ViewGetSpec = specCurrent

// GetView returns a spec reading exactly v.
func GetView(v ViewIdx) ViewGetSpec { return ViewGetSpec(v) }

// IsCurrent reports whether s reads the current view.
func (s ViewGetSpec) IsCurrent() bool { return s == ViewGetSpecCurrent }

// Valid reports whether s is the current sentinel or a non-negative index.
func (s ViewGetSpec) Valid() bool { return s == ViewGetSpecCurrent || s >= 0 }

// Value returns the concrete view. It is only meaningful when IsCurrent is false.
func (s ViewGetSpec) Value() ViewIdx { return ViewIdx(s) }

func (s ViewGetSpec) String() string {
	if s == ViewGetSpecCurrent {
		return "current"
	}
	return strconv.Itoa(int(s))
}

// DimSpec selects the dimensions a setter writes to.
type DimSpec int

// DimSpecAll selects every dimension.
const DimSpecAll DimSpec = specAll

// Dim returns a spec selecting exactly d.
func Dim(d DimIdx) DimSpec { return DimSpec(d) }

// IsAll reports whether s selects every dimension.
func (s DimSpec) IsAll() bool { return s == DimSpecAll }

// Value returns the concrete dimension. It is only meaningful when IsAll is false.
func (s DimSpec) Value() DimIdx { return DimIdx(s) }

func (s DimSpec) String() string {
	if s == DimSpecAll {
		return "all"
	}
	return strconv.Itoa(int(s))
}

// ExpandDims returns the concrete dimensions selected by s for an object with
// n dimensions. ok is false when s is a concrete index outside [0, n).
func ExpandDims(s DimSpec, n int) (dims []DimIdx, ok bool) {
	if s.IsAll() {
		dims = make([]DimIdx, n)
		for i := range dims {
			dims[i] = DimIdx(i)
		}
		return dims, true
	}
	if s < 0 || int(s) >= n {
		return nil, false
	}
	return []DimIdx{DimIdx(s)}, true
}
