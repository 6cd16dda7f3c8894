package knob

import (
	"context"
	"slices"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
)

// Record is the persisted state of a knob.
type Record struct {
	Name       string       `toml:"name" json:"name"`
	Kind       string       `toml:"kind" json:"kind"`
	Dimensions int          `toml:"dimensions" json:"dimensions"`
	Label      string       `toml:"label,omitempty" json:"label,omitempty"`
	Views      []ViewRecord `toml:"views" json:"views"`
}

// ViewRecord holds the dimensions of one view. When every dimension would
// be written identically, only one entry is written; on load the last
// entry fills every dimension the record does not cover.
type ViewRecord struct {
	View       int         `toml:"view" json:"view"`
	Folded     bool        `toml:"folded,omitempty" json:"folded,omitempty"`
	Dimensions []DimRecord `toml:"dimensions" json:"dimensions"`
}

// DimRecord holds one dimension. A linked dimension writes Link together
// with the master's keys or value, which are restored as the dimension's
// own state in case the link cannot be. Otherwise exactly one of
// Keys/Strings, Expression and Value is written, in that priority order.
// Initial is only written when the default has changed from it.
type DimRecord struct {
	Default        *string `toml:"default,omitempty" json:"default,omitempty"`
	DefaultChanged bool    `toml:"default_changed,omitempty" json:"default_changed,omitempty"`
	Initial        *string `toml:"initial,omitempty" json:"initial,omitempty"`

	Keys       []KeyRecord         `toml:"keys,omitempty" json:"keys,omitempty"`
	Strings    []curve.TimedString `toml:"strings,omitempty" json:"strings,omitempty"`
	Expression string              `toml:"expression,omitempty" json:"expression,omitempty"`
	UsesReturn bool                `toml:"uses_return,omitempty" json:"uses_return,omitempty"`
	Link       *LinkRecord         `toml:"link,omitempty" json:"link,omitempty"`
	Value      *string             `toml:"value,omitempty" json:"value,omitempty"`
}

// KeyRecord is a persisted keyframe.
type KeyRecord struct {
	Time   float64 `toml:"time" json:"time"`
	Value  float64 `toml:"value" json:"value"`
	Interp string  `toml:"interp" json:"interp"`
	Left   float64 `toml:"left,omitempty" json:"left,omitempty"`
	Right  float64 `toml:"right,omitempty" json:"right,omitempty"`
}

// LinkRecord names the master slot of a linked dimension.
type LinkRecord struct {
	Node      string `toml:"node,omitempty" json:"node,omitempty"`
	Knob      string `toml:"knob" json:"knob"`
	Dimension int    `toml:"dimension" json:"dimension"`
	View      int    `toml:"view" json:"view"`
}

func (d DimRecord) equal(o DimRecord) bool {
	return eqPtr(d.Default, o.Default) && d.DefaultChanged == o.DefaultChanged &&
		eqPtr(d.Initial, o.Initial) &&
		slices.Equal(d.Keys, o.Keys) && slices.Equal(d.Strings, o.Strings) &&
		d.Expression == o.Expression && d.UsesReturn == o.UsesReturn &&
		eqPtr(d.Link, o.Link) && eqPtr(d.Value, o.Value)
}

func eqPtr[P comparable](a, b *P) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type pendingRestore struct {
	dim     anim.DimIdx
	view    anim.ViewIdx
	link    *LinkRecord
	expr    string
	usesRet bool
}

// ToRecord captures the persisted state of k.
func (k *Knob[T]) ToRecord() Record {
	rec := Record{Name: k.name, Kind: k.kind.String(), Dimensions: k.nDims}
	if k.opts.label != k.name {
		rec.Label = k.opts.label
	}
	for _, v := range k.views.Views() {
		vr := ViewRecord{View: int(v), Folded: !k.AllDimensionsVisible(v)}
		for d := range k.nDims {
			vr.Dimensions = append(vr.Dimensions, k.dimRecord(anim.DimIdx(d), v))
		}
		if len(vr.Dimensions) > 1 {
			collapse := true
			for _, dr := range vr.Dimensions[1:] {
				if !dr.equal(vr.Dimensions[0]) {
					collapse = false
					break
				}
			}
			if collapse {
				vr.Dimensions = vr.Dimensions[:1]
			}
		}
		rec.Views = append(rec.Views, vr)
	}
	return rec
}

func (k *Knob[T]) dimRecord(d anim.DimIdx, v anim.ViewIdx) DimRecord {
	var dr DimRecord
	k.defMu.RLock()
	def, initial := formatValue(k.defaults[d]), formatValue(k.initial[d])
	dr.DefaultChanged = k.initialSet[d] && k.defaults[d] != k.initial[d]
	k.defMu.RUnlock()
	dr.Default = &def
	if dr.DefaultChanged {
		dr.Initial = &initial
	}

	if m, ok := k.masterSlot(d, v); ok {
		dr.Link = &LinkRecord{Knob: m.Knob.Name(), Dimension: int(m.Dimension), View: int(m.View)}
		if h := m.Knob.Holder(); h != nil {
			dr.Link.Node = h.Name()
		}
	}

	data := k.slot(d, v)
	data.mu.RLock()
	if data.animated() {
		if data.strings != nil {
			dr.Strings = data.strings.Save(data.curve)
		} else {
			for _, kf := range data.curve.KeyFrames() {
				kr := KeyRecord{Time: kf.Time, Value: kf.Value, Interp: kf.Interp.String()}
				if kf.Interp.UserDerivatives() {
					kr.Left, kr.Right = kf.Left, kf.Right
				}
				dr.Keys = append(dr.Keys, kr)
			}
		}
		data.mu.RUnlock()
		return dr
	}
	val := formatValue(data.value)
	data.mu.RUnlock()

	if dr.Link == nil {
		if e := k.expressionAt(d, v); e != nil {
			dr.Expression, dr.UsesReturn = e.src, e.usesRet
			return dr
		}
	}
	dr.Value = &val
	return dr
}

// FromRecord restores values, defaults and keyframes from rec and splits
// the views it names. Links and expressions are only remembered; they are
// applied by RestoreLinks and RestoreExpressions once every knob of the
// project exists.
func (k *Knob[T]) FromRecord(ctx context.Context, rec Record) error {
	if rec.Kind != "" && rec.Kind != k.kind.String() {
		return errors.New(errors.ErrCodeInvalidFormat, "knob %q: record kind %q does not match %q", k.name, rec.Kind, k.kind)
	}

	k.beginChanges()
	defer k.endChanges()

	var changes []change
	var pending []pendingRestore
	for _, vr := range rec.Views {
		v := anim.ViewIdx(vr.View)
		if v != anim.ViewMain && !k.views.HasView(v) && !k.SplitView(ctx, v) {
			k.logger().Warn("view not restored", "knob", qualifiedName(k), "view", v)
			continue
		}
		if len(vr.Dimensions) == 0 {
			continue
		}
		for d := range k.nDims {
			dim := anim.DimIdx(d)
			dr := vr.Dimensions[min(d, len(vr.Dimensions)-1)]
			p, err := k.restoreDim(dim, v, dr)
			if err != nil {
				return err
			}
			if p != nil {
				pending = append(pending, *p)
			}
			changes = append(changes, change{dim: dim, view: v})
		}
		k.visMu.Lock()
		k.allVisible[v] = !vr.Folded
		k.visMu.Unlock()
	}

	k.pendingMu.Lock()
	k.pending = append(k.pending, pending...)
	k.pendingMu.Unlock()

	if len(changes) > 0 {
		k.evaluateValueChange(ctx, changes, ReasonPluginEdited)
	}
	return nil
}

func (k *Knob[T]) restoreDim(d anim.DimIdx, v anim.ViewIdx, dr DimRecord) (*pendingRestore, error) {
	if dr.Default != nil {
		if err := k.restoreDefault(d, dr); err != nil {
			return nil, err
		}
	}

	data := k.slot(d, v)
	switch {
	case len(dr.Keys) > 0 || len(dr.Strings) > 0:
		if data.curve == nil {
			break
		}
		keys := make([]curve.KeyFrame, 0, len(dr.Keys))
		for _, kr := range dr.Keys {
			interp, err := curve.ParseInterpolation(kr.Interp)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "knob %q: keyframe at %v", k.name, kr.Time)
			}
			keys = append(keys, curve.KeyFrame{Time: kr.Time, Value: kr.Value, Interp: interp, Left: kr.Left, Right: kr.Right})
		}
		data.mu.Lock()
		if data.strings != nil {
			data.strings.Load(data.curve, dr.Strings)
		} else {
			data.curve.Clear()
			data.curve.SetOrAddKeyFrames(keys)
		}
		data.mu.Unlock()
	case dr.Value != nil:
		val, err := parseValue[T](*dr.Value)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "knob %q: value", k.name)
		}
		data.mu.Lock()
		data.value = val
		data.mu.Unlock()
	}

	switch {
	case dr.Link != nil:
		link := *dr.Link
		return &pendingRestore{dim: d, view: v, link: &link}, nil
	case dr.Expression != "":
		return &pendingRestore{dim: d, view: v, expr: dr.Expression, usesRet: dr.UsesReturn}, nil
	}
	return nil, nil
}

// restoreDefault applies the saved default of d. A knob created without a
// default of its own takes its initial default from the record, so that a
// default changed before saving is still reported as changed after loading.
func (k *Knob[T]) restoreDefault(d anim.DimIdx, dr DimRecord) error {
	def, err := parseValue[T](*dr.Default)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "knob %q: default", k.name)
	}
	initial := def
	if dr.DefaultChanged && dr.Initial != nil {
		if initial, err = parseValue[T](*dr.Initial); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "knob %q: initial default", k.name)
		}
	}

	k.defMu.Lock()
	if !k.initialSet[d] {
		k.initial[d] = initial
		k.initialSet[d] = true
		k.defaults[d] = def
	} else if dr.DefaultChanged {
		k.defaults[d] = def
	}
	k.defMu.Unlock()
	k.computeHasModifications()
	k.invalidateHash()
	return nil
}

// RestoreLinks applies the links remembered by FromRecord. resolve finds
// the master knob by node and knob name. Links that cannot be restored are
// logged and skipped. It returns the number of restored links.
func (k *Knob[T]) RestoreLinks(ctx context.Context, resolve func(node, knob string) (Param, error)) int {
	n := 0
	for _, p := range k.takePending(func(p pendingRestore) bool { return p.link != nil }) {
		master, err := resolve(p.link.Node, p.link.Knob)
		if err != nil {
			k.logger().Warn("link not restored", "knob", qualifiedName(k), "node", p.link.Node, "master", p.link.Knob, "err", err)
			continue
		}
		_, err = k.LinkTo(ctx, master, anim.Dim(p.dim), anim.Dim(anim.DimIdx(p.link.Dimension)),
			anim.SetView(p.view), anim.SetView(anim.ViewIdx(p.link.View)))
		if err != nil {
			k.logger().Warn("link not restored", "knob", qualifiedName(k), "master", p.link.Knob, "err", err)
			continue
		}
		n++
	}
	return n
}

// RestoreExpressions applies the expressions remembered by FromRecord.
// Expressions that fail are kept and marked invalid. It returns the number
// of expressions set.
func (k *Knob[T]) RestoreExpressions(ctx context.Context) int {
	n := 0
	for _, p := range k.takePending(func(p pendingRestore) bool { return p.link == nil }) {
		if err := k.SetExpression(ctx, anim.Dim(p.dim), anim.SetView(p.view), p.expr, p.usesRet, false); err != nil {
			k.logger().Warn("expression not restored", "knob", qualifiedName(k), "dimension", p.dim, "err", err)
			continue
		}
		n++
	}
	return n
}

func (k *Knob[T]) takePending(match func(pendingRestore) bool) []pendingRestore {
	k.pendingMu.Lock()
	defer k.pendingMu.Unlock()
	var out, rest []pendingRestore
	for _, p := range k.pending {
		if match(p) {
			out = append(out, p)
		} else {
			rest = append(rest, p)
		}
	}
	k.pending = rest
	return out
}
