package knob

import (
	"context"
	stderrors "errors"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/expr"
	"github.com/matzehuels/knobs/pkg/observability"
)

var errCycle = stderrors.New("expression reads itself")

type expression struct {
	src     string
	usesRet bool
	prog    expr.Program // nil when compilation failed
	deps    []SlotRef

	// invalid is the diagnostic of the last failure, guarded by the
	// knob's exprMu.
	invalid string
}

// SetExpression drives the selected slots with an expression. With
// failIfInvalid, a compile or evaluation failure is returned and nothing
// changes; otherwise the expression is kept and marked invalid with the
// diagnostic available from ExpressionError. An empty text clears the
// expression.
func (k *Knob[T]) SetExpression(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec, text string, usesReturnVariable, failIfInvalid bool) error {
	if strings.TrimSpace(text) == "" {
		return k.ClearExpression(ctx, dim, view)
	}
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}

	k.beginChanges()
	defer k.endChanges()

	var changes []change
	now := k.currentTime(ctx)
	for _, a := range addrs {
		changed, err := k.setExpressionSlot(ctx, a.dim, a.view, text, usesReturnVariable, failIfInvalid)
		if err != nil {
			if len(changes) > 0 {
				k.evaluateValueChange(ctx, changes, ReasonExpression)
			}
			return err
		}
		if changed {
			changes = append(changes, change{dim: a.dim, view: a.view, t: now})
		}
	}
	if len(changes) > 0 {
		k.evaluateValueChange(ctx, changes, ReasonExpression)
	}
	return nil
}

// ClearExpression removes the expression of the selected slots.
func (k *Knob[T]) ClearExpression(ctx context.Context, dim anim.DimSpec, view anim.ViewSetSpec) error {
	addrs, err := k.slotsFor(ctx, view, dim)
	if err != nil {
		return err
	}
	var changes []change
	now := k.currentTime(ctx)
	for _, a := range addrs {
		if k.clearExpressionSlot(a.dim, a.view) {
			changes = append(changes, change{dim: a.dim, view: a.view, t: now})
		}
	}
	if len(changes) > 0 {
		k.beginChanges()
		k.evaluateValueChange(ctx, changes, ReasonExpression)
		k.endChanges()
	}
	return nil
}

func (k *Knob[T]) setExpressionSlot(ctx context.Context, d anim.DimIdx, v anim.ViewIdx, text string, usesRet, failIfInvalid bool) (bool, error) {
	app := k.app()
	if app == nil || app.Compiler() == nil {
		return false, errors.New(errors.ErrCodeNoEvaluator, "knob %q: no expression evaluator", k.name)
	}

	e := &expression{src: text, usesRet: usesRet}
	prog, err := app.Compiler().Compile(text, usesRet, k.exprKind())
	if err != nil {
		if failIfInvalid {
			return false, err
		}
		e.invalid = err.Error()
	} else {
		e.prog = prog
		res, err := k.runExpression(ctx, e, k.currentTime(ctx), d, v)
		if err != nil && !stderrors.Is(err, errCycle) {
			if failIfInvalid {
				return false, err
			}
			e.invalid = err.Error()
		}
		e.deps = k.resolveDeps(res.Deps, v)
	}

	k.exprMu.Lock()
	old := k.exprs[d][v]
	k.exprs[d][v] = e
	k.exprMu.Unlock()

	k.unregister(old, d, v)
	for _, dep := range e.deps {
		dep.Knob.AddListener(Listener{Knob: k, Dimension: d, View: v, ListenedDimension: dep.Dimension})
	}
	if e.invalid != "" {
		k.reportInvalid(ctx, d, v, e.invalid)
	}
	return true, nil
}

func (k *Knob[T]) clearExpressionSlot(d anim.DimIdx, v anim.ViewIdx) bool {
	k.exprMu.Lock()
	old, ok := k.exprs[d][v]
	delete(k.exprs[d], v)
	k.exprMu.Unlock()
	if !ok {
		return false
	}
	k.unregister(old, d, v)
	return true
}

// unregister removes the listener entries old registered on its
// dependencies.
func (k *Knob[T]) unregister(old *expression, d anim.DimIdx, v anim.ViewIdx) {
	if old == nil {
		return
	}
	for _, dep := range old.deps {
		dep.Knob.RemoveListener(Listener{Knob: k, Dimension: d, View: v, ListenedDimension: dep.Dimension})
	}
}

func (k *Knob[T]) resolveDeps(refs []expr.Ref, v anim.ViewIdx) []SlotRef {
	var out []SlotRef
	for _, r := range refs {
		p, err := k.resolveRef(r.Knob)
		if err != nil {
			continue
		}
		out = append(out, SlotRef{Knob: p, Dimension: anim.DimIdx(r.Dimension), View: v})
	}
	return out
}

func (k *Knob[T]) resolveRef(ref string) (Param, error) {
	app := k.app()
	if app == nil {
		return nil, errors.New(errors.ErrCodeKnobNotFound, "knob %q: cannot resolve %q without an application", k.name, ref)
	}
	return app.ResolveKnob(k, ref)
}

func (k *Knob[T]) expressionAt(d anim.DimIdx, v anim.ViewIdx) *expression {
	k.exprMu.RLock()
	defer k.exprMu.RUnlock()
	return k.exprs[d][v]
}

// Expression returns the expression source of (d, v).
func (k *Knob[T]) Expression(d anim.DimIdx, v anim.ViewIdx) (text string, usesReturnVariable bool, ok bool) {
	if k.checkDim(d) != nil {
		return "", false, false
	}
	e := k.expressionAt(d, k.views.ResolveView(v))
	if e == nil {
		return "", false, false
	}
	return e.src, e.usesRet, true
}

// HasExpression reports whether (d, v) is driven by an expression.
func (k *Knob[T]) HasExpression(d anim.DimIdx, v anim.ViewIdx) bool {
	_, _, ok := k.Expression(d, v)
	return ok
}

// ExpressionError returns the diagnostic of an invalid expression, or "".
func (k *Knob[T]) ExpressionError(d anim.DimIdx, v anim.ViewIdx) string {
	if k.checkDim(d) != nil {
		return ""
	}
	k.exprMu.RLock()
	defer k.exprMu.RUnlock()
	if e := k.exprs[d][k.views.ResolveView(v)]; e != nil {
		return e.invalid
	}
	return ""
}

// Dependencies returns the slots the expression of (d, v) reads.
func (k *Knob[T]) Dependencies(d anim.DimIdx, v anim.ViewIdx) []SlotRef {
	if k.checkDim(d) != nil {
		return nil
	}
	if e := k.expressionAt(d, k.views.ResolveView(v)); e != nil {
		return slices.Clone(e.deps)
	}
	return nil
}

// Listeners returns the slots whose expression reads k.
func (k *Knob[T]) Listeners() []Listener {
	k.lisMu.Lock()
	defer k.lisMu.Unlock()
	return slices.Clone(k.listeners)
}

// AddListener registers l as reading k. Duplicates are ignored.
func (k *Knob[T]) AddListener(l Listener) {
	k.lisMu.Lock()
	defer k.lisMu.Unlock()
	if !slices.Contains(k.listeners, l) {
		k.listeners = append(k.listeners, l)
	}
}

// RemoveListener unregisters l.
func (k *Knob[T]) RemoveListener(l Listener) {
	k.lisMu.Lock()
	defer k.lisMu.Unlock()
	k.listeners = slices.DeleteFunc(k.listeners, func(x Listener) bool { return x == l })
}

// runExpression evaluates e for slot (d, v) at t. References are resolved
// through the application and read with the same context, so a slot
// already being evaluated on this call stack fails with errCycle.
func (k *Knob[T]) runExpression(ctx context.Context, e *expression, t float64, d anim.DimIdx, v anim.ViewIdx) (expr.Result, error) {
	ctx, ok := enterEvaluation(ctx, evalSlot{knob: k, dim: d, view: v})
	if !ok {
		return expr.Result{}, errCycle
	}
	env := expr.Env{
		Frame:     t,
		View:      int(v),
		Dimension: int(d),
		Value: func(ref string, dim int) (float64, error) {
			p, err := k.resolveRef(ref)
			if err != nil {
				return 0, err
			}
			return p.exprNumber(ctx, t, anim.DimIdx(dim), v)
		},
		Text: func(ref string, dim int) (string, error) {
			p, err := k.resolveRef(ref)
			if err != nil {
				return "", err
			}
			return p.exprText(ctx, t, anim.DimIdx(dim), v)
		},
	}
	return e.prog.Eval(env)
}

// evalExpression returns the expression value of a slot. ok is false when
// the expression failed or is already being evaluated, in which case the
// caller reads the stored value.
func (k *Knob[T]) evalExpression(ctx context.Context, e *expression, t float64, d anim.DimIdx, v anim.ViewIdx) (T, bool) {
	var zero T
	res, err := k.runExpression(ctx, e, t, d, v)
	if stderrors.Is(err, errCycle) {
		return zero, false
	}
	if err != nil {
		msg := err.Error()
		k.exprMu.Lock()
		fresh := e.invalid != msg
		e.invalid = msg
		k.exprMu.Unlock()
		if fresh {
			k.reportInvalid(ctx, d, v, msg)
		}
		return zero, false
	}
	out, ok := expr.Convert[T](res)
	if ok {
		k.exprMu.Lock()
		e.invalid = ""
		k.exprMu.Unlock()
	}
	return out, ok
}

func (k *Knob[T]) reportInvalid(ctx context.Context, d anim.DimIdx, v anim.ViewIdx, msg string) {
	k.logger().Warn("expression invalid", "knob", qualifiedName(k), "dimension", d, "view", v, "err", msg)
	observability.Knobs().OnExpressionInvalid(ctx, k.event(int(d), int(v), k.currentTime(ctx), ReasonExpression), msg)
}

func (k *Knob[T]) exprNumber(ctx context.Context, t float64, d anim.DimIdx, v anim.ViewIdx) (float64, error) {
	if err := k.checkDim(d); err != nil {
		return 0, err
	}
	val := k.valueAt(ctx, t, d, k.views.ResolveView(v))
	if s, ok := any(val).(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeInvalidArgument, err, "knob %q is not numeric", k.name)
		}
		return f, nil
	}
	return toFloat(val), nil
}

func (k *Knob[T]) exprText(ctx context.Context, t float64, d anim.DimIdx, v anim.ViewIdx) (string, error) {
	if err := k.checkDim(d); err != nil {
		return "", err
	}
	return formatValue(k.valueAt(ctx, t, d, k.views.ResolveView(v))), nil
}
