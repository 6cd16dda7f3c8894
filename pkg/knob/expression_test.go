package knob

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/observability"
)

type invalidRecorder struct {
	observability.NoopKnobHooks

	mu      sync.Mutex
	reasons []string
	ids     []string
}

func (r *invalidRecorder) OnExpressionInvalid(_ context.Context, ev observability.KnobEvent, reason string) {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.ids = append(r.ids, ev.KnobID)
	r.mu.Unlock()
}

func (r *invalidRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func valueAt(t *testing.T, k *Knob[float64], tm float64) float64 {
	t.Helper()
	got, err := k.ValueAtTime(context.Background(), tm, 0, anim.GetView(0))
	require.NoError(t, err)
	return got
}

func TestExpressionReadsOtherKnob(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	src := newTestHolder("src", app)
	dst := newTestHolder("dst", app)
	a := NewDouble(src, "a", 1)
	b := NewDouble(dst, "b", 1)
	set(t, a, 0, 0, 2)

	require.NoError(t, b.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("src.a", 0) * 2`, false, true))
	assert.Equal(t, 4.0, valueAt(t, b, 0))
	assert.True(t, b.HasExpression(0, 0))
	assert.True(t, b.HasModifications())
	assert.Empty(t, b.ExpressionError(0, 0))

	deps := b.Dependencies(0, 0)
	require.Len(t, deps, 1)
	assert.Equal(t, a, deps[0].Knob)
	assert.Equal(t, []Listener{{Knob: b, Dimension: 0, View: 0, ListenedDimension: 0}}, a.Listeners())

	set(t, a, 0, 0, 5)
	assert.Equal(t, 10.0, valueAt(t, b, 0))
	assert.Equal(t, ReasonExpression, dst.valueChanges[len(dst.valueChanges)-1])

	require.NoError(t, b.ClearExpression(ctx, anim.Dim(0), anim.SetView(0)))
	assert.False(t, b.HasExpression(0, 0))
	assert.Empty(t, a.Listeners())
	assert.Equal(t, 0.0, valueAt(t, b, 0))
}

func TestExpressionForms(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	k := NewDouble(h, "k", 1)

	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), "frame * 2", false, true))
	assert.Equal(t, 6.0, valueAt(t, k, 3))

	src := "if frame > 5 {\n\tret = 1\n} else {\n\tret = -1\n}"
	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), src, true, true))
	assert.Equal(t, -1.0, valueAt(t, k, 2))
	assert.Equal(t, 1.0, valueAt(t, k, 8))
	text, usesRet, ok := k.Expression(0, 0)
	require.True(t, ok)
	assert.Equal(t, src, text)
	assert.True(t, usesRet)

	// empty text clears
	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), "  ", false, true))
	assert.False(t, k.HasExpression(0, 0))

	label := NewString(h, "label")
	title := NewString(h, "title")
	_, err := label.SetValueAtTime(ctx, 0, "hello", anim.ViewSetSpecAll, anim.Dim(0), ReasonUserEdited)
	require.NoError(t, err)
	require.NoError(t, title.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `strings.ToUpper(text("label", 0))`, false, true))
	got, err := title.ValueAtTime(ctx, 0, 0, anim.GetView(0))
	require.NoError(t, err)
	assert.Equal(t, "HELLO", got)

	flag := NewBool(h, "flag")
	require.NoError(t, flag.SetExpression(ctx, anim.Dim(0), anim.SetView(0), "frame", false, true))
	on, err := flag.ValueAtTime(ctx, 1, 0, anim.GetView(0))
	require.NoError(t, err)
	assert.True(t, on)
}

func TestExpressionInvalid(t *testing.T) {
	rec := &invalidRecorder{}
	observability.SetKnobHooks(rec)
	defer observability.Reset()

	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	k := NewDouble(h, "k", 1)
	set(t, k, 0, 0, 7)

	err := k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), "undefinedThing * 2", false, true)
	assert.True(t, errors.Is(err, errors.ErrCodeExpressionInvalid))
	assert.False(t, k.HasExpression(0, 0))
	assert.Zero(t, rec.count())

	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), "undefinedThing * 2", false, false))
	assert.True(t, k.HasExpression(0, 0))
	assert.NotEmpty(t, k.ExpressionError(0, 0))
	assert.Equal(t, 7.0, valueAt(t, k, 0), "stored value is used")
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, k.ID().String(), rec.ids[0])

	err = k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("missing", 0)`, false, true)
	assert.True(t, errors.Is(err, errors.ErrCodeExpressionInvalid))

	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("missing", 0)`, false, false))
	assert.NotEmpty(t, k.ExpressionError(0, 0))
	assert.Equal(t, 7.0, valueAt(t, k, 0))
	assert.Equal(t, 7.0, valueAt(t, k, 1))
	assert.Equal(t, 2, rec.count(), "the same failure is reported once")
}

func TestExpressionWithoutEvaluator(t *testing.T) {
	k := NewDouble(nil, "k", 1)
	err := k.SetExpression(context.Background(), anim.Dim(0), anim.SetView(0), "1", false, false)
	assert.True(t, errors.Is(err, errors.ErrCodeNoEvaluator))
}

func TestExpressionCycle(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	a := NewDouble(h, "a", 1)
	b := NewDouble(h, "b", 1)

	require.NoError(t, a.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("b", 0) + 1`, false, true))
	require.NoError(t, b.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("a", 0) + 1`, false, true))

	// each read stops at the slot already on the stack and uses its
	// stored value there
	assert.Equal(t, 2.0, valueAt(t, a, 0))
	assert.Equal(t, 2.0, valueAt(t, b, 0))
	assert.Empty(t, a.ExpressionError(0, 0))

	// notification terminates, and the stored value of the slot that
	// closes the cycle is what each read sees
	set(t, a, 0, 0, 10)
	assert.Equal(t, 12.0, valueAt(t, a, 0))
	assert.Equal(t, 2.0, valueAt(t, b, 0))
}

func TestExpressionSelfReference(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	k := NewDouble(h, "k", 2)
	set(t, k, 0, 0, 3)

	require.NoError(t, k.SetExpression(ctx, anim.Dim(1), anim.SetView(0), `value("k", 0) + value("k", 1)`, false, true))
	got, err := k.ValueAtTime(ctx, 0, 1, anim.GetView(0))
	require.NoError(t, err)
	assert.Equal(t, 3.0, got, "dimension 1 reads its stored 0")
}
