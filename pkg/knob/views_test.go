package knob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knobs/pkg/anim"
)

func TestSplitView(t *testing.T) {
	ctx := context.Background()
	h := newTestHolder("node", nil)
	k := NewDouble(h, "convergence", 1)
	set(t, k, 0, 0, 1)
	keyed(t, k, anim.Dim(0), 4)

	require.True(t, k.SplitView(ctx, 1))
	assert.False(t, k.SplitView(ctx, 1), "already split")
	assert.Equal(t, []anim.ViewIdx{0, 1}, k.Views())
	assert.True(t, k.HasView(1))
	assert.Equal(t, 1, h.viewChanges)

	// the split view starts as a copy of the main view
	assert.Equal(t, []float64{4}, keyTimes(t, k, 0))
	times, err := k.KeyFrameTimes(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, times)

	_, err = k.SetKeyFrame(ctx, 6, 2, anim.SetView(1), anim.Dim(0), ReasonUserEdited)
	require.NoError(t, err)
	n, err := k.KeyFrameCount(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = k.KeyFrameCount(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "main view untouched")

	_, err = k.SetKeyFrame(ctx, 8, 3, anim.ViewSetSpecAll, anim.Dim(0), ReasonUserEdited)
	require.NoError(t, err)
	n, _ = k.KeyFrameCount(0, 0)
	assert.Equal(t, 2, n)
	n, _ = k.KeyFrameCount(0, 1)
	assert.Equal(t, 3, n)

	require.True(t, k.UnSplitView(ctx, 1))
	assert.False(t, k.UnSplitView(ctx, 1))
	assert.False(t, k.UnSplitView(ctx, anim.ViewMain))
	assert.Equal(t, []anim.ViewIdx{0}, k.Views())
	n, _ = k.KeyFrameCount(0, 1)
	assert.Equal(t, 2, n, "view 1 reads the main view again")
	assert.Equal(t, 2, h.viewChanges)
}

func TestSplitViewDisabled(t *testing.T) {
	k := NewDouble(nil, "size", 1, WithSplitViews(false))
	assert.False(t, k.CanSplitViews())
	assert.False(t, k.SplitView(context.Background(), 1))
	assert.Equal(t, []anim.ViewIdx{0}, k.Views())
}

func TestSplitViewCopiesExpression(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	src := NewDouble(h, "src", 1)
	k := NewDouble(h, "k", 1)
	set(t, src, 0, 0, 3)
	require.NoError(t, k.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("src", 0) + float64(view)`, false, true))

	require.True(t, k.SplitView(ctx, 1))
	assert.True(t, k.HasExpression(0, 1))
	got, err := k.ValueAtTime(ctx, 0, 0, anim.GetView(1))
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
	assert.Len(t, src.Listeners(), 2)

	require.NoError(t, k.ClearExpression(ctx, anim.Dim(0), anim.SetView(1)))
	assert.True(t, k.HasExpression(0, 0))
	assert.Len(t, src.Listeners(), 1)

	k.UnSplitAllViews(ctx)
	assert.Equal(t, []anim.ViewIdx{0}, k.Views())
}

func TestCurrentViewSpec(t *testing.T) {
	ctx := context.Background()
	h := newTestHolder("node", nil)
	k := NewDouble(h, "k", 1)
	require.True(t, k.SplitView(ctx, 1))

	rc := anim.WithRenderContext(ctx, anim.RenderContext{View: 1})
	_, err := k.SetValue(rc, 9, anim.ViewSetSpecCurrent, anim.Dim(0), ReasonUserEdited)
	require.NoError(t, err)
	assert.Equal(t, 9.0, rawValue(t, k, 0, 1))
	assert.Equal(t, 0.0, rawValue(t, k, 0, 0))

	got, err := k.Value(rc, 0, anim.ViewGetSpecCurrent)
	require.NoError(t, err)
	assert.Equal(t, 9.0, got)
	assert.Equal(t, anim.ViewIdx(1), k.ViewIdxFromGetSpec(rc, anim.ViewGetSpecCurrent))

	h.view = 1
	assert.Equal(t, anim.ViewIdx(1), k.ViewIdxFromGetSpec(ctx, anim.ViewGetSpecCurrent), "holder view")
}

func TestBatchCoalescing(t *testing.T) {
	ctx := context.Background()
	h := newTestHolder("node", nil)
	k := NewDouble(h, "k", 3)

	h.BeginChanges()
	h.BeginChanges()
	for d := range 3 {
		set(t, k, anim.DimIdx(d), 0, float64(d+1))
	}
	h.EndChanges()
	evals, changes := h.counts()
	assert.Zero(t, evals, "inner EndChanges does not evaluate")
	assert.Equal(t, 3, changes)
	h.EndChanges()
	evals, _ = h.counts()
	assert.Equal(t, 1, evals)

	_, err := k.SetValueAcrossDimensions(ctx, 0, []float64{7, 8, 9}, 0, anim.ViewSetSpecAll, ReasonUserEdited)
	require.NoError(t, err)
	evals, changes = h.counts()
	assert.Equal(t, 2, evals)
	assert.Equal(t, 4, changes, "one notification for three dimensions")
}

func TestNotificationVisitsEachKnobOnce(t *testing.T) {
	ctx := context.Background()
	app := newTestApp()
	h := newTestHolder("node", app)
	a := NewDouble(h, "a", 1)
	b := NewDouble(h, "b", 1)
	c := NewDouble(h, "c", 1)

	// b and c both read a, c also reads b
	require.NoError(t, b.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("a", 0)`, false, true))
	require.NoError(t, c.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("a", 0) + value("b", 0)`, false, true))
	_, before := h.counts()

	set(t, a, 0, 0, 1)
	_, after := h.counts()
	assert.Equal(t, 3, after-before, "a, b and c are each notified once")
	assert.Equal(t, 2.0, valueAt(t, c, 0))
}
