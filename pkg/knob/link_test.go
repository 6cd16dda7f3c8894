package knob

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/observability"
)

func rawValue(t *testing.T, k *Knob[float64], d anim.DimIdx, v anim.ViewIdx) float64 {
	t.Helper()
	got, err := k.ValueAtTime(context.Background(), 0, d, anim.GetView(v))
	require.NoError(t, err)
	return got
}

func set(t *testing.T, k *Knob[float64], d anim.DimIdx, v anim.ViewIdx, val float64) {
	t.Helper()
	_, err := k.SetValueAtTime(context.Background(), 0, val, anim.SetView(v), anim.Dim(d), ReasonUserEdited)
	require.NoError(t, err)
}

func TestLinkUnlinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newTestHolder("node", nil)
	a := NewDouble(h, "a", 1)
	b := NewDouble(h, "b", 1)
	set(t, a, 0, 0, 1)
	set(t, b, 0, 0, 2)

	ok, err := a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, rawValue(t, a, 0, 0))
	assert.True(t, a.IsLinked(0, 0))
	assert.True(t, b.IsLinked(0, 0))

	master, ok := a.SharingMaster(0, 0)
	require.True(t, ok)
	assert.Equal(t, b, master.Knob)
	_, ok = b.SharingMaster(0, 0)
	assert.False(t, ok, "b owns the storage")

	ok, err = a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	assert.False(t, ok, "already linked")

	set(t, b, 0, 0, 5)
	assert.Equal(t, 5.0, rawValue(t, a, 0, 0))
	set(t, a, 0, 0, 6)
	assert.Equal(t, 6.0, rawValue(t, b, 0, 0))

	require.NoError(t, a.Unlink(ctx, anim.Dim(0), anim.SetView(0), false))
	assert.Equal(t, 1.0, rawValue(t, a, 0, 0), "pre-link value restored")
	assert.Equal(t, 6.0, rawValue(t, b, 0, 0))
	assert.False(t, a.IsLinked(0, 0))
	assert.False(t, b.IsLinked(0, 0))

	_, err = a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	set(t, b, 0, 0, 9)
	require.NoError(t, a.Unlink(ctx, anim.Dim(0), anim.SetView(0), true))
	assert.Equal(t, 9.0, rawValue(t, a, 0, 0), "shared state copied")
	set(t, b, 0, 0, 10)
	assert.Equal(t, 9.0, rawValue(t, a, 0, 0), "independent after unlink")

	checkOwners(t, []*Knob[float64]{a, b})
}

func TestLinkNotifiesSharedOwners(t *testing.T) {
	ctx := context.Background()
	ha := newTestHolder("a", nil)
	hb := newTestHolder("b", nil)
	a := NewDouble(ha, "size", 1)
	b := NewDouble(hb, "size", 1)
	_, err := a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)

	_, before := ha.counts()
	set(t, b, 0, 0, 3)
	_, after := ha.counts()
	assert.Equal(t, before+1, after, "a is told its shared storage changed")
	assert.Equal(t, ReasonPluginEdited, ha.valueChanges[len(ha.valueChanges)-1])
}

func TestLinkChainFollowsStorage(t *testing.T) {
	ctx := context.Background()
	a := NewDouble(nil, "a", 1)
	b := NewDouble(nil, "b", 1)
	c := NewDouble(nil, "c", 1)

	_, err := b.LinkTo(ctx, a, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	// linking a moves b along
	_, err = a.LinkTo(ctx, c, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	set(t, c, 0, 0, 4)
	assert.Equal(t, 4.0, rawValue(t, b, 0, 0))
	assert.Len(t, c.SharedValues(0, 0), 2)

	checkOwners(t, []*Knob[float64]{a, b, c})
}

func TestLinkDimensionsOfOneKnob(t *testing.T) {
	ctx := context.Background()
	k := NewDouble(nil, "scale", 2)
	ok, err := k.LinkTo(ctx, k, anim.Dim(1), anim.Dim(0), anim.SetView(0), anim.SetView(0))
	require.NoError(t, err)
	require.True(t, ok)
	set(t, k, 0, 0, 3)
	assert.Equal(t, 3.0, rawValue(t, k, 1, 0))

	_, ok = k.SharingMaster(1, 0)
	assert.False(t, ok, "the master is k itself")
	assert.True(t, k.IsLinked(1, 0))
	checkOwners(t, []*Knob[float64]{k})
}

func TestLinkInvalidArguments(t *testing.T) {
	ctx := context.Background()
	a := NewDouble(nil, "a", 2)
	b := NewDouble(nil, "b", 3)
	i := NewInt(nil, "i", 2)

	tests := []struct {
		name string
		call func() error
	}{
		{"type mismatch", func() error {
			_, err := a.LinkTo(ctx, i, anim.Dim(0), anim.Dim(0), anim.SetView(0), anim.SetView(0))
			return err
		}},
		{"all paired with index", func() error {
			_, err := a.LinkTo(ctx, b, anim.DimSpecAll, anim.Dim(0), anim.SetView(0), anim.SetView(0))
			return err
		}},
		{"all views paired with index", func() error {
			_, err := a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(0), anim.ViewSetSpecAll, anim.SetView(0))
			return err
		}},
		{"dimension counts differ", func() error {
			_, err := a.LinkTo(ctx, b, anim.DimSpecAll, anim.DimSpecAll, anim.SetView(0), anim.SetView(0))
			return err
		}},
		{"dimension out of range", func() error {
			_, err := a.LinkTo(ctx, b, anim.Dim(0), anim.Dim(5), anim.SetView(0), anim.SetView(0))
			return err
		}},
		{"copy mismatch", func() error {
			_, err := a.CopyKnob(ctx, b, anim.SetView(0), anim.DimSpecAll, anim.SetView(0), anim.Dim(1), nil, 0)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.IsInvalidArgument(tt.call()))
		})
	}
}

func TestCopyKnob(t *testing.T) {
	ctx := context.Background()
	src := NewDouble(nil, "src", 1)
	dst := NewDouble(nil, "dst", 1)
	keyed(t, src, anim.Dim(0), 1, 5, 9)

	r := &curve.TimeRange{First: 2, Last: 9}
	ok, err := dst.CopyKnob(ctx, src, anim.SetView(0), anim.Dim(0), anim.SetView(0), anim.Dim(0), r, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{15, 19}, keyTimes(t, dst, 0))
	assert.False(t, dst.IsLinked(0, 0), "copies are independent")

	ok, err = dst.CopyKnob(ctx, src, anim.SetView(0), anim.Dim(0), anim.SetView(0), anim.Dim(0), r, 10)
	require.NoError(t, err)
	assert.False(t, ok, "nothing to copy twice")
}

type changeRecorder struct {
	observability.NoopKnobHooks

	mu     sync.Mutex
	events []observability.KnobEvent
}

func (r *changeRecorder) OnValueChanged(_ context.Context, ev observability.KnobEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestCopyKnobReportsKeyDiff(t *testing.T) {
	rec := &changeRecorder{}
	observability.SetKnobHooks(rec)
	defer observability.Reset()

	ctx := context.Background()
	src := NewDouble(nil, "src", 1)
	dst := NewDouble(nil, "dst", 1)
	keyed(t, src, anim.Dim(0), 1, 5)
	keyed(t, dst, anim.Dim(0), 5, 7)
	rec.mu.Lock()
	rec.events = nil
	rec.mu.Unlock()

	ok, err := dst.CopyKnob(ctx, src, anim.SetView(0), anim.Dim(0), anim.SetView(0), anim.Dim(0), nil, 0)
	require.NoError(t, err)
	require.True(t, ok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	assert.Equal(t, "dst", rec.events[0].Knob)
	assert.Equal(t, []float64{1}, rec.events[0].KeysAdded)
	assert.Equal(t, []float64{7}, rec.events[0].KeysRemoved)
}

// checkOwners verifies that every storage's owner set is exactly the set of
// slots pointing at it, and that kept pre-link snapshots are unowned.
func checkOwners(t *testing.T, knobs []*Knob[float64]) {
	t.Helper()
	pointing := make(map[*dimViewData[float64]][]owner[float64])
	for _, k := range knobs {
		k.dataMu.RLock()
		for d := range k.nDims {
			for v, data := range k.data[d] {
				pointing[data] = append(pointing[data], owner[float64]{knob: k, dim: anim.DimIdx(d), view: v})
			}
			for v, saved := range k.saved[d] {
				saved.mu.RLock()
				assert.Empty(t, saved.owners, "%s[%d]@%d snapshot owned", k.name, d, v)
				saved.mu.RUnlock()
			}
		}
		k.dataMu.RUnlock()
	}
	for data, slots := range pointing {
		data.mu.RLock()
		owners := append([]owner[float64](nil), data.owners...)
		data.mu.RUnlock()
		assert.ElementsMatch(t, slots, owners, "storage %d", data.id)
	}
	for _, k := range knobs {
		for _, v := range k.Views() {
			for d := range k.nDims {
				k.dataMu.RLock()
				_, ok := k.data[d][v]
				k.dataMu.RUnlock()
				assert.True(t, ok, "%s[%d]@%d has no storage", k.name, d, v)
			}
		}
	}
}

func TestSharedOwnerInvariant(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	var knobs []*Knob[float64]
	for i := range 5 {
		knobs = append(knobs, NewDouble(nil, fmt.Sprintf("k%d", i), 2))
	}
	pick := func() *Knob[float64] { return knobs[rng.IntN(len(knobs))] }
	dim := func() anim.DimIdx { return anim.DimIdx(rng.IntN(2)) }
	view := func() anim.ViewIdx { return anim.ViewIdx(rng.IntN(3)) }

	for step := range 500 {
		var op string
		switch rng.IntN(6) {
		case 0, 1:
			a, b := pick(), pick()
			op = "link"
			_, err := a.LinkTo(ctx, b, anim.Dim(dim()), anim.Dim(dim()), anim.SetView(view()), anim.SetView(view()))
			require.NoError(t, err)
		case 2:
			op = "unlink"
			require.NoError(t, pick().Unlink(ctx, anim.Dim(dim()), anim.SetView(view()), rng.IntN(2) == 0))
		case 3:
			op = "split"
			pick().SplitView(ctx, view())
		case 4:
			op = "unsplit"
			pick().UnSplitView(ctx, view())
		case 5:
			op = "set"
			set(t, pick(), dim(), view(), float64(step))
		}
		checkOwners(t, knobs)
		if t.Failed() {
			t.Fatalf("invariant broken at step %d (%s)", step, op)
		}
	}
}
