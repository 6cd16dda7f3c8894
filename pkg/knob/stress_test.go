package knob

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
)

// TestConcurrentEdits runs edits, reads and relinking from several
// goroutines at once. It relies on the race detector and on the owner
// bookkeeping being consistent once every goroutine is done.
func TestConcurrentEdits(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}
	h := newTestHolder("node", nil)
	var knobs []*Knob[float64]
	for i := range 6 {
		k := NewDouble(h, fmt.Sprintf("k%d", i), 2)
		keyed(t, k, anim.Dim(0), 1, 2, 3)
		knobs = append(knobs, k)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for w := range 8 {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(w), 99))
			for i := range 300 {
				a := knobs[rng.IntN(len(knobs))]
				b := knobs[rng.IntN(len(knobs))]
				d := anim.DimIdx(rng.IntN(2))
				od := anim.DimIdx(rng.IntN(2))
				var err error
				switch rng.IntN(9) {
				case 0:
					_, err = a.LinkTo(ctx, b, anim.Dim(d), anim.Dim(od), anim.SetView(0), anim.SetView(0))
				case 1:
					err = a.Unlink(ctx, anim.Dim(d), anim.SetView(0), rng.IntN(2) == 0)
				case 2:
					_, err = a.SetValueAtTime(ctx, float64(i%5), float64(i), anim.ViewSetSpecAll, anim.Dim(d), ReasonUserEdited)
				case 3:
					_, err = a.ValueAtTime(ctx, 1.5, d, anim.GetView(0))
				case 4:
					_, err = a.CopyKnob(ctx, b, anim.SetView(0), anim.Dim(d), anim.SetView(0), anim.Dim(od), nil, 0)
				case 5:
					_, err = a.MoveValuesAtTime(ctx, []float64{1}, anim.ViewSetSpecAll, anim.Dim(d), 0, 1, ReasonUserEdited)
				case 6:
					a.Hash(ctx, HashArgs{Time: 1, Type: HashTimeViewVariant})
				case 7:
					_ = a.ToRecord()
				case 8:
					if rng.IntN(2) == 0 {
						a.SplitView(ctx, 1)
					} else {
						a.UnSplitView(ctx, 1)
					}
				}
				if err != nil && !errors.IsInvalidArgument(err) {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	checkOwners(t, knobs)
}

// TestConcurrentCyclicReads reads both ends of an expression cycle from
// separate goroutines, directly and through render snapshots of the slots.
func TestConcurrentCyclicReads(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}
	ctx := context.Background()
	h := newTestHolder("node", newTestApp())
	a := NewDouble(h, "a", 1)
	b := NewDouble(h, "b", 1)
	require.NoError(t, a.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("b", 0) + 1`, false, true))
	require.NoError(t, b.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("a", 0) + 1`, false, true))

	var g errgroup.Group
	for _, k := range []*Knob[float64]{a, b, a, b} {
		g.Go(func() error {
			for range 5000 {
				v, err := k.ValueAtTime(ctx, 0, 0, anim.GetView(0))
				if err != nil {
					return err
				}
				if v != 2 {
					return fmt.Errorf("%s = %v, want 2", k.Name(), v)
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("concurrent reads of an expression cycle did not finish")
	}
}

func TestConcurrentHashAndEdits(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}
	k := NewDouble(nil, "k", 1)
	args := HashArgs{View: anim.ViewMain, Type: HashTimeViewVariant}

	var g errgroup.Group
	g.Go(func() error {
		for i := range 2000 {
			if _, err := k.SetValueAtTime(context.Background(), 0, float64(i), anim.ViewSetSpecAll, anim.Dim(0), ReasonUserEdited); err != nil {
				return err
			}
		}
		return nil
	})
	for range 4 {
		g.Go(func() error {
			for range 2000 {
				k.Hash(context.Background(), args)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, freshHash(k, args), k.Hash(context.Background(), args))
}
