package node

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/knob"
)

// KnobValues is the value of every dimension of one knob at one time and view.
type KnobValues struct {
	Knob   string
	Kind   knob.Kind
	Values []string
}

// Snapshot reads every knob of n at time t in view, as a render pass would.
// Knobs are read concurrently; the result is in declaration order.
func (n *Node) Snapshot(ctx context.Context, t float64, view anim.ViewIdx) ([]KnobValues, error) {
	knobs := n.Knobs()
	out := make([]KnobValues, len(knobs))
	rctx := anim.WithRenderContext(ctx, anim.RenderContext{Time: t, View: view})

	g, gctx := errgroup.WithContext(rctx)
	g.SetLimit(8)
	for i, k := range knobs {
		g.Go(func() error {
			vals := make([]string, k.Dimensions())
			for d := range vals {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := k.ValueStringAtTime(gctx, t, anim.DimIdx(d), anim.GetView(view))
				if err != nil {
					return fmt.Errorf("%s.%s[%d]: %w", n.name, k.Name(), d, err)
				}
				vals[d] = s
			}
			out[i] = KnobValues{Knob: k.Name(), Kind: k.Kind(), Values: vals}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
