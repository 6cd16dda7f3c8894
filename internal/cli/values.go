package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var tl timeline

	cmd := &cobra.Command{
		Use:   "inspect [node...]",
		Short: "Show every knob and its value at a time and view",
		Long: `Show every knob of the project, or of the named nodes, with its value
at the project's current time and view. Use --time and --view to look at
another position on the timeline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := c.load(ctx)
			if err != nil {
				return err
			}
			if err := tl.apply(ctx, cmd, p); err != nil {
				return err
			}

			nodes, err := selectNodes(p, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printKeyValue(out, "Project", c.project)
			printKeyValue(out, "Time", strconv.FormatFloat(p.Time(), 'g', -1, 64))
			printKeyValue(out, "View", viewName(p, p.View()))

			var rows []knobRow
			for _, n := range nodes {
				values, err := n.Snapshot(ctx, p.Time(), p.View())
				if err != nil {
					return err
				}
				for _, kv := range values {
					k := n.Knob(kv.Knob)
					rows = append(rows, knobRow{
						name:     n.Name() + "." + kv.Knob,
						kind:     kv.Kind.String(),
						values:   kv.Values,
						state:    knobState(ctx, k, p.View()),
						modified: k.HasModifications(),
					})
				}
			}
			if len(rows) == 0 {
				printInfo(out, "No knobs")
				printNextStep(out, "Add one", appName+" add node.knob --kind double")
				return nil
			}
			fmt.Fprintln(out, renderKnobTable(rows))
			return nil
		},
	}

	tl.register(cmd)
	return cmd
}

// selectNodes returns the named nodes, or every node when names is empty.
func selectNodes(p *node.Project, names []string) ([]*node.Node, error) {
	if len(names) == 0 {
		return p.Nodes(), nil
	}
	out := make([]*node.Node, 0, len(names))
	for _, name := range names {
		n, err := p.Node(name)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// knobState summarizes every dimension of k in the view that serves v.
// Dimensions sharing a state are reported once.
func knobState(ctx context.Context, k knob.Param, v anim.ViewIdx) string {
	view := k.ViewIdxFromGetSpec(ctx, anim.GetView(v))
	states := make([]string, k.Dimensions())
	for d := range states {
		states[d] = slotState(k, anim.DimIdx(d), view)
	}
	if len(slices.Compact(slices.Clone(states))) == 1 {
		return states[0]
	}
	var parts []string
	for d, s := range states {
		if s != "" {
			parts = append(parts, dimLabel(k, anim.DimIdx(d))+": "+s)
		}
	}
	return strings.Join(parts, "; ")
}

// getCommand creates the get command.
func (c *CLI) getCommand() *cobra.Command {
	var (
		tl   timeline
		keys bool
	)

	cmd := &cobra.Command{
		Use:   "get <node.knob[dim]>",
		Short: "Print the value of a knob",
		Long: `Print the value of a knob at the project's current time and view.
A single dimension prints only its value; several dimensions print one
"name value" line each. With --keys the keyframes are listed instead.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := c.load(ctx)
			if err != nil {
				return err
			}
			if err := tl.apply(ctx, cmd, p); err != nil {
				return err
			}
			slot, err := parseSlot(p, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			dims := slot.dims()
			view := anim.GetView(p.View())
			for _, d := range dims {
				if keys {
					if err := printKeys(cmd, slot.knob, d, slot.knob.ViewIdxFromGetSpec(ctx, view)); err != nil {
						return err
					}
					continue
				}
				s, err := slot.knob.ValueStringAtTime(ctx, p.Time(), d, view)
				if err != nil {
					return err
				}
				if len(dims) == 1 {
					fmt.Fprintln(out, s)
				} else {
					fmt.Fprintf(out, "%s %s\n", dimLabel(slot.knob, d), s)
				}
			}
			return nil
		},
	}

	tl.register(cmd)
	cmd.Flags().BoolVar(&keys, "keys", false, "list keyframes instead of the value")
	return cmd
}

// printKeys lists the keyframes of one slot as "dim time value interpolation".
func printKeys(cmd *cobra.Command, k knob.Param, d anim.DimIdx, v anim.ViewIdx) error {
	ctx := cmd.Context()
	frames, err := k.KeyFrames(d, v)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, kf := range frames {
		s, err := k.ValueStringAtTime(ctx, kf.Time, d, anim.GetView(v))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %g %s %s\n", dimLabel(k, d), kf.Time, s, kf.Interp)
	}
	return nil
}

// setCommand creates the set command.
func (c *CLI) setCommand() *cobra.Command {
	var (
		tl     timeline
		key    bool
		interp string
	)

	cmd := &cobra.Command{
		Use:   "set <node.knob[dim]> <value>",
		Short: "Set the value of a knob",
		Long: `Set a knob's value at the project's current time, or at --time.

Without a dimension suffix every dimension is set. Without --view every
split view is set. If the project has auto-keying enabled and the knob is
animated, the value becomes a keyframe; --key always sets a keyframe.`,
		Example: `  knobctl set blur.size 2.5
  knobctl set blur.size[1] 4 --key --time 12 --interp linear
  knobctl set title.text "Hello" --view right`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var interpolation curve.Interpolation
			if interp != "" {
				var err error
				if interpolation, err = curve.ParseInterpolation(interp); err != nil {
					return err
				}
			}

			return c.edit(ctx, func(p *node.Project) error {
				slot, err := parseSlot(p, args[0])
				if err != nil {
					return err
				}
				view, err := tl.setSpec(p)
				if err != nil {
					return err
				}
				t := p.Time()
				if cmd.Flags().Changed("time") {
					t = tl.time
				}

				k := slot.knob
				code, err := k.SetValueFromString(ctx, t, args[1], view, slot.dim, knob.ReasonUserEdited, key)
				if err != nil {
					return err
				}
				if interp != "" {
					if _, err := k.SetInterpolationAtTime(ctx, []float64{t}, view, slot.dim, interpolation, knob.ReasonUserEdited); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				if code == knob.NothingChanged {
					printInfo(out, "%s unchanged", k.Name())
					return nil
				}
				printSuccess(out, "%s %s", args[0], code)
				printDetail(out, "time %g, view %s", t, view)
				return nil
			})
		},
	}

	tl.register(cmd)
	cmd.Flags().BoolVar(&key, "key", false, "set a keyframe even without auto-keying")
	cmd.Flags().StringVar(&interp, "interp", "", "interpolation of the keyframe at the set time (constant, linear, smooth, catmullrom, cubic, horizontal, free, broken)")
	return cmd
}
