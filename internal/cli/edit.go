package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/curve"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// exprCommand creates the expr command.
func (c *CLI) exprCommand() *cobra.Command {
	var (
		tl        timeline
		clear     bool
		useReturn bool
	)

	cmd := &cobra.Command{
		Use:   "expr <node.knob[dim]> [expression]",
		Short: "Show, set or clear the expression of a knob",
		Long: `Without an expression, print the expressions of the selected
dimensions. With one, compile it and drive the dimensions with it; an
expression that does not compile is rejected and the project is not saved.

Expressions read other knobs with value("node.knob", dim) and text(...);
frame, view and dimension are in scope.`,
		Example: `  knobctl expr blur.size[0] 'value("grade.gain", 0) * 2'
  knobctl expr blur.size --clear`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 && !clear {
				return c.showExpressions(cmd, args[0], &tl)
			}
			if len(args) == 2 && clear {
				return errors.Invalid("--clear takes no expression")
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
				out := cmd.OutOrStdout()
				if clear {
					if err := slot.knob.ClearExpression(ctx, slot.dim, view); err != nil {
						return err
					}
					printSuccess(out, "Cleared expression on %s", args[0])
					return nil
				}
				if err := slot.knob.SetExpression(ctx, slot.dim, view, args[1], useReturn, true); err != nil {
					return err
				}
				printSuccess(out, "Set expression on %s", args[0])
				for _, d := range slot.dims() {
					s, err := slot.knob.ValueStringAtTime(ctx, p.Time(), d, anim.ViewGetSpecCurrent)
					if err != nil {
						return err
					}
					printDetail(out, "%s = %s at time %g", dimLabel(slot.knob, d), s, p.Time())
				}
				return nil
			})
		},
	}

	tl.register(cmd)
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the expression")
	cmd.Flags().BoolVar(&useReturn, "return", false, "the expression assigns its result to ret")
	return cmd
}

// showExpressions prints the expression, dependencies and error state of
// each selected dimension.
func (c *CLI) showExpressions(cmd *cobra.Command, ref string, tl *timeline) error {
	ctx := cmd.Context()
	p, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := tl.apply(ctx, cmd, p); err != nil {
		return err
	}
	slot, err := parseSlot(p, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	v := slot.knob.ViewIdxFromGetSpec(ctx, anim.ViewGetSpecCurrent)
	found := false
	for _, d := range slot.dims() {
		text, _, ok := slot.knob.Expression(d, v)
		if !ok {
			continue
		}
		found = true
		printKeyValue(out, dimLabel(slot.knob, d), text)
		for _, dep := range slot.knob.Dependencies(d, v) {
			printDetail(out, "reads %s", dep)
		}
		if msg := slot.knob.ExpressionError(d, v); msg != "" {
			printWarning(out, "invalid: %s", msg)
		}
	}
	if !found {
		printInfo(out, "%s has no expression", ref)
	}
	return nil
}

// linkCommand creates the link command.
func (c *CLI) linkCommand() *cobra.Command {
	var tl timeline

	cmd := &cobra.Command{
		Use:   "link <node.knob[dim]> <master.knob[dim]>",
		Short: "Make a knob share the value of another knob",
		Long: `Link the selected dimensions of the first knob to the matching
dimensions of the second. Both knobs must hold the same value type. Either
both references name a dimension or neither does; without dimensions every
dimension is linked to its counterpart.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeKnobs(2),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.edit(ctx, func(p *node.Project) error {
				slave, err := parseSlot(p, args[0])
				if err != nil {
					return err
				}
				master, err := parseSlot(p, args[1])
				if err != nil {
					return err
				}
				view, err := tl.setSpec(p)
				if err != nil {
					return err
				}
				changed, err := slave.knob.LinkTo(ctx, master.knob, slave.dim, master.dim, view, view)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !changed {
					printInfo(out, "%s is already linked to %s", args[0], args[1])
					return nil
				}
				printSuccess(out, "Linked %s %s %s", args[0], iconArrow, args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tl.view, "view", "", "view name or index (default: all views)")
	return cmd
}

// unlinkCommand creates the unlink command.
func (c *CLI) unlinkCommand() *cobra.Command {
	var (
		tl        timeline
		copyState bool
	)

	cmd := &cobra.Command{
		Use:   "unlink <node.knob[dim]>",
		Short: "Give linked dimensions their own value again",
		Long: `Unlink the selected dimensions. By default each dimension gets back
the value it had before it was linked; with --copy it keeps a copy of the
value it currently shares.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.edit(ctx, func(p *node.Project) error {
				slot, err := parseSlot(p, args[0])
				if err != nil {
					return err
				}
				view, err := tl.setSpec(p)
				if err != nil {
					return err
				}
				if err := slot.knob.Unlink(ctx, slot.dim, view, copyState); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Unlinked %s", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tl.view, "view", "", "view name or index (default: all views)")
	cmd.Flags().BoolVar(&copyState, "copy", false, "keep the currently shared value")
	return cmd
}

// splitCommand creates the split command.
func (c *CLI) splitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split <node.knob> <view>",
		Short: "Give a knob its own value in a view",
		Long: `Split a view off a knob. The view starts as a copy of the main view
and can then be edited independently with --view.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			return c.editViews(cmd, args, true)
		},
	}
}

// unsplitCommand creates the unsplit command.
func (c *CLI) unsplitCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "unsplit <node.knob> <view>",
		Short:             "Drop the separate value of a knob in a view",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			return c.editViews(cmd, args, false)
		},
	}
}

func (c *CLI) editViews(cmd *cobra.Command, args []string, split bool) error {
	ctx := cmd.Context()
	return c.edit(ctx, func(p *node.Project) error {
		k, err := p.Knob(args[0])
		if err != nil {
			return err
		}
		v, _, err := parseView(p, args[1])
		if err != nil {
			return err
		}
		if v == anim.ViewMain {
			return errors.Invalid("the main view cannot be split")
		}

		out := cmd.OutOrStdout()
		if split {
			if !k.CanSplitViews() {
				return errors.New(errors.ErrCodeUnsupported, "%s cannot split views", args[0])
			}
			if !k.SplitView(ctx, v) {
				printInfo(out, "%s already has view %s", args[0], args[1])
				return nil
			}
			printSuccess(out, "Split %s in view %s", args[0], args[1])
			return nil
		}
		if !k.UnSplitView(ctx, v) {
			printInfo(out, "%s has no separate view %s", args[0], args[1])
			return nil
		}
		printSuccess(out, "Unsplit %s in view %s", args[0], args[1])
		return nil
	})
}

// keysCommand creates the keys command.
func (c *CLI) keysCommand() *cobra.Command {
	var (
		tl     timeline
		at     []float64
		del    bool
		dt, dv float64
		interp string
		scale  float64
	)

	cmd := &cobra.Command{
		Use:   "keys <node.knob[dim]>",
		Short: "Edit keyframes",
		Long: `Edit the keyframes at the times given with --at. Exactly one edit is
applied per call:

  --delete        remove the keyframes
  --dt, --dv      move them in time and value
  --scale         scale their times around the first one
  --interp NAME   change their interpolation

A move or scale that would collide with another keyframe changes nothing.`,
		Example: `  knobctl keys blur.size --at 0,10 --dt 5
  knobctl keys blur.size[0] --at 12 --delete
  knobctl keys blur.size --at 0,10,20 --interp cubic`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeKnobs(1),
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(at) == 0 {
				return errors.Invalid("--at is required")
			}
			flags := cmd.Flags()
			edits := 0
			for _, name := range []string{"delete", "interp", "scale"} {
				if flags.Changed(name) {
					edits++
				}
			}
			if flags.Changed("dt") || flags.Changed("dv") {
				edits++
			}
			if edits != 1 {
				return errors.Invalid("exactly one of --delete, --dt/--dv, --scale or --interp is required")
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
				k := slot.knob
				reason := knob.ReasonUserEdited

				var changed bool
				switch {
				case del:
					err = k.DeleteValuesAtTime(ctx, at, view, slot.dim, reason)
					changed = err == nil
				case flags.Changed("interp"):
					var i curve.Interpolation
					if i, err = curve.ParseInterpolation(interp); err != nil {
						return err
					}
					changed, err = k.SetInterpolationAtTime(ctx, at, view, slot.dim, i, reason)
				case flags.Changed("scale"):
					m := curve.Scale(scale, 1, at[0], 0)
					changed, err = k.TransformValuesAtTime(ctx, at, view, slot.dim, m, reason)
				default:
					changed, err = k.MoveValuesAtTime(ctx, at, view, slot.dim, dt, dv, reason)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !changed {
					printWarning(out, "No keyframes changed")
					return nil
				}
				printSuccess(out, "Updated %d keyframe time(s) on %s", len(at), args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tl.view, "view", "", "view name or index (default: all views)")
	cmd.Flags().Float64SliceVar(&at, "at", nil, "keyframe times to edit")
	cmd.Flags().BoolVar(&del, "delete", false, "delete the keyframes")
	cmd.Flags().Float64Var(&dt, "dt", 0, "time offset")
	cmd.Flags().Float64Var(&dv, "dv", 0, "value offset")
	cmd.Flags().Float64Var(&scale, "scale", 1, "time scale factor")
	cmd.Flags().StringVar(&interp, "interp", "", "new interpolation")
	return cmd
}
