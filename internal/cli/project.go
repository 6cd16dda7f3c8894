package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knobs/pkg/buildinfo"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// initCommand creates the init command.
func (c *CLI) initCommand() *cobra.Command {
	var (
		views   []string
		autoKey bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty project file",
		Long: `Create an empty project at the path given by --project. The format
follows the extension: .json writes JSON, anything else TOML.`,
		Example: `  knobctl init
  knobctl -p shot.toml init --views left,right --auto-key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(c.project); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", c.project)
			}
			p := node.NewProject(node.WithLogger(c.Logger), node.WithAutoKeying(autoKey))
			if len(views) > 0 {
				if err := p.SetViewNames(views); err != nil {
					return err
				}
			}
			if err := c.save(p); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Created project")
			printFile(out, c.project)
			printNextStep(out, "Add a knob", appName+" add blur.size --kind double --dims 2")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&views, "views", nil, "view names, main view first (default: main)")
	cmd.Flags().BoolVar(&autoKey, "auto-key", false, "turn user edits of animated knobs into keyframes")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project")
	return cmd
}

// addCommand creates the add command.
func (c *CLI) addCommand() *cobra.Command {
	var (
		kind  string
		dims  int
		label string
	)

	cmd := &cobra.Command{
		Use:   "add <node.knob>",
		Short: "Add a knob, creating its node when needed",
		Example: `  knobctl add blur.size --kind double --dims 2 --label Size
  knobctl add title.text --kind string`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := knob.ParseKind(kind)
			if err != nil {
				return err
			}
			m := slotPattern.FindStringSubmatch(args[0])
			if m == nil || m[3] != "" {
				return errors.Invalid("knob reference %q must look like node.knob", args[0])
			}

			return c.edit(cmd.Context(), func(p *node.Project) error {
				n, err := p.Node(m[1])
				if errors.Is(err, errors.ErrCodeNodeNotFound) {
					n, err = p.AddNode(m[1])
				}
				if err != nil {
					return err
				}
				var opts []knob.Option
				if label != "" {
					opts = append(opts, knob.WithLabel(label))
				}
				created, err := n.AddKnob(k, m[2], dims, opts...)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Added %s", created)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "double", "int, double, bool, string, color, choice, button or path")
	cmd.Flags().IntVar(&dims, "dims", 1, "number of dimensions")
	cmd.Flags().StringVar(&label, "label", "", "display label")
	return cmd
}

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			return nil
		},
	}
}
