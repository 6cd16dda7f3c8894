package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	kio "github.com/matzehuels/knobs/pkg/io"
	"github.com/matzehuels/knobs/pkg/node"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for knobctl.

Knob references (node.knob) complete from the project file named by
--project.

Bash:
  $ source <(knobctl completion bash)

Zsh:
  $ knobctl completion zsh > "${fpath[1]}/_knobctl"

Fish:
  $ knobctl completion fish > ~/.config/fish/completions/knobctl.fish

PowerShell:
  PS> knobctl completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeKnobs returns a completion function offering the knob references
// of the project for the first n positional arguments.
func (c *CLI) completeKnobs(n int) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) >= n {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		p, err := kio.Import(ctx, c.project, node.WithLogger(c.Logger))
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return knobRefs(p, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// knobRefs lists "node.knob" for every knob of p that starts with prefix.
func knobRefs(p *node.Project, prefix string) []string {
	var out []string
	for _, n := range p.Nodes() {
		for _, k := range n.Knobs() {
			ref := n.Name() + "." + k.Name()
			if strings.HasPrefix(ref, prefix) {
				out = append(out, ref)
			}
		}
	}
	return out
}
