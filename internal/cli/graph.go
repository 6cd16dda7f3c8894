package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/knobs/pkg/buildinfo"
	"github.com/matzehuels/knobs/pkg/cache"
	"github.com/matzehuels/knobs/pkg/depgraph"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/hash"
	kio "github.com/matzehuels/knobs/pkg/io"
	"github.com/matzehuels/knobs/pkg/knob"
)

// Graph output formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
)

const renderTTL = 7 * 24 * time.Hour

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		opts   depgraph.Options
		format  string
		output  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the link and expression graph",
		Long: `Export the links and expression dependencies between knobs as a
Graphviz graph. Nodes are drawn as clusters of their knobs; links are dashed
and expression reads are blue.`,
		Example: `  knobctl graph > project.dot
  knobctl graph --format svg -o project.svg --all --detailed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format = strings.ToLower(format)
			if format != formatDOT && format != formatSVG {
				return errors.Invalid("unknown graph format %q (want dot or svg)", format)
			}
			p, err := c.load(ctx)
			if err != nil {
				return err
			}

			prog := newProgress(loggerFromContext(ctx))
			data := []byte(depgraph.ToDOT(p, opts))
			if format == formatSVG {
				if data, err = c.renderSVG(cmd, string(data), noCache); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if output == "" {
				_, err := out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			prog.done("Rendered " + format)
			printSuccess(out, "Wrote %d edges", len(depgraph.Edges(p)))
			printFile(out, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", formatDOT, "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include knobs without links or expressions")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "show kind, dimensions and views in knob labels")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "render even if a cached SVG exists")
	return cmd
}

// renderSVG renders dot through Graphviz, reusing a cached render of the
// same source when one exists.
func (c *CLI) renderSVG(cmd *cobra.Command, dot string, noCache bool) ([]byte, error) {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	store, err := openCache(noCache)
	if err != nil {
		logger.Warn("Render cache unavailable", "error", err)
		store = cache.NewNullCache()
	}
	defer store.Close()

	key := cache.Key(formatSVG, buildinfo.Version, dot)
	if data, ok, err := store.Get(ctx, key); err == nil && ok {
		logger.Debug("Using cached render", "key", key)
		return data, nil
	}

	spin := newSpinner(ctx, cmd.ErrOrStderr(), "Rendering SVG...")
	spin.Start()
	data, err := depgraph.RenderSVG(ctx, dot)
	spin.Stop()
	if err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	if err := store.Set(ctx, key, data, renderTTL); err != nil {
		logger.Warn("Could not cache render", "error", err)
	}
	return data, nil
}

// hashCommand creates the hash command.
func (c *CLI) hashCommand() *cobra.Command {
	var (
		tl        timeline
		invariant bool
	)

	cmd := &cobra.Command{
		Use:   "hash [node...]",
		Short: "Print content hashes of nodes and the project file",
		Long: `Print the 64-bit content hash of each node at the project's current
time and view, followed by the project hash and the SHA-256 fingerprint of
the saved document. With --invariant animated dimensions are skipped, so the
hash does not change along the timeline.`,
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

			hargs := knob.HashArgs{Time: p.Time(), View: p.View(), Type: knob.HashTimeViewVariant}
			if invariant {
				hargs.Type = knob.HashTimeViewInvariant
			}

			out := cmd.OutOrStdout()
			for _, n := range nodes {
				fmt.Fprintf(out, "%s  %s\n", hash.Hex(n.Hash(ctx, hargs)), n.Name())
			}
			if len(args) > 0 {
				return nil
			}
			fp, err := kio.Fingerprint(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s  %s\n", hash.Hex(p.Hash(ctx, hargs)), "(project)")
			fmt.Fprintf(out, "%s  %s\n", fp, "(document)")
			return nil
		},
	}

	tl.register(cmd)
	cmd.Flags().BoolVar(&invariant, "invariant", false, "skip animated dimensions")
	return cmd
}
