// Package cli implements the knobctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/buildinfo"
	"github.com/matzehuels/knobs/pkg/cache"
	"github.com/matzehuels/knobs/pkg/errors"
	kio "github.com/matzehuels/knobs/pkg/io"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "knobctl"

	// defaultProject is the project file used when --project is not given.
	defaultProject = "project.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	project string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:  newLogger(w, level),
		project: defaultProject,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "knobctl edits animated parameters in knob projects",
		Long:         `knobctl reads and edits knob project files: values, keyframes, links between knobs, expressions and per-view splits.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.project, "project", "p", defaultProject, "project file (.toml or .json)")

	// Register all subcommands
	root.AddCommand(c.initCommand())
	root.AddCommand(c.addCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.getCommand())
	root.AddCommand(c.setCommand())
	root.AddCommand(c.exprCommand())
	root.AddCommand(c.linkCommand())
	root.AddCommand(c.unlinkCommand())
	root.AddCommand(c.keysCommand())
	root.AddCommand(c.splitCommand())
	root.AddCommand(c.unsplitCommand())
	root.AddCommand(c.hashCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Project Access
// =============================================================================

// load reads the project file named by --project.
func (c *CLI) load(ctx context.Context) (*node.Project, error) {
	prog := newProgress(loggerFromContext(ctx))
	p, err := kio.Import(ctx, c.project, node.WithLogger(c.Logger))
	if err != nil {
		return nil, err
	}
	prog.debug("Loaded " + c.project)
	return p, nil
}

// save writes p back to the project file named by --project.
func (c *CLI) save(p *node.Project) error {
	if err := kio.Export(p, c.project); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// edit loads the project, runs fn and saves the result when fn succeeds.
func (c *CLI) edit(ctx context.Context, fn func(*node.Project) error) error {
	p, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return c.save(p)
}

// cacheDir returns the directory for rendered graph artifacts.
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// openCache returns the render cache, or a null cache when disabled.
func openCache(disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Argument Parsing
// =============================================================================

// slotPattern matches "node.knob" with an optional "[dimension]" suffix.
var slotPattern = regexp.MustCompile(`^([^.\[\]]+)\.([^.\[\]]+)(?:\[(\d+)\])?$`)

// slotArg is a parsed knob reference from the command line.
type slotArg struct {
	knob knob.Param
	dim  anim.DimSpec
}

// dims returns the concrete dimensions the argument selects.
func (s slotArg) dims() []anim.DimIdx {
	d, _ := anim.ExpandDims(s.dim, s.knob.Dimensions())
	return d
}

// parseSlot resolves "node.knob" or "node.knob[d]" against p. Without a
// dimension suffix every dimension is selected.
func parseSlot(p *node.Project, ref string) (slotArg, error) {
	m := slotPattern.FindStringSubmatch(ref)
	if m == nil {
		return slotArg{}, errors.Invalid("knob reference %q must look like node.knob or node.knob[0]", ref)
	}
	k, err := p.Knob(m[1] + "." + m[2])
	if err != nil {
		return slotArg{}, err
	}
	arg := slotArg{knob: k, dim: anim.DimSpecAll}
	if m[3] != "" {
		d, _ := strconv.Atoi(m[3])
		if d >= k.Dimensions() {
			return slotArg{}, errors.Invalid("%s has %d dimensions, no dimension %d", k, k.Dimensions(), d)
		}
		arg.dim = anim.Dim(anim.DimIdx(d))
	}
	return arg, nil
}

// parseView resolves a view given by name or index. An empty string
// returns ok false.
func parseView(p *node.Project, s string) (v anim.ViewIdx, ok bool, err error) {
	if s == "" {
		return 0, false, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		if i < 0 || i >= len(p.ViewNames()) {
			return 0, false, errors.Invalid("view %d out of range [0, %d)", i, len(p.ViewNames()))
		}
		return anim.ViewIdx(i), true, nil
	}
	v, err = p.ViewIndex(s)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// =============================================================================
// Timeline Flags
// =============================================================================

// timeline holds the --time and --view flags shared by commands that read
// or write values.
type timeline struct {
	time float64
	view string
}

func (tl *timeline) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&tl.time, "time", 0, "timeline time (default: the project's current time)")
	cmd.Flags().StringVar(&tl.view, "view", "", "view name or index (default: the project's current view)")
}

// apply moves the project to the requested time and view.
func (tl *timeline) apply(ctx context.Context, cmd *cobra.Command, p *node.Project) error {
	if cmd.Flags().Changed("time") {
		p.SetTime(ctx, tl.time)
	}
	v, ok, err := parseView(p, tl.view)
	if err != nil || !ok {
		return err
	}
	return p.SetView(v)
}

// setSpec returns the views a setter writes to: the --view flag when given,
// all views otherwise.
func (tl *timeline) setSpec(p *node.Project) (anim.ViewSetSpec, error) {
	v, ok, err := parseView(p, tl.view)
	if err != nil {
		return 0, err
	}
	if !ok {
		return anim.ViewSetSpecAll, nil
	}
	return anim.SetView(v), nil
}

// =============================================================================
// Formatting Helpers
// =============================================================================

// viewName returns the display name of v.
func viewName(p *node.Project, v anim.ViewIdx) string {
	names := p.ViewNames()
	if int(v) < len(names) {
		return names[v]
	}
	return strconv.Itoa(int(v))
}

// dimLabel names dimension d of k, falling back to its index for knobs
// whose dimensions have no names.
func dimLabel(k knob.Param, d anim.DimIdx) string {
	if name := k.DimensionName(d); name != "" {
		return name
	}
	return strconv.Itoa(int(d))
}

// slotState summarizes how a slot gets its value.
func slotState(k knob.Param, d anim.DimIdx, v anim.ViewIdx) string {
	var parts []string
	if m, ok := k.SharingMaster(d, v); ok {
		parts = append(parts, "linked "+iconArrow+" "+m.String())
	}
	if k.HasExpression(d, v) {
		parts = append(parts, "expr")
		if msg := k.ExpressionError(d, v); msg != "" {
			parts = append(parts, "invalid")
		}
	}
	if k.IsAnimated(d, v) {
		n, _ := k.KeyFrameCount(d, v)
		parts = append(parts, fmt.Sprintf("%d keys", n))
	}
	return strings.Join(parts, ", ")
}
