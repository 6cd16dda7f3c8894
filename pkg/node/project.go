package node

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/expr"
	"github.com/matzehuels/knobs/pkg/hash"
	"github.com/matzehuels/knobs/pkg/knob"
)

// Project is the application side of a set of nodes. It implements
// [knob.App]: it owns the expression compiler, the auto-keying switch and
// the timeline, and resolves the knob references used by expressions.
type Project struct {
	compiler expr.Compiler
	logger   *log.Logger

	mu      sync.RWMutex
	nodes   []*Node
	byName  map[string]*Node
	autoKey bool
	time    float64
	view    anim.ViewIdx
	views   []string
}

// Option configures a Project.
type Option func(*Project)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(p *Project) { p.logger = l }
}

// WithCompiler replaces the expression compiler. A nil compiler disables
// expressions.
func WithCompiler(c expr.Compiler) Option {
	return func(p *Project) { p.compiler = c }
}

// WithAutoKeying sets whether user edits of animated knobs create keyframes.
func WithAutoKeying(on bool) Option {
	return func(p *Project) { p.autoKey = on }
}

// NewProject returns an empty project using the yaegi expression
// interpreter and the default logger.
func NewProject(opts ...Option) *Project {
	p := &Project{
		compiler: expr.NewInterpreter(),
		logger:   log.Default(),
		byName:   make(map[string]*Node),
		views:    []string{"main"},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	return p
}

// Compiler implements [knob.App].
func (p *Project) Compiler() expr.Compiler { return p.compiler }

// Logger implements [knob.App].
func (p *Project) Logger() *log.Logger { return p.logger }

// AutoKeying implements [knob.App].
func (p *Project) AutoKeying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoKey
}

// SetAutoKeying turns auto-keying on or off.
func (p *Project) SetAutoKeying(on bool) {
	p.mu.Lock()
	p.autoKey = on
	p.mu.Unlock()
}

// AddNode creates a node called name.
func (p *Project) AddNode(name string) (*Node, error) {
	if name == "" || strings.ContainsRune(name, '.') {
		return nil, errors.Invalid("invalid node name %q", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byName[name]; ok {
		return nil, errors.Invalid("node %q already exists", name)
	}
	n := newNode(name, p)
	p.nodes = append(p.nodes, n)
	p.byName[name] = n
	return n, nil
}

// Node returns the node called name.
func (p *Project) Node(name string) (*Node, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.byName[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "no node %q", name)
	}
	return n, nil
}

// Nodes returns the nodes in creation order.
func (p *Project) Nodes() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.nodes)
}

// Knob returns the knob named by an absolute "node.knob" reference.
func (p *Project) Knob(ref string) (knob.Param, error) {
	nodeName, knobName, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, errors.Invalid("knob reference %q is not of the form node.knob", ref)
	}
	return p.lookup(nodeName, knobName)
}

// ResolveKnob implements [knob.App]. ref is either "knob", naming a knob of
// the node holding from, or "node.knob".
func (p *Project) ResolveKnob(from knob.Param, ref string) (knob.Param, error) {
	if nodeName, knobName, ok := strings.Cut(ref, "."); ok {
		return p.lookup(nodeName, knobName)
	}
	if from == nil || from.Holder() == nil {
		return nil, errors.New(errors.ErrCodeKnobNotFound, "no node to resolve %q against", ref)
	}
	return p.lookup(from.Holder().Name(), ref)
}

func (p *Project) lookup(nodeName, knobName string) (knob.Param, error) {
	n, err := p.Node(nodeName)
	if err != nil {
		return nil, err
	}
	k := n.Knob(knobName)
	if k == nil {
		return nil, errors.New(errors.ErrCodeKnobNotFound, "node %q has no knob %q", nodeName, knobName)
	}
	return k, nil
}

// Time returns the timeline position.
func (p *Project) Time() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.time
}

// SetTime moves the timeline to t. Every node with animated or
// expression-driven knobs runs an evaluation pass.
func (p *Project) SetTime(ctx context.Context, t float64) {
	p.mu.Lock()
	if p.time == t {
		p.mu.Unlock()
		return
	}
	p.time = t
	p.mu.Unlock()

	for _, n := range p.Nodes() {
		n.RefreshAnimated(ctx)
	}
}

// View returns the current view.
func (p *Project) View() anim.ViewIdx {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// SetView makes v the current view. v must name one of the project views.
func (p *Project) SetView(v anim.ViewIdx) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v < 0 || int(v) >= len(p.views) {
		return errors.Invalid("project has no view %d", v)
	}
	p.view = v
	return nil
}

// ViewNames returns the names of the project views. View 0 is "main".
func (p *Project) ViewNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.views)
}

// SetViewNames replaces the project views. The first name is the main view.
func (p *Project) SetViewNames(names []string) error {
	if len(names) == 0 {
		return errors.Invalid("a project needs at least one view")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = slices.Clone(names)
	if int(p.view) >= len(p.views) {
		p.view = anim.ViewMain
	}
	return nil
}

// ViewIndex returns the index of the view called name.
func (p *Project) ViewIndex(name string) (anim.ViewIdx, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := slices.Index(p.views, name); i >= 0 {
		return anim.ViewIdx(i), nil
	}
	return 0, errors.New(errors.ErrCodeNotFound, "no view %q", name)
}

// Hash combines the hashes of every node in creation order.
func (p *Project) Hash(ctx context.Context, args knob.HashArgs) uint64 {
	h := hash.New()
	for _, n := range p.Nodes() {
		h.AppendUint64(n.Hash(ctx, args))
	}
	return h.Sum64()
}

var _ knob.App = (*Project)(nil)
