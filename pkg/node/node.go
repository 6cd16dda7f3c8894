package node

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/hash"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/observability"
)

// EvaluateFunc is called once per evaluation pass with the knobs that
// changed since the previous pass, in the order they first changed.
type EvaluateFunc func(ctx context.Context, n *Node, changed []knob.Param)

// Node owns a set of knobs. It implements [knob.Holder] and
// [knob.Registrar]: knobs created with a node as holder register
// themselves in declaration order.
//
// Change notifications arriving between BeginChanges and the matching
// outermost EndChanges are coalesced into one evaluation pass.
type Node struct {
	name    string
	project *Project

	mu          sync.Mutex
	depth       int
	changed     []knob.Param
	knobs       []knob.Param
	byName      map[string]knob.Param
	onEvaluate  []EvaluateFunc
	evaluations int

	hashMu sync.Mutex
	hashes map[knob.HashArgs]uint64
}

// New returns a standalone node. Knobs of a standalone node cannot use
// expressions or auto-keying; use [Project.AddNode] for those.
func New(name string) *Node {
	return newNode(name, nil)
}

func newNode(name string, p *Project) *Node {
	return &Node{
		name:    name,
		project: p,
		byName:  make(map[string]knob.Param),
		hashes:  make(map[knob.HashArgs]uint64),
	}
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Project returns the project the node belongs to, or nil.
func (n *Node) Project() *Project { return n.project }

// AddKnob creates a knob of the given kind on n.
func (n *Node) AddKnob(kind knob.Kind, name string, dims int, opts ...knob.Option) (knob.Param, error) {
	if name == "" {
		return nil, errors.Invalid("node %q: knob name is empty", n.name)
	}
	if n.Knob(name) != nil {
		return nil, errors.Invalid("node %q already has a knob %q", n.name, name)
	}
	return knob.Create(n, kind, name, dims, opts...)
}

// RegisterKnob implements [knob.Registrar].
func (n *Node) RegisterKnob(k knob.Param) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, dup := n.byName[k.Name()]; dup {
		n.logger().Warn("duplicate knob name, lookups find the first", "node", n.name, "knob", k.Name())
	} else {
		n.byName[k.Name()] = k
	}
	n.knobs = append(n.knobs, k)
}

// Knob returns the knob called name, or nil.
func (n *Node) Knob(name string) knob.Param {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.byName[name]
}

// Knobs returns the knobs in declaration order.
func (n *Node) Knobs() []knob.Param {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.knobs)
}

// OnEvaluate registers fn to run on every evaluation pass.
func (n *Node) OnEvaluate(fn EvaluateFunc) {
	n.mu.Lock()
	n.onEvaluate = append(n.onEvaluate, fn)
	n.mu.Unlock()
}

// Evaluations returns the number of evaluation passes run so far.
func (n *Node) Evaluations() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.evaluations
}

// BeginChanges opens a change bracket. Brackets nest.
func (n *Node) BeginChanges() {
	n.mu.Lock()
	n.depth++
	n.mu.Unlock()
}

// EndChanges closes a change bracket. Closing the outermost bracket runs
// one evaluation pass if any knob changed inside it.
func (n *Node) EndChanges() {
	n.mu.Lock()
	if n.depth == 0 {
		n.mu.Unlock()
		n.logger().Warn("unbalanced EndChanges", "node", n.name)
		return
	}
	n.depth--
	if n.depth > 0 || len(n.changed) == 0 {
		n.mu.Unlock()
		return
	}
	changed := n.changed
	n.changed = nil
	n.mu.Unlock()

	n.evaluate(context.Background(), changed)
}

// OnKnobValueChanged implements [knob.Holder]. Knobs created with
// evaluation on change disabled are not evaluated.
func (n *Node) OnKnobValueChanged(ctx context.Context, k knob.Param, reason knob.Reason, t float64, view anim.ViewIdx) bool {
	if !k.EvaluateOnChange() {
		return false
	}
	n.mu.Lock()
	if !slices.Contains(n.changed, k) {
		n.changed = append(n.changed, k)
	}
	if n.depth > 0 {
		n.mu.Unlock()
		return true
	}
	changed := n.changed
	n.changed = nil
	n.mu.Unlock()

	n.logger().Debug("knob changed", "node", n.name, "knob", k.Name(), "reason", reason, "time", t, "view", view)
	n.evaluate(ctx, changed)
	return true
}

func (n *Node) evaluate(ctx context.Context, changed []knob.Param) {
	n.mu.Lock()
	n.evaluations++
	fns := slices.Clone(n.onEvaluate)
	n.mu.Unlock()

	n.logger().Debug("evaluate", "node", n.name, "knobs", len(changed))
	observability.Project().OnEvaluate(ctx, n.name, len(changed))
	for _, fn := range fns {
		fn(ctx, n, changed)
	}
}

// OnKnobViewsChanged implements [knob.Holder].
func (n *Node) OnKnobViewsChanged(_ context.Context, k knob.Param) {
	n.InvalidateHash()
	n.logger().Debug("views changed", "node", n.name, "knob", k.Name(), "views", k.Views())
}

// CurrentTime implements [knob.Holder] with the project timeline.
func (n *Node) CurrentTime(context.Context) float64 {
	if n.project == nil {
		return 0
	}
	return n.project.Time()
}

// CurrentView implements [knob.Holder] with the project timeline.
func (n *Node) CurrentView(context.Context) anim.ViewIdx {
	if n.project == nil {
		return anim.ViewMain
	}
	return n.project.View()
}

// InvalidateHash drops the cached node hashes.
func (n *Node) InvalidateHash() {
	n.hashMu.Lock()
	clear(n.hashes)
	n.hashMu.Unlock()
}

// App implements [knob.Holder].
func (n *Node) App() knob.App {
	if n.project == nil {
		return nil
	}
	return n.project
}

// Hash combines the hashes of every knob in declaration order. Results are
// cached until a knob of the node changes.
func (n *Node) Hash(ctx context.Context, args knob.HashArgs) uint64 {
	n.hashMu.Lock()
	if h, ok := n.hashes[args]; ok {
		n.hashMu.Unlock()
		return h
	}
	n.hashMu.Unlock()

	h := hash.New()
	h.AppendString(n.name)
	for _, k := range n.Knobs() {
		h.AppendUint64(k.Hash(ctx, args))
	}
	sum := h.Sum64()

	n.hashMu.Lock()
	n.hashes[args] = sum
	n.hashMu.Unlock()
	return sum
}

// RefreshAnimated runs one evaluation pass over the knobs whose value
// depends on time. It is called when the timeline moves.
func (n *Node) RefreshAnimated(ctx context.Context) {
	var changed []knob.Param
	for _, k := range n.Knobs() {
		if timeDependent(k) {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return
	}
	n.InvalidateHash()
	n.logger().Debug("time changed", "node", n.name, "knobs", len(changed), "reason", knob.ReasonTimeChanged)
	n.evaluate(ctx, changed)
}

func timeDependent(k knob.Param) bool {
	for _, v := range k.Views() {
		for d := range k.Dimensions() {
			if k.IsAnimated(anim.DimIdx(d), v) || k.HasExpression(anim.DimIdx(d), v) {
				return true
			}
		}
	}
	return false
}

func (n *Node) logger() *log.Logger {
	if n.project != nil {
		return n.project.Logger()
	}
	return log.Default()
}

var (
	_ knob.Holder    = (*Node)(nil)
	_ knob.Registrar = (*Node)(nil)
)
