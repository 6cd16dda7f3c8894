package node

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/knob"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestProject(t *testing.T, opts ...Option) *Project {
	t.Helper()
	return NewProject(append([]Option{WithLogger(log.New(discard{}))}, opts...)...)
}

func mustNode(t *testing.T, p *Project, name string) *Node {
	t.Helper()
	n, err := p.AddNode(name)
	if err != nil {
		t.Fatalf("AddNode(%q): %v", name, err)
	}
	return n
}

// passes records the evaluation passes of a node.
type passes struct {
	mu   sync.Mutex
	runs [][]string
}

func (r *passes) record(_ context.Context, _ *Node, changed []knob.Param) {
	names := make([]string, len(changed))
	for i, k := range changed {
		names[i] = k.Name()
	}
	r.mu.Lock()
	r.runs = append(r.runs, names)
	r.mu.Unlock()
}

func (r *passes) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.runs)
}

func TestCoalescedEvaluation(t *testing.T) {
	ctx := context.Background()
	p := newTestProject(t)
	n := mustNode(t, p, "blur")
	size := knob.NewDouble(n, "size", 2)
	mix := knob.NewDouble(n, "mix", 1)
	var rec passes
	n.OnEvaluate(rec.record)

	n.BeginChanges()
	n.BeginChanges()
	size.SetValue(ctx, 1, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	mix.SetValue(ctx, 0.5, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	size.SetValue(ctx, 2, anim.ViewSetSpecAll, anim.Dim(1), knob.ReasonUserEdited)
	n.EndChanges()
	if got := len(rec.get()); got != 0 {
		t.Fatalf("passes after inner EndChanges = %d, want 0", got)
	}
	n.EndChanges()

	runs := rec.get()
	if len(runs) != 1 {
		t.Fatalf("passes = %d, want 1", len(runs))
	}
	if want := []string{"size", "mix"}; !slices.Equal(runs[0], want) {
		t.Errorf("changed = %v, want %v", runs[0], want)
	}

	// outside a bracket every change is its own pass
	size.SetValue(ctx, 3, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	if got := n.Evaluations(); got != 2 {
		t.Errorf("Evaluations() = %d, want 2", got)
	}

	// setting the same value again changes nothing
	size.SetValue(ctx, 3, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	if got := n.Evaluations(); got != 2 {
		t.Errorf("Evaluations() after no-op = %d, want 2", got)
	}
}

func TestUnbalancedEndChanges(t *testing.T) {
	n := New("standalone")
	n.EndChanges()
	n.BeginChanges()
	n.EndChanges()
	if n.Evaluations() != 0 {
		t.Errorf("Evaluations() = %d, want 0", n.Evaluations())
	}
}

func TestEvaluateOnChangeDisabled(t *testing.T) {
	ctx := context.Background()
	n := New("viewer")
	k := knob.NewBool(n, "overlay", knob.WithEvaluateOnChange(false))
	if _, err := k.SetValue(ctx, true, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited); err != nil {
		t.Fatal(err)
	}
	if n.Evaluations() != 0 {
		t.Errorf("Evaluations() = %d, want 0", n.Evaluations())
	}
}

func TestAddKnob(t *testing.T) {
	n := New("grade")
	k, err := n.AddKnob(knob.KindColor, "gain", 4)
	if err != nil {
		t.Fatal(err)
	}
	if k.Kind() != knob.KindColor || k.Dimensions() != 4 {
		t.Errorf("got %v with %d dimensions", k.Kind(), k.Dimensions())
	}
	if n.Knob("gain") != k {
		t.Error("Knob(gain) does not return the new knob")
	}

	tests := []struct {
		name string
		kind knob.Kind
		dims int
	}{
		{"gain", knob.KindDouble, 1},
		{"", knob.KindDouble, 1},
		{"offset", knob.KindDouble, 0},
		{"offset", knob.Kind(42), 1},
	}
	for _, tt := range tests {
		if _, err := n.AddKnob(tt.kind, tt.name, tt.dims); !errors.IsInvalidArgument(err) {
			t.Errorf("AddKnob(%v, %q, %d) error = %v, want invalid argument", tt.kind, tt.name, tt.dims, err)
		}
	}
	if got := len(n.Knobs()); got != 1 {
		t.Errorf("len(Knobs()) = %d, want 1", got)
	}
}

func TestNodeHash(t *testing.T) {
	ctx := context.Background()
	n := New("blur")
	size := knob.NewDouble(n, "size", 1)
	args := knob.HashArgs{Type: knob.HashTimeViewVariant}

	before := n.Hash(ctx, args)
	if n.Hash(ctx, args) != before {
		t.Fatal("hash is not stable")
	}
	size.SetValue(ctx, 4, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	if n.Hash(ctx, args) == before {
		t.Error("hash did not change after an edit")
	}
	if New("other").Hash(ctx, args) == New("blur").Hash(ctx, args) {
		t.Error("node name is not part of the hash")
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	p := newTestProject(t)
	n := mustNode(t, p, "transform")
	translate := knob.NewDouble(n, "translate", 2)
	label := knob.NewString(n, "label")
	for _, kf := range []struct{ t, v float64 }{{0, 0}, {10, 100}} {
		if _, err := translate.SetKeyFrame(ctx, kf.t, kf.v, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited); err != nil {
			t.Fatal(err)
		}
	}
	translate.SetValue(ctx, 7, anim.ViewSetSpecAll, anim.Dim(1), knob.ReasonUserEdited)
	label.SetValue(ctx, "hero", anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	translate.SplitView(ctx, 1)
	translate.SetValueAtTime(ctx, 0, 9, anim.SetView(1), anim.Dim(1), knob.ReasonUserEdited)

	tests := []struct {
		time float64
		view anim.ViewIdx
		want []KnobValues
	}{
		{10, 0, []KnobValues{
			{Knob: "translate", Kind: knob.KindDouble, Values: []string{"100", "7"}},
			{Knob: "label", Kind: knob.KindString, Values: []string{"hero"}},
		}},
		{0, 1, []KnobValues{
			{Knob: "translate", Kind: knob.KindDouble, Values: []string{"0", "9"}},
			{Knob: "label", Kind: knob.KindString, Values: []string{"hero"}},
		}},
	}
	for _, tt := range tests {
		got, err := n.Snapshot(ctx, tt.time, tt.view)
		if err != nil {
			t.Fatalf("Snapshot(%v, %d): %v", tt.time, tt.view, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Snapshot(%v, %d) = %v", tt.time, tt.view, got)
		}
		for i := range got {
			if got[i].Knob != tt.want[i].Knob || got[i].Kind != tt.want[i].Kind || !slices.Equal(got[i].Values, tt.want[i].Values) {
				t.Errorf("Snapshot(%v, %d)[%d] = %+v, want %+v", tt.time, tt.view, i, got[i], tt.want[i])
			}
		}
	}
}

func TestSnapshotCancelled(t *testing.T) {
	n := New("blur")
	knob.NewDouble(n, "size", 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := n.Snapshot(ctx, 0, 0); err == nil {
		t.Error("Snapshot with a cancelled context succeeded")
	}
}
