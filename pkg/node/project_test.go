package node

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/knob"
)

func TestAddNode(t *testing.T) {
	p := newTestProject(t)
	mustNode(t, p, "blur")

	for _, name := range []string{"blur", "", "a.b"} {
		if _, err := p.AddNode(name); !errors.IsInvalidArgument(err) {
			t.Errorf("AddNode(%q) error = %v, want invalid argument", name, err)
		}
	}
	mustNode(t, p, "grade")

	var names []string
	for _, n := range p.Nodes() {
		names = append(names, n.Name())
	}
	if want := []string{"blur", "grade"}; !slices.Equal(names, want) {
		t.Errorf("Nodes() = %v, want %v", names, want)
	}
	if _, err := p.Node("missing"); !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("Node(missing) error = %v", err)
	}
}

func TestResolveKnob(t *testing.T) {
	p := newTestProject(t)
	blur := mustNode(t, p, "blur")
	grade := mustNode(t, p, "grade")
	size := knob.NewDouble(blur, "size", 1)
	gain := knob.NewDouble(grade, "gain", 1)

	tests := []struct {
		ref  string
		want knob.Param
		code errors.Code
	}{
		{"size", size, ""},
		{"blur.size", size, ""},
		{"grade.gain", gain, ""},
		{"gain", nil, errors.ErrCodeKnobNotFound},
		{"missing.size", nil, errors.ErrCodeNodeNotFound},
		{"grade.size", nil, errors.ErrCodeKnobNotFound},
	}
	for _, tt := range tests {
		got, err := p.ResolveKnob(size, tt.ref)
		if tt.code != "" {
			if !errors.Is(err, tt.code) {
				t.Errorf("ResolveKnob(%q) error = %v, want %s", tt.ref, err, tt.code)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ResolveKnob(%q) = %v, %v", tt.ref, got, err)
		}
	}

	if _, err := p.Knob("size"); !errors.IsInvalidArgument(err) {
		t.Errorf("Knob(size) error = %v, want invalid argument", err)
	}
	if k, err := p.Knob("grade.gain"); err != nil || k != gain {
		t.Errorf("Knob(grade.gain) = %v, %v", k, err)
	}
}

func TestExpressionAcrossNodes(t *testing.T) {
	ctx := context.Background()
	p := newTestProject(t)
	blur := mustNode(t, p, "blur")
	grade := mustNode(t, p, "grade")
	size := knob.NewDouble(blur, "size", 1)
	gain := knob.NewDouble(grade, "gain", 1)
	var rec passes
	blur.OnEvaluate(rec.record)

	if err := size.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("grade.gain", 0) * 2`, false, true); err != nil {
		t.Fatal(err)
	}
	before := len(rec.get())
	gain.SetValue(ctx, 3, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)

	got, err := size.ValueAtTime(ctx, 0, 0, anim.GetView(0))
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("size = %v, want 6", got)
	}
	if runs := rec.get(); len(runs) != before+1 {
		t.Errorf("editing gain ran %d passes on blur, want 1", len(runs)-before)
	}
}

func TestExpressionsDisabled(t *testing.T) {
	p := newTestProject(t, WithCompiler(nil))
	n := mustNode(t, p, "blur")
	size := knob.NewDouble(n, "size", 1)
	err := size.SetExpression(context.Background(), anim.Dim(0), anim.SetView(0), "1", false, false)
	if !errors.Is(err, errors.ErrCodeNoEvaluator) {
		t.Errorf("SetExpression error = %v, want %s", err, errors.ErrCodeNoEvaluator)
	}
}

func TestAutoKeying(t *testing.T) {
	ctx := context.Background()
	p := newTestProject(t, WithAutoKeying(true))
	n := mustNode(t, p, "blur")
	size := knob.NewDouble(n, "size", 1)

	p.SetTime(ctx, 5)
	code, err := size.SetValue(ctx, 2, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	if err != nil {
		t.Fatal(err)
	}
	if code != knob.KeyframeAdded {
		t.Errorf("SetValue = %v, want %v", code, knob.KeyframeAdded)
	}

	p.SetAutoKeying(false)
	other := knob.NewDouble(n, "other", 1)
	if code, _ := other.SetValue(ctx, 2, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited); code != knob.ValueChanged {
		t.Errorf("SetValue without auto-keying = %v, want %v", code, knob.ValueChanged)
	}
}

func TestSetTime(t *testing.T) {
	ctx := context.Background()
	p := newTestProject(t)
	n := mustNode(t, p, "blur")
	size := knob.NewDouble(n, "size", 1)
	knob.NewDouble(n, "static", 1)
	idle := mustNode(t, p, "idle")
	knob.NewDouble(idle, "static", 1)
	for _, tm := range []float64{0, 10} {
		if _, err := size.SetKeyFrame(ctx, tm, tm, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited); err != nil {
			t.Fatal(err)
		}
	}
	var rec, idleRec passes
	n.OnEvaluate(rec.record)
	idle.OnEvaluate(idleRec.record)

	p.SetTime(ctx, 4)
	p.SetTime(ctx, 4)
	runs := rec.get()
	if len(runs) != 1 || !slices.Equal(runs[0], []string{"size"}) {
		t.Errorf("passes = %v, want [[size]]", runs)
	}
	if len(idleRec.get()) != 0 {
		t.Errorf("node without animation evaluated")
	}

	got, err := size.Value(ctx, 0, anim.ViewGetSpecCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if got <= 0 || got >= 10 {
		t.Errorf("size at t=4 = %v", got)
	}
}

func TestViews(t *testing.T) {
	p := newTestProject(t)
	if err := p.SetView(1); !errors.IsInvalidArgument(err) {
		t.Errorf("SetView(1) with one view: %v", err)
	}
	if err := p.SetViewNames([]string{"left", "right"}); err != nil {
		t.Fatal(err)
	}
	v, err := p.ViewIndex("right")
	if err != nil || v != 1 {
		t.Fatalf("ViewIndex(right) = %d, %v", v, err)
	}
	if err := p.SetView(v); err != nil {
		t.Fatal(err)
	}
	if err := p.SetViewNames([]string{"mono"}); err != nil {
		t.Fatal(err)
	}
	if p.View() != anim.ViewMain {
		t.Errorf("View() = %d after dropping views, want main", p.View())
	}
	if err := p.SetViewNames(nil); err == nil {
		t.Error("SetViewNames(nil) succeeded")
	}
}

func ExampleProject() {
	ctx := context.Background()
	p := NewProject()
	grade, _ := p.AddNode("grade")
	blur, _ := p.AddNode("blur")
	gain := knob.NewDouble(grade, "gain", 1)
	size := knob.NewDouble(blur, "size", 1)

	gain.SetValue(ctx, 1.5, anim.ViewSetSpecAll, anim.Dim(0), knob.ReasonUserEdited)
	size.SetExpression(ctx, anim.Dim(0), anim.SetView(0), `value("grade.gain", 0) * 4`, false, true)

	v, _ := size.Value(ctx, 0, anim.ViewGetSpecCurrent)
	fmt.Println(v)
	// Output: 6
}
