package expr

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/knobs/pkg/errors"
)

func knobs(values map[string][]float64) Env {
	return Env{
		Value: func(ref string, dim int) (float64, error) {
			v, ok := values[ref]
			if !ok || dim >= len(v) {
				return 0, errors.New(errors.ErrCodeKnobNotFound, "no knob %q", ref)
			}
			return v[dim], nil
		},
		Text: func(ref string, dim int) (string, error) {
			return fmt.Sprintf("%s/%d", ref, dim), nil
		},
	}
}

func TestCompileAndEval(t *testing.T) {
	in := NewInterpreter()
	values := map[string][]float64{"size": {2, 5}, "blur.amount": {10}}

	tests := []struct {
		name  string
		src   string
		ret   bool
		frame float64
		want  float64
	}{
		{"constant", "42", false, 0, 42},
		{"frame", "frame * 2", false, 3, 6},
		{"reference", `value("size", 1) + 1`, false, 0, 6},
		{"qualified reference", `value("blur.amount", 0) / 4`, false, 0, 2.5},
		{"math", "math.Floor(frame)", false, 7.8, 7},
		{"return variable", "if frame > 5 {\n\tret = 1\n} else {\n\tret = -1\n}", true, 9, 1},
		{"dimension in scope", "float64(dimension) + 0.5", false, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := in.Compile(tt.src, tt.ret, KindNumber)
			if err != nil {
				t.Fatalf("Compile() error: %v", err)
			}
			env := knobs(values)
			env.Frame = tt.frame
			res, err := p.Eval(env)
			if err != nil {
				t.Fatalf("Eval() error: %v", err)
			}
			if math.Abs(res.Number-tt.want) > 1e-12 {
				t.Errorf("Eval() = %v, want %v", res.Number, tt.want)
			}
		})
	}
}

func TestDependenciesRecorded(t *testing.T) {
	p, err := NewInterpreter().Compile(`value("a", 0) + value("b", 1) + value("a", 0)`, false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Eval(knobs(map[string][]float64{"a": {1}, "b": {0, 2}}))
	if err != nil {
		t.Fatal(err)
	}
	want := []Ref{{"a", 0}, {"b", 1}}
	if len(res.Deps) != len(want) {
		t.Fatalf("Deps = %v, want %v", res.Deps, want)
	}
	for i := range want {
		if res.Deps[i] != want[i] {
			t.Errorf("Deps[%d] = %v, want %v", i, res.Deps[i], want[i])
		}
	}
	if res.Number != 3 {
		t.Errorf("Number = %v, want 3", res.Number)
	}
}

func TestTextProgram(t *testing.T) {
	p, err := NewInterpreter().Compile(`strings.ToUpper(text("label", 0))`, false, KindText)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Eval(knobs(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "LABEL/0" {
		t.Errorf("Text = %q", res.Text)
	}
	if p.Kind() != KindText || p.Source() == "" || p.UsesReturnVariable() {
		t.Error("program metadata not preserved")
	}
}

func TestCompileErrors(t *testing.T) {
	in := NewInterpreter()
	for _, src := range []string{"", "   ", "1 +", "undefinedThing * 2", `"text"`} {
		if _, err := in.Compile(src, false, KindNumber); !errors.Is(err, errors.ErrCodeExpressionInvalid) {
			t.Errorf("Compile(%q) error = %v, want EXPRESSION_INVALID", src, err)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	in := NewInterpreter()

	p, err := in.Compile(`value("missing", 0)`, false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Eval(knobs(nil))
	if !errors.Is(err, errors.ErrCodeExpressionInvalid) {
		t.Errorf("missing reference error = %v", err)
	}
	if len(res.Deps) != 1 {
		t.Errorf("failed lookups still count as dependencies, got %v", res.Deps)
	}

	if _, err := p.Eval(Env{}); err == nil {
		t.Error("nil resolver should fail")
	}

	boom, err := in.Compile("[]float64{}[int(frame)]", false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := boom.Eval(Env{Frame: 3}); !errors.Is(err, errors.ErrCodeExpressionInvalid) {
		t.Errorf("runtime panic error = %v, want EXPRESSION_INVALID", err)
	}
}

func TestEvalReentrant(t *testing.T) {
	p, err := NewInterpreter().Compile(`value("self", 0) + 1`, false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	// the resolver evaluates the same program again on this goroutine
	var envAt func(depth int) Env
	envAt = func(depth int) Env {
		return Env{Value: func(string, int) (float64, error) {
			if depth == 3 {
				return 0, nil
			}
			res, err := p.Eval(envAt(depth + 1))
			return res.Number, err
		}}
	}
	res, err := p.Eval(envAt(0))
	if err != nil {
		t.Fatal(err)
	}
	if res.Number != 4 {
		t.Errorf("Number = %v, want 4", res.Number)
	}
}

func TestEvalMutualConcurrent(t *testing.T) {
	in := NewInterpreter()
	a, err := in.Compile(`value("b", 0) + 1`, false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	b, err := in.Compile(`value("a", 0) + 1`, false, KindNumber)
	if err != nil {
		t.Fatal(err)
	}
	var envAt func(depth int) Env
	envAt = func(depth int) Env {
		return Env{Value: func(ref string, _ int) (float64, error) {
			if depth == 4 {
				return 0, nil
			}
			next := a
			if ref == "b" {
				next = b
			}
			res, err := next.Eval(envAt(depth + 1))
			return res.Number, err
		}}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, p := range []Program{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 2000 {
				res, err := p.Eval(envAt(0))
				if err == nil && res.Number != 5 {
					err = fmt.Errorf("%s = %v, want 5", p.Source(), res.Number)
				}
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("programs reading each other blocked")
	}
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConvert(t *testing.T) {
	r := Result{Number: 2.5, Text: "x"}
	if v, _ := Convert[float64](r); v != 2.5 {
		t.Errorf("float64 = %v", v)
	}
	if v, _ := Convert[int](r); v != 3 {
		t.Errorf("int = %v", v)
	}
	if v, _ := Convert[bool](r); !v {
		t.Errorf("bool = %v", v)
	}
	if v, _ := Convert[string](r); v != "x" {
		t.Errorf("string = %v", v)
	}
	if _, ok := Convert[[]int](r); ok {
		t.Error("unsupported type ok = true")
	}
}
