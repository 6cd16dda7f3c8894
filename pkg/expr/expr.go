package expr

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/cogentcore/yaegi/interp"
	"github.com/cogentcore/yaegi/stdlib"

	"github.com/matzehuels/knobs/pkg/errors"
)

// Kind is the type of value a program produces.
type Kind int

const (
	// KindNumber programs return float64. Int and bool knobs convert it.
	KindNumber Kind = iota
	// KindText programs return string.
	KindText
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "number"
}

// Ref is a knob dimension read by an expression.
type Ref struct {
	Knob      string
	Dimension int
}

func (r Ref) String() string { return fmt.Sprintf("%s[%d]", r.Knob, r.Dimension) }

// Env is the environment a program is evaluated in.
type Env struct {
	Frame     float64
	View      int
	Dimension int

	// Value and Text resolve references. A nil resolver fails every lookup.
	Value func(ref string, dim int) (float64, error)
	Text  func(ref string, dim int) (string, error)
}

// Result is the outcome of one evaluation.
type Result struct {
	Number float64
	Text   string
	Deps   []Ref
}

// Program is a compiled expression.
type Program interface {
	Source() string
	UsesReturnVariable() bool
	Kind() Kind
	Eval(env Env) (Result, error)
}

// Compiler turns expression source into a Program.
type Compiler interface {
	Compile(src string, usesReturnVariable bool, kind Kind) (Program, error)
}

// Interpreter compiles expressions with the yaegi Go interpreter.
// Each program owns its own interpreter instance.
type Interpreter struct{}

// NewInterpreter returns a ready to use compiler.
func NewInterpreter() *Interpreter { return &Interpreter{} }

const pkgName = "knobexpr"

// Compile implements Compiler.
func (Interpreter) Compile(src string, usesReturnVariable bool, kind Kind) (p Program, err error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.New(errors.ErrCodeExpressionInvalid, "empty expression")
	}
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, errors.New(errors.ErrCodeExpressionInvalid, "compile %q: %v", src, r)
		}
	}()

	in := interp.New(interp.Options{})
	if err := in.Use(stdlib.Symbols); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load interpreter symbols")
	}
	if _, err := in.Eval(wrap(src, usesReturnVariable, kind)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeExpressionInvalid, err, "compile %q", src)
	}
	v, err := in.Eval(pkgName + ".Eval")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "lookup entry point")
	}

	prog := &program{src: src, ret: usesReturnVariable, kind: kind}
	switch kind {
	case KindText:
		fn, ok := v.Interface().(func(lookupNumber, lookupText, float64, int, int) string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "unexpected entry point type %s", v.Type())
		}
		prog.text = fn
	default:
		fn, ok := v.Interface().(func(lookupNumber, lookupText, float64, int, int) float64)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "unexpected entry point type %s", v.Type())
		}
		prog.num = fn
	}
	return prog, nil
}

type (
	lookupNumber = func(string, int) float64
	lookupText   = func(string, int) string
)

func wrap(src string, usesReturnVariable bool, kind Kind) string {
	typ := "float64"
	if kind == KindText {
		typ = "string"
	}
	body := src
	if !usesReturnVariable {
		body = "ret = (" + src + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", pkgName)
	b.WriteString("import (\n\t\"fmt\"\n\t\"math\"\n\t\"strings\"\n)\n\n")
	b.WriteString("var (\n\t_ = fmt.Sprint\n\t_ = math.Pi\n\t_ = strings.ToUpper\n)\n\n")
	fmt.Fprintf(&b, "func Eval(value func(string, int) float64, text func(string, int) string, frame float64, view int, dimension int) (ret %s) {\n", typ)
	b.WriteString("\t_, _, _, _, _ = value, text, frame, view, dimension\n")
	b.WriteString(body)
	b.WriteString("\n\treturn\n}\n")
	return b.String()
}

// maxPasses bounds how often a program is rerun to pick up references
// that only show up once earlier ones are known.
const maxPasses = 16

type program struct {
	src  string
	ret  bool
	kind Kind

	// mu serializes calls into the interpreter. It is never held while a
	// reference is resolved, so programs reading each other from several
	// goroutines cannot block one another.
	mu   sync.Mutex
	num  func(lookupNumber, lookupText, float64, int, int) float64
	text func(lookupNumber, lookupText, float64, int, int) string

	readsMu sync.Mutex
	reads   []read // references of the last evaluation, prefetched by the next
}

func (p *program) Source() string           { return p.src }
func (p *program) UsesReturnVariable() bool { return p.ret }
func (p *program) Kind() Kind               { return p.kind }

// read is one reference lookup, by value or by text.
type read struct {
	ref  Ref
	text bool
}

type fetched struct {
	num  float64
	text string
	err  error
}

// scope holds the references resolved for one evaluation.
type scope struct {
	env    Env
	values map[read]fetched
}

func (s *scope) fetch(r read) {
	if _, ok := s.values[r]; ok {
		return
	}
	var f fetched
	switch {
	case r.text && s.env.Text != nil:
		f.text, f.err = s.env.Text(r.ref.Knob, r.ref.Dimension)
	case !r.text && s.env.Value != nil:
		f.num, f.err = s.env.Value(r.ref.Knob, r.ref.Dimension)
	default:
		f.err = errors.New(errors.ErrCodeKnobNotFound, "unknown reference %q", r.ref.Knob)
	}
	s.values[r] = f
}

// Eval runs the program. References are resolved outside the interpreter:
// each pass reads only values fetched beforehand and reports the ones it
// was missing, which are fetched before the next pass.
func (p *program) Eval(env Env) (Result, error) {
	s := &scope{env: env, values: make(map[read]fetched)}
	p.readsMu.Lock()
	prev := p.reads
	p.readsMu.Unlock()
	for _, r := range prev {
		s.fetch(r)
	}

	for range maxPasses {
		res, reads, missing, err := p.run(s)
		// a pass may also fail on a placeholder, so fetch before judging it
		if len(missing) > 0 {
			for _, r := range missing {
				s.fetch(r)
			}
			continue
		}
		if err != nil {
			return res, err
		}

		p.readsMu.Lock()
		p.reads = reads
		p.readsMu.Unlock()
		var lookupErr error
		for _, r := range reads {
			lookupErr = firstErr(lookupErr, s.values[r].err)
		}
		if lookupErr != nil {
			return res, errors.Wrap(errors.ErrCodeExpressionInvalid, lookupErr, "evaluate %q", p.src)
		}
		return res, nil
	}
	return Result{}, errors.New(errors.ErrCodeExpressionInvalid, "evaluate %q: references did not settle", p.src)
}

// run makes one pass through the interpreter against the values in s.
func (p *program) run(s *scope) (res Result, reads, missing []read, err error) {
	seen := make(map[read]bool)
	lookup := func(r read) (fetched, bool) {
		if !seen[r] {
			seen[r] = true
			reads = append(reads, r)
			if !slices.Contains(res.Deps, r.ref) {
				res.Deps = append(res.Deps, r.ref)
			}
		}
		f, ok := s.values[r]
		if !ok && !slices.Contains(missing, r) {
			missing = append(missing, r)
		}
		return f, ok
	}
	value := func(ref string, dim int) float64 {
		f, _ := lookup(read{ref: Ref{Knob: ref, Dimension: dim}})
		return f.num
	}
	text := func(ref string, dim int) string {
		f, _ := lookup(read{ref: Ref{Knob: ref, Dimension: dim}, text: true})
		return f.text
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeExpressionInvalid, "evaluate %q: %v", p.src, r)
		}
	}()
	if p.kind == KindText {
		res.Text = p.text(value, text, s.env.Frame, s.env.View, s.env.Dimension)
	} else {
		res.Number = p.num(value, text, s.env.Frame, s.env.View, s.env.Dimension)
	}
	return res, reads, missing, nil
}

func firstErr(prev, err error) error {
	if prev != nil {
		return prev
	}
	return err
}

var _ Compiler = Interpreter{}

// Convert returns the result as T, which must be float64, int, bool or
// string. Ints round half away from zero and bools are true from 0.5 up.
func Convert[T any](r Result) (T, bool) {
	var zero T
	var out any
	switch any(zero).(type) {
	case float64:
		out = r.Number
	case int:
		out = int(math.Round(r.Number))
	case bool:
		out = r.Number >= 0.5
	case string:
		out = r.Text
	default:
		return zero, false
	}
	return out.(T), true
}
