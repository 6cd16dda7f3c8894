package knob

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/expr"
)

// testHolder records the notifications it receives and counts outermost
// EndChanges calls that saw at least one change.
type testHolder struct {
	name string
	app  *testApp

	mu           sync.Mutex
	depth        int
	dirty        bool
	evaluations  int
	valueChanges []Reason
	viewChanges  int
	hashDrops    int
	knobs        []Param
	time         float64
	view         anim.ViewIdx
}

func newTestHolder(name string, app *testApp) *testHolder {
	h := &testHolder{name: name, app: app}
	if app != nil {
		app.holders[name] = h
	}
	return h
}

func (h *testHolder) Name() string { return h.name }

func (h *testHolder) BeginChanges() {
	h.mu.Lock()
	h.depth++
	h.mu.Unlock()
}

func (h *testHolder) EndChanges() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.depth--
	if h.depth == 0 && h.dirty {
		h.evaluations++
		h.dirty = false
	}
}

func (h *testHolder) OnKnobValueChanged(_ context.Context, _ Param, reason Reason, _ float64, _ anim.ViewIdx) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valueChanges = append(h.valueChanges, reason)
	h.dirty = true
	if h.depth == 0 {
		h.evaluations++
		h.dirty = false
	}
	return true
}

func (h *testHolder) OnKnobViewsChanged(context.Context, Param) {
	h.mu.Lock()
	h.viewChanges++
	h.mu.Unlock()
}

func (h *testHolder) CurrentTime(context.Context) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.time
}

func (h *testHolder) CurrentView(context.Context) anim.ViewIdx {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.view
}

func (h *testHolder) InvalidateHash() {
	h.mu.Lock()
	h.hashDrops++
	h.mu.Unlock()
}

func (h *testHolder) App() App {
	if h.app == nil {
		return nil
	}
	return h.app
}

func (h *testHolder) RegisterKnob(k Param) {
	h.mu.Lock()
	h.knobs = append(h.knobs, k)
	h.mu.Unlock()
}

func (h *testHolder) knob(name string) Param {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range h.knobs {
		if k.Name() == name {
			return k
		}
	}
	return nil
}

func (h *testHolder) counts() (evaluations, changes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.evaluations, len(h.valueChanges)
}

type testApp struct {
	compiler expr.Compiler
	autoKey  bool
	logger   *log.Logger
	holders  map[string]*testHolder
}

func newTestApp() *testApp {
	return &testApp{
		compiler: expr.NewInterpreter(),
		logger:   log.New(discard{}),
		holders:  make(map[string]*testHolder),
	}
}

func (a *testApp) Compiler() expr.Compiler { return a.compiler }
func (a *testApp) AutoKeying() bool        { return a.autoKey }
func (a *testApp) Logger() *log.Logger     { return a.logger }

func (a *testApp) ResolveKnob(from Param, ref string) (Param, error) {
	holder, name := "", ref
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		holder, name = ref[:i], ref[i+1:]
	} else if h := from.Holder(); h != nil {
		holder = h.Name()
	}
	h, ok := a.holders[holder]
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "no node %q", holder)
	}
	if k := h.knob(name); k != nil {
		return k, nil
	}
	return nil, errors.New(errors.ErrCodeKnobNotFound, "no knob %q", ref)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
