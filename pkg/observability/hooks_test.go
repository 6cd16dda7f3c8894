package observability

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()
	ev := KnobEvent{Node: "blur", Knob: "size", Dimension: 0, View: 0}

	// Knob hooks
	k := NoopKnobHooks{}
	k.OnValueChanged(ctx, ev)
	k.OnLinked(ctx, ev, "merge.size")
	k.OnUnlinked(ctx, ev, true)
	k.OnExpressionInvalid(ctx, ev, "syntax error")
	k.OnViewSplit(ctx, ev)
	k.OnViewUnsplit(ctx, ev)

	// Project hooks
	p := NoopProjectHooks{}
	p.OnEvaluate(ctx, "blur", 3)
	p.OnLoad(ctx, "toml", 2, time.Second, nil)
	p.OnSave(ctx, "json", 2, time.Second, nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Knobs().(NoopKnobHooks); !ok {
		t.Error("Knobs() should return NoopKnobHooks by default")
	}
	if _, ok := Project().(NoopProjectHooks); !ok {
		t.Error("Project() should return NoopProjectHooks by default")
	}

	// Set custom hooks
	customKnobs := &testKnobHooks{}
	SetKnobHooks(customKnobs)
	if Knobs() != customKnobs {
		t.Error("SetKnobHooks should set custom hooks")
	}

	customProject := &testProjectHooks{}
	SetProjectHooks(customProject)
	if Project() != customProject {
		t.Error("SetProjectHooks should set custom hooks")
	}

	// Setting nil should not change hooks
	SetKnobHooks(nil)
	if Knobs() != customKnobs {
		t.Error("SetKnobHooks(nil) should not change hooks")
	}

	// Reset should restore defaults
	Reset()
	if _, ok := Knobs().(NoopKnobHooks); !ok {
		t.Error("Reset() should restore NoopKnobHooks")
	}
	if _, ok := Project().(NoopProjectHooks); !ok {
		t.Error("Reset() should restore NoopProjectHooks")
	}
}

func TestConcurrentAccess(t *testing.T) {
	Reset()
	defer Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetKnobHooks(&testKnobHooks{})
		}()
		go func() {
			defer wg.Done()
			Knobs().OnValueChanged(context.Background(), KnobEvent{})
		}()
	}
	wg.Wait()
}

type testKnobHooks struct{ NoopKnobHooks }

type testProjectHooks struct{ NoopProjectHooks }
