package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRenderKnobTable(t *testing.T) {
	out := renderKnobTable([]knobRow{
		{name: "blur.size", kind: "double", values: []string{"1", "2"}, state: "3 keys", modified: true},
		{name: "grade.gain", kind: "double", values: []string{"0.5"}, state: "linked → blur.size[0]@0"},
	})
	for _, want := range []string{"Knob", "Value", "blur.size", "1  2", "3 keys", "linked"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestStatusOutput(t *testing.T) {
	var buf bytes.Buffer
	printSuccess(&buf, "Linked %s", "a.b")
	printKeyValue(&buf, "Time", "12")
	printNextStep(&buf, "Try", "knobctl get a.b")

	out := buf.String()
	for _, want := range []string{iconSuccess + " Linked a.b", "Time", "12", "Try:", "knobctl get a.b"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(context.Background(), &buf, "Rendering")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop()

	if !strings.Contains(buf.String(), "Rendering") {
		t.Errorf("spinner never drew: %q", buf.String())
	}
}

func TestSpinnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	s := newSpinner(ctx, &buf, "Waiting")
	s.Start()
	cancel()

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancellation")
	}
}
