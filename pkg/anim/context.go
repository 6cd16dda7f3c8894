package anim

import "context"

// RenderContext is the time and view a render worker is currently producing.
type RenderContext struct {
	Time float64
	View ViewIdx
}

type ctxKey int

const renderKey ctxKey = 0

// WithRenderContext returns a context carrying rc. Getters that receive
// [ViewGetSpecCurrent] or that read "at the current time" consult it before
// falling back to the holder's timeline.
func WithRenderContext(ctx context.Context, rc RenderContext) context.Context {
	return context.WithValue(ctx, renderKey, rc)
}

// RenderContextFrom returns the render context attached to ctx, if any.
func RenderContextFrom(ctx context.Context) (RenderContext, bool) {
	if ctx == nil {
		return RenderContext{}, false
	}
	rc, ok := ctx.Value(renderKey).(RenderContext)
	return rc, ok
}
