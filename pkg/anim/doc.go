// Package anim provides the addressing vocabulary shared by every animated
// parameter: views, dimensions, and the specs that select them.
//
// # Views
//
// A view is an independent rendering context such as the left or right eye
// of a stereo pair. [ViewIdx] 0 is the main view ([ViewMain]); it always
// exists. Additional views only carry their own data once they have been
// split with [AnimatingObject.SplitView]. Any request for a view that has not
// been split silently resolves to the main view:
//
//	obj := anim.NewAnimatingObject(true)
//	obj.ResolveView(3) // ViewMain, view 3 was never split
//	obj.SplitView(3)
//	obj.ResolveView(3) // 3
//
// # Specs
//
// Setters take a [ViewSetSpec] (a concrete view, all views, or the current
// view) and a [DimSpec] (a concrete dimension or all dimensions). Getters take
// a [ViewGetSpec] (a concrete view or the current view) and a concrete
// [DimIdx]. Dimensions are never subject to fallback: an out-of-range
// dimension is a caller bug.
//
// # Render context
//
// Render workers read values for "the view and time I am rendering". That
// state is carried explicitly in a [context.Context] via [WithRenderContext]
// rather than in thread-local storage.
package anim
