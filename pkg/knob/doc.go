// Package knob implements animated node parameters.
//
// A knob holds one value per (dimension, view) slot. A slot's value is
// either a plain value, a keyframed [curve.Curve], or the result of an
// expression. Slots may alias the storage of another knob's slot (linking),
// in which case both read and write the same data.
//
// # Addressing
//
// Setters take an [anim.DimSpec] and an [anim.ViewSetSpec]; getters take a
// concrete dimension and an [anim.ViewGetSpec]. "All" expands to every
// dimension or split view, "current" resolves through the render context in
// the [context.Context] and then the holder. A concrete view that is not
// split silently resolves to the main view:
//
//	k.SetValueAtTime(ctx, 0, 1.5, anim.SetView(5), anim.Dim(0), knob.ReasonUserEdited)
//	v, _ := k.ValueAtTime(ctx, 0, 0, anim.GetView(5)) // 1.5, written to view 0
//
// An out of range dimension is always an INVALID_ARGUMENT error.
//
// # Values and Keyframes
//
// A setter writes a keyframe instead of the plain value when the slot is
// already animated, when the caller forces it with [Knob.SetKeyFrame], or
// when auto-keying is enabled on the [App] and the reason is
// [ReasonUserEdited]. Every successful mutation recomputes the
// modification flags, invalidates cached hashes, notifies the [Holder] and
// propagates to listeners. Multi-step operations are bracketed in
// Holder.BeginChanges/EndChanges so the holder sees one coalesced change.
//
// Keyframe moves and transforms are warps and are all-or-nothing: if any
// requested time has no keyframe in any selected slot, nothing changes.
//
// # Linking
//
// [Knob.LinkTo] points slots at another knob's storage. The slot's previous
// storage is kept as a snapshot the first time it is linked, and
// [Knob.Unlink] either restores that snapshot or detaches a copy of the
// shared state. Every storage object tracks the slots that point at it; the
// first of them is the sharing master.
//
// # Expressions
//
// [Knob.SetExpression] compiles an expression with the holder's [App]
// compiler and registers the knob as a listener of every knob the
// expression reads. A change anywhere propagates along listeners and shared
// storage. Each knob is visited at most once per top-level change, so
// dependency cycles terminate.
//
// # Typed Access
//
// [Knob] is generic over the four payload kinds (int, float64, bool and
// string). [Param] is the non-generic view used by holders, persistence and
// the CLI; its typed accessors fail with INVALID_ARGUMENT when the payload
// kind does not match the knob.
package knob
