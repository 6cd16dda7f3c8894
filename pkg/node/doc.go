// Package node provides the holders knobs live in.
//
// A [Node] owns an ordered set of knobs and implements [knob.Holder]: it
// brackets batches of changes with BeginChanges/EndChanges and runs one
// coalesced evaluation pass when the outermost bracket closes. A [Project]
// groups nodes and implements [knob.App]: it owns the expression compiler,
// the auto-keying switch and the timeline, and resolves "node.knob"
// references for expressions and link restoration.
//
// # Usage
//
//	p := node.NewProject(node.WithAutoKeying(true))
//	blur, _ := p.AddNode("blur")
//	size := knob.NewDouble(blur, "size", 2)
//
//	blur.OnEvaluate(func(ctx context.Context, n *node.Node, changed []knob.Param) {
//	    // re-render
//	})
//
//	blur.BeginChanges()
//	size.SetValue(ctx, 3, anim.ViewSetSpecAll, anim.DimSpecAll, knob.ReasonUserEdited)
//	blur.EndChanges() // one evaluation pass
//
// Render threads read a consistent set of values with [Node.Snapshot].
package node
