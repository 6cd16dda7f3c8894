// Package pkg provides the libraries behind knobctl: animated, linkable
// parameters and the projects that hold them.
//
// # Overview
//
// A knob is a named parameter with one or more dimensions (x/y, r/g/b/a)
// and one or more views (left/right eye). Every dimension of every view is
// a slot holding a static value, a keyframe curve or an expression. Slots of
// different knobs can share storage through links, so editing one edits
// all of them. The pkg directory is organized as:
//
//  1. [anim] - View and dimension addressing, per-view split bookkeeping
//  2. [curve] - Keyframes, interpolation and curve evaluation
//  3. [expr] - Expression compilation on the yaegi Go interpreter
//  4. [knob] - Typed knobs, links, listeners, hashing and records
//  5. [node] - Nodes and projects: knob holders with begin/end coalescing
//  6. [io] - TOML and JSON project files
//  7. [depgraph] - Graphviz export of links and expression dependencies
//
// Supporting packages: [errors] (coded errors), [hash] (content hashes),
// [cache] (rendered artifact cache), [observability] (event hooks) and
// [buildinfo] (version metadata).
//
// # Data Flow
//
//	project.toml
//	     ↓
//	[io] Import (nodes, knobs, values, then links, then expressions)
//	     ↓
//	[node] Project ⇄ [knob] edits ⇄ [expr] re-evaluation
//	     ↓
//	[io] Export / [depgraph] ToDOT / Hash
//
// # Quick Start
//
//	p := node.NewProject()
//	blur, _ := p.AddNode("blur")
//	size := knob.NewDouble(blur, "size", 2)
//
//	ctx := context.Background()
//	size.SetValueAtTime(ctx, 0, 1, anim.ViewSetSpecAll, anim.DimSpecAll, knob.ReasonUserEdited)
//	size.SetValueAtTime(ctx, 24, 4, anim.ViewSetSpecAll, anim.DimSpecAll, knob.ReasonUserEdited)
//	v, _ := size.ValueAtTime(ctx, 12, 0, anim.ViewGetSpecCurrent)
//
//	err := io.Export(p, "shot.toml")
//
// # Testing
//
//	go test ./pkg/...
//	go test -race -run Concurrent ./pkg/knob
//
// [anim]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/anim
// [curve]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/curve
// [expr]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/expr
// [knob]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/knob
// [node]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/node
// [io]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/io
// [depgraph]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/depgraph
// [errors]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/errors
// [hash]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/hash
// [cache]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/knobs/pkg/buildinfo
package pkg
