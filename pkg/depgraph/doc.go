// Package depgraph draws the dependencies between knobs.
//
// Knobs depend on each other in two ways: a linked dimension shares the
// storage of another knob's dimension, and an expression reads the value of
// other dimensions. [Edges] lists both; [ToDOT] turns them into a Graphviz
// diagram with one cluster per node, dashed link edges and solid
// expression edges.
//
// # Usage
//
//	dot := depgraph.ToDOT(project, depgraph.Options{Detailed: true})
//	svg, err := depgraph.RenderSVG(ctx, dot)
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering, so no Graphviz installation is needed.
package depgraph
