// Package io reads and writes knob projects.
//
// # Format
//
// TOML is the primary format; JSON carries the same document. A project
// holds its settings and one entry per node with the records of its
// persistent knobs:
//
//	version = 1
//
//	[settings]
//	auto_keying = false
//	time = 12.0
//	view = 0
//	views = ["left", "right"]
//
//	[[nodes]]
//	name = "blur"
//
//	[[nodes.knobs]]
//	name = "size"
//	kind = "double"
//	dimensions = 2
//
//	[[nodes.knobs.views]]
//	view = 0
//
//	[[nodes.knobs.views.dimensions]]
//	default = "0"
//	value = "3.5"
//
// Each dimension record carries its default and exactly one of keys,
// strings, expression or value. A linked dimension adds a link next to the
// master's keys or value; those are kept as the dimension's own state if
// the master is gone on load. When every dimension of a view is
// written identically only the first is stored; on load the last stored
// dimension fills the rest.
//
// # Restore order
//
// Loading creates every node and knob and restores values and keyframes
// first. Links are restored next and expressions last, so a record may
// reference a knob that appears later in the file. A link whose target no
// longer exists is logged and skipped without failing the load.
//
// # Usage
//
//	p, err := io.Import(ctx, "shot.toml", node.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	// ... edit
//	err = io.Export(p, "shot.toml")
package io
