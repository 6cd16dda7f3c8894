// Package expr compiles and evaluates knob expressions.
//
// Expressions are Go. A one-line expression is the value itself:
//
//	value("blur.size", 0) * 2
//
// A multi-statement body assigns the named result ret instead:
//
//	if frame < 10 {
//	    ret = 0
//	} else {
//	    ret = math.Sin(frame)
//	}
//
// The following identifiers are in scope:
//
//	frame      float64                      the time being evaluated
//	view       int                          the view being evaluated
//	dimension  int                          the dimension being evaluated
//	value      func(ref string, dim int) float64
//	text       func(ref string, dim int) string
//
// together with the math, strings and fmt packages. A reference is either a
// knob name on the same node ("size") or a qualified "node.knob" name.
//
// # Dependencies
//
// Every reference read through value or text is recorded in the
// [Result]. Callers register themselves as listeners of those references so
// that a change to a dependency re-evaluates the expression.
//
// # Failures
//
// Compilation errors, failed lookups and runtime panics inside the
// interpreter are all reported as errors with code EXPRESSION_INVALID. The
// interpreter never crashes the host.
//
// The default [Compiler] is [Interpreter], built on the yaegi Go interpreter.
package expr
