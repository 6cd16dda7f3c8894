package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// Options configures graph generation.
type Options struct {
	// Detailed adds the kind, dimension count and split views to knob labels.
	// When false, only the knob name is shown.
	Detailed bool

	// All includes knobs without links or expressions.
	All bool
}

// Edge is one dependency between two knob slots.
type Edge struct {
	From, To knob.SlotRef
	// Link is true for shared storage, false for an expression read.
	Link bool
}

// Edges returns the link and expression dependencies between the knobs of
// p. A link edge points from the linked slot to the owner of the shared
// storage; an expression edge points from the reading slot to the slot it
// reads.
func Edges(p *node.Project) []Edge {
	var out []Edge
	for _, n := range p.Nodes() {
		for _, k := range n.Knobs() {
			for _, v := range k.Views() {
				for d := range k.Dimensions() {
					from := knob.SlotRef{Knob: k, Dimension: anim.DimIdx(d), View: v}
					if m, ok := k.SharingMaster(anim.DimIdx(d), v); ok {
						out = append(out, Edge{From: from, To: m, Link: true})
					}
					for _, dep := range k.Dependencies(anim.DimIdx(d), v) {
						out = append(out, Edge{From: from, To: dep})
					}
				}
			}
		}
	}
	return out
}

// ToDOT converts the link and expression graph of p to Graphviz DOT. Each
// node becomes a cluster of its knobs. Link edges are dashed; expression
// edges are solid. The result can be rendered with [RenderSVG].
func ToDOT(p *node.Project, opts Options) string {
	edges := Edges(p)
	used := make(map[knob.Param]bool)
	for _, e := range edges {
		used[e.From.Knob] = true
		used[e.To.Knob] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.3;\n")

	for i, n := range p.Nodes() {
		var knobs []knob.Param
		for _, k := range n.Knobs() {
			if opts.All || used[k] {
				knobs = append(knobs, k)
			}
		}
		if len(knobs) == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", n.Name())
		buf.WriteString("    style=\"rounded\";\n")
		for _, k := range knobs {
			fmt.Fprintf(&buf, "    %q [%s];\n", knobID(k), strings.Join(fmtAttrs(k, opts.Detailed), ", "))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	seen := make(map[string]bool)
	for _, e := range edges {
		line := fmt.Sprintf("  %q -> %q [%s];\n", knobID(e.From.Knob), knobID(e.To.Knob), strings.Join(edgeAttrs(e), ", "))
		if seen[line] {
			continue
		}
		seen[line] = true
		buf.WriteString(line)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func knobID(k knob.Param) string {
	if h := k.Holder(); h != nil {
		return h.Name() + "." + k.Name()
	}
	return k.Name()
}

func fmtAttrs(k knob.Param, detailed bool) []string {
	label := k.Name()
	if detailed {
		label = fmt.Sprintf("%s\n%s x%d", label, k.Kind(), k.Dimensions())
		if views := k.Views(); len(views) > 1 {
			label += fmt.Sprintf("\nviews %v", views)
		}
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if k.HasModifications() {
		attrs = append(attrs, "fillcolor=lightyellow")
	}
	return attrs
}

func edgeAttrs(e Edge) []string {
	label := fmt.Sprintf("%d→%d", e.From.Dimension, e.To.Dimension)
	if e.From.View != anim.ViewMain || e.To.View != anim.ViewMain {
		label += fmt.Sprintf(" @%d→%d", e.From.View, e.To.View)
	}
	attrs := []string{fmt.Sprintf("label=%q", label), "fontsize=10"}
	if e.Link {
		attrs = append(attrs, "style=dashed", "arrowhead=odot")
	} else {
		attrs = append(attrs, "color=steelblue")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
