package io

import (
	"context"
	"fmt"

	"github.com/matzehuels/knobs/pkg/anim"
	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/knob"
	"github.com/matzehuels/knobs/pkg/node"
)

// formatVersion is the version written to new project files. Files with a
// newer version are rejected.
const formatVersion = 1

type document struct {
	Version  int        `toml:"version" json:"version"`
	Settings settings   `toml:"settings" json:"settings"`
	Nodes    []nodeData `toml:"nodes" json:"nodes"`
}

type settings struct {
	AutoKeying bool     `toml:"auto_keying" json:"auto_keying"`
	Time       float64  `toml:"time" json:"time"`
	View       int      `toml:"view" json:"view"`
	Views      []string `toml:"views,omitempty" json:"views,omitempty"`
}

type nodeData struct {
	Name  string        `toml:"name" json:"name"`
	Knobs []knob.Record `toml:"knobs,omitempty" json:"knobs,omitempty"`
}

func toDocument(p *node.Project) document {
	doc := document{
		Version: formatVersion,
		Settings: settings{
			AutoKeying: p.AutoKeying(),
			Time:       p.Time(),
			View:       int(p.View()),
			Views:      p.ViewNames(),
		},
	}
	for _, n := range p.Nodes() {
		nd := nodeData{Name: n.Name()}
		for _, k := range n.Knobs() {
			if k.IsPersistent() {
				nd.Knobs = append(nd.Knobs, k.ToRecord())
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// restoreStats counts what a load restored.
type restoreStats struct {
	knobs, links, expressions int
}

// fromDocument builds a project from doc. Knobs are created and their
// values restored first; links and then expressions are restored once every
// knob exists, so references may point forward in the file.
func fromDocument(ctx context.Context, doc document, opts []node.Option) (*node.Project, restoreStats, error) {
	var st restoreStats
	if doc.Version > formatVersion {
		return nil, st, errors.New(errors.ErrCodeInvalidFormat, "project format version %d is newer than %d", doc.Version, formatVersion)
	}

	opts = append([]node.Option{node.WithAutoKeying(doc.Settings.AutoKeying)}, opts...)
	p := node.NewProject(opts...)
	if len(doc.Settings.Views) > 0 {
		if err := p.SetViewNames(doc.Settings.Views); err != nil {
			return nil, st, err
		}
	}
	if err := p.SetView(anim.ViewIdx(doc.Settings.View)); err != nil {
		return nil, st, errors.Wrap(errors.ErrCodeInvalidFormat, err, "settings")
	}
	p.SetTime(ctx, doc.Settings.Time)

	var restored []knob.Param
	for _, nd := range doc.Nodes {
		n, err := p.AddNode(nd.Name)
		if err != nil {
			return nil, st, errors.Wrap(errors.ErrCodeInvalidFormat, err, "node %q", nd.Name)
		}
		n.BeginChanges()
		for _, rec := range nd.Knobs {
			k, err := createKnob(n, rec)
			if err == nil {
				err = k.FromRecord(ctx, rec)
			}
			if err != nil {
				n.EndChanges()
				return nil, st, fmt.Errorf("%s.%s: %w", nd.Name, rec.Name, err)
			}
			restored = append(restored, k)
		}
		n.EndChanges()
	}
	st.knobs = len(restored)

	resolve := func(nodeName, knobName string) (knob.Param, error) {
		return p.Knob(nodeName + "." + knobName)
	}
	for _, k := range restored {
		st.links += k.RestoreLinks(ctx, resolve)
	}
	for _, k := range restored {
		st.expressions += k.RestoreExpressions(ctx)
	}
	return p, st, nil
}

func createKnob(n *node.Node, rec knob.Record) (knob.Param, error) {
	kind, err := knob.ParseKind(rec.Kind)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "kind")
	}
	var opts []knob.Option
	if rec.Label != "" {
		opts = append(opts, knob.WithLabel(rec.Label))
	}
	dims := max(rec.Dimensions, 1)
	k, err := n.AddKnob(kind, rec.Name, dims, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "create")
	}
	return k, nil
}
