package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/knobs/pkg/errors"
	"github.com/matzehuels/knobs/pkg/node"
	"github.com/matzehuels/knobs/pkg/observability"
)

// Supported project formats.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
)

// DetectFormat returns the project format for path: JSON for a ".json"
// extension, TOML otherwise.
func DetectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatTOML
}

// ReadTOML decodes a TOML project from r. opts configure the new project
// (logger, compiler); auto-keying and the timeline come from the file.
//
// Knob values, defaults and keyframes are restored first. Links and then
// expressions are restored once every knob exists. A link whose target is
// missing is logged and skipped; the knob keeps its restored value.
//
// ReadTOML does not close r.
func ReadTOML(ctx context.Context, r io.Reader, opts ...node.Option) (*node.Project, error) {
	start := time.Now()
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		err = errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode")
		observability.Project().OnLoad(ctx, FormatTOML, 0, time.Since(start), err)
		return nil, err
	}
	return load(ctx, FormatTOML, doc, start, opts)
}

// ReadJSON decodes a JSON project from r. See [ReadTOML].
func ReadJSON(ctx context.Context, r io.Reader, opts ...node.Option) (*node.Project, error) {
	start := time.Now()
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		err = errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode")
		observability.Project().OnLoad(ctx, FormatJSON, 0, time.Since(start), err)
		return nil, err
	}
	return load(ctx, FormatJSON, doc, start, opts)
}

func load(ctx context.Context, format string, doc document, start time.Time, opts []node.Option) (*node.Project, error) {
	p, st, err := fromDocument(ctx, doc, opts)
	observability.Project().OnLoad(ctx, format, len(doc.Nodes), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	p.Logger().Debug("project loaded",
		"format", format,
		"nodes", len(doc.Nodes),
		"knobs", st.knobs,
		"links", st.links,
		"expressions", st.expressions,
		"duration", time.Since(start))
	return p, nil
}

// ImportTOML reads a TOML project file at path.
func ImportTOML(ctx context.Context, path string, opts ...node.Option) (*node.Project, error) {
	return importFile(ctx, path, opts, ReadTOML)
}

// ImportJSON reads a JSON project file at path.
func ImportJSON(ctx context.Context, path string, opts ...node.Option) (*node.Project, error) {
	return importFile(ctx, path, opts, ReadJSON)
}

// Import reads a project file in the format its extension names.
func Import(ctx context.Context, path string, opts ...node.Option) (*node.Project, error) {
	if DetectFormat(path) == FormatJSON {
		return ImportJSON(ctx, path, opts...)
	}
	return ImportTOML(ctx, path, opts...)
}

func importFile(ctx context.Context, path string, opts []node.Option, read func(context.Context, io.Reader, ...node.Option) (*node.Project, error)) (*node.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	p, err := read(ctx, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
