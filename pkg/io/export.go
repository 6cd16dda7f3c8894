package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/knobs/pkg/hash"
	"github.com/matzehuels/knobs/pkg/node"
	"github.com/matzehuels/knobs/pkg/observability"
)

// WriteTOML encodes p as TOML and writes it to w. Only persistent knobs are
// written. The output can be re-imported with [ReadTOML].
func WriteTOML(p *node.Project, w io.Writer) error {
	start := time.Now()
	doc := toDocument(p)
	err := toml.NewEncoder(w).Encode(doc)
	if err != nil {
		err = fmt.Errorf("encode: %w", err)
	}
	observability.Project().OnSave(context.Background(), FormatTOML, len(doc.Nodes), time.Since(start), err)
	return err
}

// WriteJSON encodes p as indented JSON and writes it to w.
func WriteJSON(p *node.Project, w io.Writer) error {
	start := time.Now()
	doc := toDocument(p)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(doc)
	if err != nil {
		err = fmt.Errorf("encode: %w", err)
	}
	observability.Project().OnSave(context.Background(), FormatJSON, len(doc.Nodes), time.Since(start), err)
	return err
}

// ExportTOML writes p to a TOML file at path.
func ExportTOML(p *node.Project, path string) error {
	return exportFile(p, path, WriteTOML)
}

// ExportJSON writes p to a JSON file at path.
func ExportJSON(p *node.Project, path string) error {
	return exportFile(p, path, WriteJSON)
}

// Export writes p to path in the format its extension names.
func Export(p *node.Project, path string) error {
	if DetectFormat(path) == FormatJSON {
		return ExportJSON(p, path)
	}
	return ExportTOML(p, path)
}

func exportFile(p *node.Project, path string, write func(*node.Project, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(p, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Fingerprint returns the SHA-256 of the JSON encoding of p. Two projects
// with the same nodes, knobs and settings have the same fingerprint.
func Fingerprint(p *node.Project) (string, error) {
	data, err := json.Marshal(toDocument(p))
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return hash.Fingerprint(data), nil
}
