// Package report writes the deployment report file.
// This is part of the Imperative Shell - it performs file I/O.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
)

// Format is a report file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from the file extension. Anything other than
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Document is the report file content: the run summary plus run metadata.
type Document struct {
	RunID      string                 `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Source     string                 `json:"source" yaml:"source"`
	Target     domain.WorkspaceHandle `json:"target" yaml:"target"`
	TypeFilter string                 `json:"type_filter" yaml:"type_filter"`
	DryRun     bool                   `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time              `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time              `json:"finished_at" yaml:"finished_at"`
	Warnings   []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Summary    summary.Report         `json:"summary" yaml:"summary"`
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// Write encodes doc into path, creating parent directories as needed. A nil
// fs uses the operating system filesystem.
func Write(fsys afero.Fs, path string, doc Document) error {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory %s: %w", dir, err)
		}
	}

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if err := Encode(f, FormatFor(path), doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %s: %w", path, err)
	}
	return nil
}

// Read decodes a report file written by Write.
func Read(fsys afero.Fs, path string) (Document, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Document{}, fmt.Errorf("read report %s: %w", path, err)
	}

	var doc Document
	switch FormatFor(path) {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Document{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	return doc, nil
}

// WarningStrings renders classification warnings for the document.
func WarningStrings(warnings []domain.ClassificationWarning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
