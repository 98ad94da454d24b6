package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

// Document is the JSON export of one run.
type Document struct {
	RunID   string   `json:"run_id"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// ExportJSON writes results as a single JSON document followed by a newline.
func ExportJSON(w io.Writer, runID string, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	data, err := sonnet.Marshal(Document{RunID: runID, Count: len(results), Results: results})
	if err != nil {
		return fmt.Errorf("results: encode export: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("results: write export: %w", err)
	}
	return nil
}

// ExportJSONFile writes the export to path, creating parent directories.
func ExportJSONFile(path, runID string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("results: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: create %s: %w", path, err)
	}
	if err := ExportJSON(f, runID, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
