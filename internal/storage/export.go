package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/cyclectl/internal/sim"
)

// ExportData is a self-contained JSON dump of one run.
type ExportData struct {
	RunMetadata
	Samples []sim.Sample `json:"samples"`
}

// Export writes a stored run as indented JSON. The trace is rebuilt from the
// CSV, so holders and per-tick timing are not included.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, tr.Samples())
}

func ExportJSON(w io.Writer, meta *RunMetadata, samples []sim.Sample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{RunMetadata: *meta, Samples: samples})
}

// ExportFile writes a stored run to path.
func (s *Store) ExportFile(path, runID string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.Export(file, runID)
}
