package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/cyclectl/internal/scheduler"
	"github.com/san-kum/cyclectl/internal/sim"
)

var ErrBadRunID = errors.New("storage: invalid run id")

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
	phasePrefix  = "phase."
	outputPrefix = "out."
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Scenario   string             `json:"scenario"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Period     float64            `json:"period"`
	Ticks      int                `json:"ticks"`
	Integrator string             `json:"integrator"`
	Metrics    map[string]float64 `json:"metrics"`
	Stats      scheduler.Stats    `json:"stats"`
	Overruns   int                `json:"overruns"`
	Final      map[string]string  `json:"final_phases,omitempty"`
}

// Save writes meta and the sampled trace of result under a new run id.
// ID, Timestamp, Ticks, Metrics, Stats and Overruns are filled from result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Scenario, uuid.NewString()[:8])
	meta.Timestamp = time.Now()
	meta.Ticks = len(result.Samples)
	meta.Metrics = result.Metrics
	meta.Stats = result.Stats
	meta.Overruns = result.Overruns
	meta.Final = result.Final().Phases

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, traceFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := writeTrace(w, result.Samples); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func writeTrace(w *csv.Writer, samples []sim.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	first := samples[0]
	channels := slices.Sorted(maps.Keys(first.Channels))
	outputs := slices.Sorted(maps.Keys(first.Outputs))
	phases := slices.Sorted(maps.Keys(first.Phases))

	header := []string{"time"}
	header = append(header, channels...)
	for _, o := range outputs {
		header = append(header, outputPrefix+o)
	}
	for _, p := range phases {
		header = append(header, phasePrefix+p)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, smp := range samples {
		row := []string{strconv.FormatFloat(smp.Time, 'f', 6, 64)}
		for _, c := range channels {
			row = append(row, strconv.FormatFloat(smp.Channels[c], 'f', 6, 64))
		}
		for _, o := range outputs {
			row = append(row, strconv.FormatFloat(smp.Outputs[o], 'f', 6, 64))
		}
		for _, p := range phases {
			row = append(row, smp.Phases[p])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadRunID, runID)
	}
	return filepath.Join(s.baseDir, runID), nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Trace is a stored run read back column by column.
type Trace struct {
	Times   []float64
	Series  map[string][]float64
	Phases  map[string][]string
	Columns []string
}

// LoadTrace reads the sampled trace of a run. Numeric columns land in
// Series (outputs keep their "out." prefix); phase columns in Phases.
func (s *Store) LoadTrace(runID string) (*Trace, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(dir, traceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &Trace{
		Series: make(map[string][]float64),
		Phases: make(map[string][]string),
	}
	if len(records) < 2 {
		return tr, nil
	}

	header := records[0]
	tr.Columns = header[1:]
	for _, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad time %q: %w", runID, record[0], err)
		}
		tr.Times = append(tr.Times, t)

		for j := 1; j < len(header); j++ {
			col := header[j]
			if axis, ok := strings.CutPrefix(col, phasePrefix); ok {
				tr.Phases[axis] = append(tr.Phases[axis], record[j])
				continue
			}
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: bad %s value %q: %w", runID, col, record[j], err)
			}
			tr.Series[col] = append(tr.Series[col], v)
		}
	}
	return tr, nil
}

// Samples rebuilds per-tick samples from the columns.
func (t *Trace) Samples() []sim.Sample {
	out := make([]sim.Sample, len(t.Times))
	for i, tm := range t.Times {
		smp := sim.Sample{
			Tick:     i + 1,
			Time:     tm,
			Channels: make(map[string]float64),
			Outputs:  make(map[string]float64),
		}
		for col, vals := range t.Series {
			if name, ok := strings.CutPrefix(col, outputPrefix); ok {
				smp.Outputs[name] = vals[i]
			} else {
				smp.Channels[col] = vals[i]
			}
		}
		if len(t.Phases) > 0 {
			smp.Phases = make(map[string]string, len(t.Phases))
			for axis, vals := range t.Phases {
				smp.Phases[axis] = vals[i]
			}
		}
		out[i] = smp
	}
	return out
}
