package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/glide/internal/config"
	"github.com/san-kum/glide/internal/metrics"
	"github.com/san-kum/glide/internal/sim"
)

const (
	metadataFile = "metadata.json"
	energyFile   = "energy.csv"
)

// CSVHeader is the column layout of energy.csv.
var CSVHeader = []string{"time", "E_kin", "E_elastic", "E_grav", "E_batt", "E_total", "SoC"}

// ErrRunNotFound is returned when a run ID has no metadata on disk.
var ErrRunNotFound = errors.New("storage: run not found")

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID            string             `json:"id"`
	Preset        string             `json:"preset"`
	Timestamp     time.Time          `json:"timestamp"`
	Dt            float64            `json:"dt"`
	Duration      float64            `json:"duration"`
	Stepper       string             `json:"stepper"`
	Substeps      int                `json:"substeps"`
	SubstepDt     float64            `json:"substep_dt"`
	Steps         int                `json:"steps"`
	Records       int                `json:"records"`
	FinalTime     float64            `json:"final_time"`
	FinalTotal    float64            `json:"final_total"`
	FinalSoC      float64            `json:"final_soc"`
	Dissipated    float64            `json:"dissipated"`
	MaxResidual   float64            `json:"max_residual"`
	DriftWarnings int                `json:"drift_warnings"`
	ClampEvents   int                `json:"clamp_events"`
	Error         string             `json:"error,omitempty"`
	Metrics       map[string]float64 `json:"metrics"`
	Config        config.Config      `json:"config"`
}

// Save writes metadata.json and, unless withCSV is false, energy.csv for a
// finished (or aborted) run. runErr is recorded in the metadata when set.
func (s *Store) Save(result *sim.Result, withCSV bool, runErr error) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	ts := s.now()
	runID, runDir, err := s.reserve(result.Config.Name, ts)
	if err != nil {
		return "", err
	}

	sum := result.Summary
	meta := RunMetadata{
		ID:            runID,
		Preset:        result.Config.Name,
		Timestamp:     ts,
		Dt:            result.Config.Dt,
		Duration:      result.Config.Duration,
		Stepper:       result.Config.Stepper,
		Substeps:      result.Substeps,
		SubstepDt:     result.SubDt,
		Steps:         sum.Steps,
		Records:       sum.Records,
		FinalTime:     sum.Final.Time,
		FinalTotal:    sum.Final.Total,
		FinalSoC:      sum.Final.SoC,
		Dissipated:    sum.Dissipated,
		MaxResidual:   sum.MaxResidual,
		DriftWarnings: sum.DriftWarnings,
		ClampEvents:   sum.ClampEvents,
		Metrics:       result.Metrics,
		Config:        result.Config,
	}
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if !withCSV {
		return runID, nil
	}

	f, err := os.Create(filepath.Join(runDir, energyFile))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := WriteCSV(f, result.Records); err != nil {
		return "", fmt.Errorf("write %s: %w", energyFile, err)
	}
	return runID, nil
}

// reserve picks an unused run directory named after the preset and time.
func (s *Store) reserve(name string, ts time.Time) (string, string, error) {
	if name == "" {
		name = "run"
	}
	base := fmt.Sprintf("%s_%d", name, ts.Unix())
	id := base
	for i := 2; ; i++ {
		dir := filepath.Join(s.baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes the energy time series, one row per record.
func WriteCSV(w io.Writer, records []metrics.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatFloat(rec.Time, 'f', 6, 64),
			strconv.FormatFloat(rec.Kinetic, 'f', 6, 64),
			strconv.FormatFloat(rec.Elastic, 'f', 6, 64),
			strconv.FormatFloat(rec.Grav, 'f', 6, 64),
			strconv.FormatFloat(rec.Battery, 'f', 6, 64),
			strconv.FormatFloat(rec.Total, 'f', 6, 64),
			strconv.FormatFloat(rec.SoC, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
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

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[len(runs)-1], nil
}

// LoadRecords reads energy.csv back into records carrying time and the
// energy buckets.
func (s *Store) LoadRecords(runID string) ([]metrics.Record, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, energyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s for %s", ErrRunNotFound, energyFile, runID)
		}
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses an energy series written by WriteCSV.
func ReadCSV(r io.Reader) ([]metrics.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []metrics.Record{}, nil
	}

	records := make([]metrics.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		var vals [7]float64
		for j, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, CSVHeader[j], err)
			}
			vals[j] = v
		}
		rec := metrics.Record{Time: vals[0], Step: i}
		rec.Kinetic, rec.Elastic, rec.Grav = vals[1], vals[2], vals[3]
		rec.Battery, rec.Total, rec.SoC = vals[4], vals[5], vals[6]
		records = append(records, rec)
	}
	return records, nil
}
