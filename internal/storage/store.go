package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/demsim/internal/config"
	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/metrics"
)

const (
	metadataFile  = "metadata.json"
	telemetryFile = "telemetry.csv"
	particlesFile = "particles.csv"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("storage: run not found")

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
	ID          string             `json:"id"`
	Preset      string             `json:"preset"`
	Backend     string             `json:"backend"`
	Device      string             `json:"device,omitempty"`
	Timestamp   time.Time          `json:"timestamp"`
	Particles   int                `json:"particles"`
	Steps       int64              `json:"steps"`
	T           float64            `json:"t"`
	ElapsedSec  float64            `json:"elapsed_sec"`
	StepsPerSec float64            `json:"steps_per_sec"`
	Stopped     bool               `json:"stopped"`
	Config      *config.Config     `json:"config,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
	// NonFinite names the fields that were NaN or infinite when saved. JSON
	// cannot hold them, so they are stored as zero or left out of Metrics.
	NonFinite []string `json:"non_finite,omitempty"`
}

// sanitize drops the non-finite values from meta and records their names.
func (meta *RunMetadata) sanitize() {
	finite := make(map[string]float64, len(meta.Metrics))
	for name, v := range meta.Metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			meta.NonFinite = append(meta.NonFinite, name)
			continue
		}
		finite[name] = v
	}
	meta.Metrics = finite
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"t", &meta.T},
		{"elapsed_sec", &meta.ElapsedSec},
		{"steps_per_sec", &meta.StepsPerSec},
	} {
		if math.IsNaN(*f.v) || math.IsInf(*f.v, 0) {
			meta.NonFinite = append(meta.NonFinite, f.name)
			*f.v = 0
		}
	}
	sort.Strings(meta.NonFinite)
}

// Run is everything Save persists for one run.
type Run struct {
	Meta      RunMetadata
	Telemetry []metrics.Sample
	Final     []dem.Particle
}

// Save writes the run under a fresh id and returns it. Meta.ID and
// Meta.Timestamp are filled in. A failed save leaves no run directory.
func (s *Store) Save(run *Run) (string, error) {
	now := time.Now()
	name := run.Meta.Preset
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := run.Meta
	meta.ID = runID
	meta.Timestamp = now
	meta.NonFinite = nil
	meta.sanitize()

	if err := s.write(runDir, &meta, run); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return runID, nil
}

func (s *Store) write(runDir string, meta *RunMetadata, run *Run) error {
	if err := writeFile(filepath.Join(runDir, metadataFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(runDir, telemetryFile), func(f *os.File) error {
		return WriteTelemetryCSV(f, run.Telemetry)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(runDir, particlesFile), func(f *os.File) error {
		return WriteParticlesCSV(f, run.Final)
	})
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// List returns the saved runs, oldest first. Directories without readable
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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// Latest returns the id of the newest run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", ErrRunNotFound
	}
	return runs[len(runs)-1].ID, nil
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
		return nil, err
	}
	return &meta, nil
}

func (s *Store) open(runID, name string) (*csv.Reader, func() error, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, nil, err
	}
	return csv.NewReader(f), f.Close, nil
}

func (s *Store) LoadTelemetry(runID string) ([]metrics.Sample, error) {
	r, closeFn, err := s.open(runID, telemetryFile)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ReadTelemetryCSV(r)
}

func (s *Store) LoadParticles(runID string) ([]ParticleRecord, error) {
	r, closeFn, err := s.open(runID, particlesFile)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return ReadParticlesCSV(r)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
