package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/metrics"
)

var telemetryHeader = []string{
	"step", "t", "dt", "particles", "kinetic_energy", "max_speed",
	"com_x", "com_y", "com_z", "contacts", "coincident",
}

func WriteTelemetryCSV(w io.Writer, samples []metrics.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(telemetryHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatInt(s.Step, 10),
			formatFloat(s.T),
			formatFloat(s.Dt),
			strconv.Itoa(s.Particles),
			formatFloat(s.KineticEnergy),
			formatFloat(s.MaxSpeed),
			formatFloat(s.CentreOfMass.X),
			formatFloat(s.CentreOfMass.Y),
			formatFloat(s.CentreOfMass.Z),
			strconv.Itoa(s.Contacts),
			strconv.Itoa(s.Coincident),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// rowParser reads typed columns and keeps the first error.
type rowParser struct {
	row  []string
	line int
	err  error
}

func (p *rowParser) float(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.row[i], 64)
	if err != nil {
		p.err = fmt.Errorf("line %d column %d: %w", p.line, i+1, err)
	}
	return v
}

func (p *rowParser) integer(i int) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(p.row[i], 10, 64)
	if err != nil {
		p.err = fmt.Errorf("line %d column %d: %w", p.line, i+1, err)
	}
	return v
}

func (p *rowParser) unsigned(i, bits int) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(p.row[i], 10, bits)
	if err != nil {
		p.err = fmt.Errorf("line %d column %d: %w", p.line, i+1, err)
	}
	return v
}

func readRows(r *csv.Reader, header []string) ([][]string, error) {
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func ReadTelemetryCSV(r *csv.Reader) ([]metrics.Sample, error) {
	rows, err := readRows(r, telemetryHeader)
	if err != nil {
		return nil, err
	}
	out := make([]metrics.Sample, 0, len(rows))
	for i, row := range rows {
		p := rowParser{row: row, line: i + 2}
		s := metrics.Sample{
			Step:          p.integer(0),
			T:             p.float(1),
			Dt:            p.float(2),
			Particles:     int(p.integer(3)),
			KineticEnergy: p.float(4),
			MaxSpeed:      p.float(5),
			CentreOfMass:  dem.Vector{X: p.float(6), Y: p.float(7), Z: p.float(8)},
			Contacts:      int(p.integer(9)),
			Coincident:    int(p.integer(10)),
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, s)
	}
	return out, nil
}

// ParticleRecord is a particle as persisted. The material is referenced by id.
type ParticleRecord struct {
	ID         uint64     `json:"id"`
	Kind       dem.Kind   `json:"kind"`
	Diameter   float64    `json:"diameter"`
	MaterialID byte       `json:"material"`
	Position   dem.Vector `json:"position"`
	Velocity   dem.Vector `json:"velocity"`
}

var particleHeader = []string{"id", "kind", "diameter", "material", "x", "y", "z", "vx", "vy", "vz"}

// NewParticleRecord captures the persisted fields of p.
func NewParticleRecord(p *dem.Particle) ParticleRecord {
	var mat byte
	if p.Material != nil {
		mat = p.Material.ID
	}
	return ParticleRecord{
		ID:         p.ID,
		Kind:       p.Kind,
		Diameter:   p.Diameter,
		MaterialID: mat,
		Position:   p.Position,
		Velocity:   p.Velocity,
	}
}

func WriteParticlesCSV(w io.Writer, ps []dem.Particle) error {
	recs := make([]ParticleRecord, len(ps))
	for i := range ps {
		recs[i] = NewParticleRecord(&ps[i])
	}
	return WriteParticleRecordsCSV(w, recs)
}

func WriteParticleRecordsCSV(w io.Writer, recs []ParticleRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(particleHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.FormatUint(r.ID, 10),
			r.Kind.String(),
			formatFloat(r.Diameter),
			strconv.Itoa(int(r.MaterialID)),
			formatFloat(r.Position.X),
			formatFloat(r.Position.Y),
			formatFloat(r.Position.Z),
			formatFloat(r.Velocity.X),
			formatFloat(r.Velocity.Y),
			formatFloat(r.Velocity.Z),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseKind(s string) (dem.Kind, error) {
	switch s {
	case dem.FreeMovable.String():
		return dem.FreeMovable, nil
	case dem.Fixed.String():
		return dem.Fixed, nil
	default:
		return 0, fmt.Errorf("unknown particle kind %q", s)
	}
}

func ReadParticlesCSV(r *csv.Reader) ([]ParticleRecord, error) {
	rows, err := readRows(r, particleHeader)
	if err != nil {
		return nil, err
	}
	out := make([]ParticleRecord, 0, len(rows))
	for i, row := range rows {
		p := rowParser{row: row, line: i + 2}
		kind, err := parseKind(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rec := ParticleRecord{
			ID:         p.unsigned(0, 64),
			Kind:       kind,
			Diameter:   p.float(2),
			MaterialID: byte(p.unsigned(3, 8)),
			Position:   dem.Vector{X: p.float(4), Y: p.float(5), Z: p.float(6)},
			Velocity:   dem.Vector{X: p.float(7), Y: p.float(8), Z: p.float(9)},
		}
		if p.err != nil {
			return nil, p.err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ExportData is the JSON export of a saved run.
type ExportData struct {
	Meta      RunMetadata      `json:"meta"`
	Telemetry []metrics.Sample `json:"telemetry"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, samples []metrics.Sample) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Meta: *meta, Telemetry: samples})
}
