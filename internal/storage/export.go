package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/glide/internal/metrics"
)

// ExportPoint is one record in the JSON export.
type ExportPoint struct {
	Time    float64 `json:"time"`
	Kinetic float64 `json:"E_kin"`
	Elastic float64 `json:"E_elastic"`
	Grav    float64 `json:"E_grav"`
	Battery float64 `json:"E_batt"`
	Total   float64 `json:"E_total"`
	SoC     float64 `json:"SoC"`
}

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Points []ExportPoint `json:"points"`
}

// ExportJSON writes the run metadata and its energy series as one document.
func ExportJSON(w io.Writer, meta RunMetadata, records []metrics.Record) error {
	data := ExportData{
		Run:    meta,
		Points: make([]ExportPoint, len(records)),
	}
	for i, rec := range records {
		data.Points[i] = ExportPoint{
			Time:    rec.Time,
			Kinetic: rec.Kinetic,
			Elastic: rec.Elastic,
			Grav:    rec.Grav,
			Battery: rec.Battery,
			Total:   rec.Total,
			SoC:     rec.SoC,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
