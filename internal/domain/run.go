package domain

import "time"

// Location outcomes of a run.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// LocationOutcome is the terminal state of one location-day in a run.
type LocationOutcome struct {
	LocationID string   `json:"location_id"`
	Name       string   `json:"name,omitempty"`
	Date       string   `json:"date"`
	Outcome    string   `json:"outcome"`
	Value      *float64 `json:"value_mm_per_day,omitempty"`
	Origin     string   `json:"origin,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// RunSummary describes one batch run over all discovered locations.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	TargetDate string            `json:"target_date"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DryRun     bool              `json:"dry_run"`
	Completed  int               `json:"completed"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Raster     int               `json:"raster_substitutions"`
	Error      string            `json:"error,omitempty"`
	Locations  []LocationOutcome `json:"locations"`
}

// Record appends an outcome and updates the counters.
func (s *RunSummary) Record(o LocationOutcome) {
	switch o.Outcome {
	case OutcomeCompleted:
		s.Completed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	s.Locations = append(s.Locations, o)
}
