package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnsupportedUnitError reports a unit symbol the converter does not know.
// Only the offending reading is dropped.
type UnsupportedUnitError struct {
	Symbol string
	Kind   Kind
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("unsupported unit %q for %s", e.Symbol, e.Kind)
}

// ValidationError reports an aggregate field outside its physical range.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid daily aggregate: %s=%g out of range", e.Field, e.Value)
}

// IncompleteDataError reports required parameters left unresolved after
// sensor fetch and raster fallback. Reasons is keyed by kind.
type IncompleteDataError struct {
	Missing []Kind
	Reasons map[Kind]string
}

func (e *IncompleteDataError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		if r, ok := e.Reasons[k]; ok && r != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", k, r))
			continue
		}
		parts = append(parts, string(k))
	}
	return "incomplete data: missing " + strings.Join(parts, ", ")
}

// CalculationError reports a non-finite value in the evaporation chain.
type CalculationError struct {
	LocationID string
	Date       time.Time
	Field      string
	Inputs     map[string]float64
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("calculation for location %s on %s produced non-finite %s",
		e.LocationID, e.Date.Format(time.DateOnly), e.Field)
}

// RasterResolutionError reports that no gridded model could supply a parameter.
type RasterResolutionError struct {
	Kind   Kind
	Models []string
	Reason string
	Err    error
}

func (e *RasterResolutionError) Error() string {
	msg := fmt.Sprintf("raster fallback for %s via [%s]: %s", e.Kind, strings.Join(e.Models, ","), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RasterResolutionError) Unwrap() error { return e.Err }
