package domain

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Cloud layer weights for the combined cover estimate.
const (
	cloudWeightLow  = 1.0
	cloudWeightMid  = 0.6
	cloudWeightHigh = 0.3
	cloudWeightSum  = cloudWeightLow + cloudWeightMid + cloudWeightHigh
)

// DailyAggregate is the reduction of one location's readings for one
// calendar day, in canonical units. Nil fields were not observed.
type DailyAggregate struct {
	TMin          *float64 `json:"t_min,omitempty"`
	TMax          *float64 `json:"t_max,omitempty"`
	RHMin         *float64 `json:"rh_min,omitempty"`
	RHMax         *float64 `json:"rh_max,omitempty"`
	WindMean      *float64 `json:"wind_mean,omitempty"`
	PressureMean  *float64 `json:"pressure_mean,omitempty"`
	SunshineHours *float64 `json:"sunshine_hours,omitempty"`
	Radiation     *float64 `json:"radiation,omitempty"`
	CloudWeighted *float64 `json:"cloud_weighted,omitempty"`

	// cloud layers are kept so a later fold of one layer recombines all three.
	cloudLayers map[Kind]float64
}

// Aggregate reduces a day's readings into a DailyAggregate. Readings that
// cannot be converted are dropped and reported in the returned slice; the
// aggregate is still built from the remaining readings.
func Aggregate(readings []Reading) (DailyAggregate, []error) {
	var agg DailyAggregate
	var dropped []error

	groups := make(map[Kind][]float64)
	var order []Kind
	for _, r := range readings {
		v, err := ToCanonical(r.Kind, r.Value, r.Unit)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if _, seen := groups[r.Kind]; !seen {
			order = append(order, r.Kind)
		}
		groups[r.Kind] = append(groups[r.Kind], v)
	}

	for _, kind := range order {
		agg.reduce(kind, groups[kind])
	}
	return agg, dropped
}

// Fold converts and reduces readings of a single kind into the aggregate,
// replacing whatever that kind held before. It is how substituted raster
// values enter the aggregate.
func (a *DailyAggregate) Fold(kind Kind, readings []Reading) []error {
	var dropped []error
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		v, err := ToCanonical(kind, r.Value, r.Unit)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
	}
	a.reduce(kind, values)
	return dropped
}

func (a *DailyAggregate) reduce(kind Kind, values []float64) {
	if len(values) == 0 {
		return
	}
	switch kind {
	case KindTemperature:
		a.TMin, a.TMax = ptr(floats.Min(values)), ptr(floats.Max(values))
	case KindHumidity:
		a.RHMin, a.RHMax = ptr(floats.Min(values)), ptr(floats.Max(values))
	case KindWindSpeed:
		a.WindMean = ptr(stat.Mean(values, nil))
	case KindPressure:
		a.PressureMean = ptr(stat.Mean(values, nil))
	case KindSunshine:
		a.SunshineHours = ptr(floats.Sum(values))
	case KindRadiation:
		a.Radiation = ptr(stat.Mean(values, nil))
	case KindCloudLow, KindCloudMid, KindCloudHigh:
		if a.cloudLayers == nil {
			a.cloudLayers = make(map[Kind]float64, 3)
		}
		a.cloudLayers[kind] = stat.Mean(values, nil)
		a.CloudWeighted = ptr(WeightedCloudCover(
			a.cloudLayers[KindCloudLow], a.cloudLayers[KindCloudMid], a.cloudLayers[KindCloudHigh]))
	case KindCloud:
		// Layered observations take precedence over a single total.
		if len(a.cloudLayers) == 0 {
			a.CloudWeighted = ptr(stat.Mean(values, nil))
		}
	}
}

// WeightedCloudCover combines low, mid and high cloud cover percentages.
func WeightedCloudCover(low, mid, high float64) float64 {
	return (low*cloudWeightLow + mid*cloudWeightMid + high*cloudWeightHigh) / cloudWeightSum
}

// Has reports whether the aggregate holds a value for kind. Cloud layers all
// map onto the combined cover.
func (a DailyAggregate) Has(kind Kind) bool {
	switch kind {
	case KindTemperature:
		return a.TMin != nil && a.TMax != nil
	case KindHumidity:
		return a.RHMin != nil && a.RHMax != nil
	case KindWindSpeed:
		return a.WindMean != nil
	case KindPressure:
		return a.PressureMean != nil
	case KindSunshine:
		return a.SunshineHours != nil
	case KindRadiation:
		return a.Radiation != nil
	case KindCloud, KindCloudLow, KindCloudMid, KindCloudHigh:
		return a.CloudWeighted != nil
	}
	return false
}

// Missing lists the required kinds the aggregate has no value for.
func (a DailyAggregate) Missing() []Kind {
	var missing []Kind
	for _, k := range RequiredKinds {
		if !a.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Validate checks the physical invariants of every populated field.
func (a DailyAggregate) Validate() error {
	if a.TMin != nil && a.TMax != nil && *a.TMin > *a.TMax {
		return &ValidationError{Field: "t_min", Value: *a.TMin}
	}
	if a.RHMin != nil && *a.RHMin < 0 {
		return &ValidationError{Field: "rh_min", Value: *a.RHMin}
	}
	if a.RHMax != nil && *a.RHMax > 100 {
		return &ValidationError{Field: "rh_max", Value: *a.RHMax}
	}
	if a.RHMin != nil && a.RHMax != nil && *a.RHMin > *a.RHMax {
		return &ValidationError{Field: "rh_min", Value: *a.RHMin}
	}
	if a.WindMean != nil && *a.WindMean < 0 {
		return &ValidationError{Field: "wind_mean", Value: *a.WindMean}
	}
	if a.PressureMean != nil && (*a.PressureMean <= 50 || *a.PressureMean >= 120) {
		return &ValidationError{Field: "pressure_mean", Value: *a.PressureMean}
	}
	return nil
}

// Complete validates the aggregate and reports any missing required field.
func (a DailyAggregate) Complete() error {
	if missing := a.Missing(); len(missing) > 0 {
		return &IncompleteDataError{Missing: missing}
	}
	return a.Validate()
}

func ptr(v float64) *float64 { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
