package domain

// Sunshine estimation methods, recorded in result provenance.
const (
	SunshineDirect     = "direct"
	SunshineRadiation  = "radiation"
	SunshineCloud      = "cloud"
	SunshineAssumption = "assumed_zero"
)

// SunshineInput is what a strategy may draw on.
type SunshineInput struct {
	Aggregate DailyAggregate
	Geometry  SolarGeometry
	Constants CalculationConstants
}

// SunshineEstimate is the chosen sunshine duration with its provenance.
type SunshineEstimate struct {
	Hours   float64 `json:"hours"`
	Method  string  `json:"method"`
	Origin  Origin  `json:"origin"`
	Clamped bool    `json:"clamped,omitempty"`
	// Raw is the unclamped value when Clamped is set.
	Raw float64 `json:"raw,omitempty"`
}

// SunshineStrategy derives sunshine hours from one kind of evidence.
type SunshineStrategy interface {
	Name() string
	Available(in SunshineInput) bool
	Estimate(in SunshineInput) SunshineEstimate
}

// DefaultSunshineStrategies is the priority order: measurement, radiation
// inversion, cloud cover, then the zero assumption.
var DefaultSunshineStrategies = []SunshineStrategy{
	directSunshine{},
	radiationSunshine{},
	cloudSunshine{},
	assumedSunshine{},
}

// EstimateSunshine returns the estimate of the first available strategy.
func EstimateSunshine(in SunshineInput, strategies []SunshineStrategy) SunshineEstimate {
	for _, s := range strategies {
		if s.Available(in) {
			return s.Estimate(in)
		}
	}
	return assumedSunshine{}.Estimate(in)
}

type directSunshine struct{}

func (directSunshine) Name() string { return SunshineDirect }

func (directSunshine) Available(in SunshineInput) bool {
	return in.Aggregate.SunshineHours != nil
}

func (directSunshine) Estimate(in SunshineInput) SunshineEstimate {
	return SunshineEstimate{Hours: *in.Aggregate.SunshineHours, Method: SunshineDirect, Origin: OriginSensor}
}

// radiationSunshine inverts the Ångström–Prescott relation.
type radiationSunshine struct{}

func (radiationSunshine) Name() string { return SunshineRadiation }

func (radiationSunshine) Available(in SunshineInput) bool {
	return in.Aggregate.Radiation != nil &&
		in.Geometry.ExtraterrestrialRadiation > 0 &&
		in.Constants.AngstromB != 0
}

func (radiationSunshine) Estimate(in SunshineInput) SunshineEstimate {
	n := in.Geometry.MaxDaylightHours
	raw := n * ((*in.Aggregate.Radiation / in.Geometry.ExtraterrestrialRadiation) - in.Constants.AngstromA) / in.Constants.AngstromB
	return clampedEstimate(raw, n, SunshineRadiation)
}

type cloudSunshine struct{}

func (cloudSunshine) Name() string { return SunshineCloud }

func (cloudSunshine) Available(in SunshineInput) bool {
	return in.Aggregate.CloudWeighted != nil
}

func (cloudSunshine) Estimate(in SunshineInput) SunshineEstimate {
	n := in.Geometry.MaxDaylightHours
	raw := n * (1 - *in.Aggregate.CloudWeighted/100)
	return clampedEstimate(raw, n, SunshineCloud)
}

type assumedSunshine struct{}

func (assumedSunshine) Name() string                 { return SunshineAssumption }
func (assumedSunshine) Available(SunshineInput) bool { return true }

func (assumedSunshine) Estimate(SunshineInput) SunshineEstimate {
	return SunshineEstimate{Hours: 0, Method: SunshineAssumption, Origin: OriginAssumption}
}

func clampedEstimate(raw, maxHours float64, method string) SunshineEstimate {
	est := SunshineEstimate{Hours: clamp(raw, 0, maxHours), Method: method, Origin: OriginDerived}
	if est.Hours != raw {
		est.Clamped = true
		est.Raw = raw
	}
	return est
}
