package domain

import (
	"math"
	"time"
)

const (
	stefanBoltzmann = 4.903e-9 // MJ K⁻⁴ m⁻² day⁻¹
	kelvinRadiative = 273.16
	rsoRatioMin     = 0.3
	rsoRatioMax     = 1.0
	anemometerZ     = 10.0 // m
)

// CalculationInput bundles everything the evaporation chain consumes.
// The aggregate must be complete and validated.
type CalculationInput struct {
	LocationID string
	Date       time.Time
	Aggregate  DailyAggregate
	Constants  CalculationConstants
	Geometry   SolarGeometry
	Sunshine   SunshineEstimate
}

// Components exposes every intermediate of the chain for auditing.
type Components struct {
	TMean           float64 `json:"t_mean"`
	RHMean          float64 `json:"rh_mean"`
	ESMean          float64 `json:"es_mean"`
	EA              float64 `json:"ea"`
	VPD             float64 `json:"vpd"`
	Gamma           float64 `json:"gamma"`
	Delta           float64 `json:"delta"`
	Rs              float64 `json:"rs"`
	Rns             float64 `json:"rns"`
	Rnl             float64 `json:"rnl"`
	Rn              float64 `json:"rn"`
	U2              float64 `json:"u2"`
	RadiationTerm   float64 `json:"radiation_term"`
	AerodynamicTerm float64 `json:"aerodynamic_term"`
	ET0             float64 `json:"et0"`
	Evaporation     float64 `json:"evaporation"`
	RatioClamped    bool    `json:"ratio_clamped,omitempty"`
}

// SaturationVaporPressure returns eₛ(T) in kPa for T in °C.
func SaturationVaporPressure(t float64) float64 {
	return 0.6108 * math.Exp(17.27*t/(t+237.3))
}

// PsychrometricConstant returns γ in kPa/°C for pressure in kPa.
func PsychrometricConstant(p float64) float64 {
	return 0.000665 * p
}

// WindAt2m scales a 10 m wind speed to 2 m with the logarithmic profile.
func WindAt2m(u10 float64) float64 {
	return u10 * 4.87 / math.Log(67.8*anemometerZ-5.42)
}

// NetLongwave returns Rnl in MJ/m²/day. The Rs/Rso ratio is bounded to
// [0.3, 1.0]; the second return value reports whether the bound applied.
func NetLongwave(tMin, tMax, ea, rs, rso float64) (float64, bool) {
	ratio := 0.0
	if rso > 0 {
		ratio = rs / rso
	}
	bounded := clamp(ratio, rsoRatioMin, rsoRatioMax)

	tMinK := math.Pow(tMin+kelvinRadiative, 4)
	tMaxK := math.Pow(tMax+kelvinRadiative, 4)
	rnl := stefanBoltzmann * ((tMaxK + tMinK) / 2) * (0.34 - 0.14*math.Sqrt(ea)) * (1.35*bounded - 0.35)
	return rnl, bounded != ratio
}

// Calculate runs the Shuttleworth / Penman-Monteith chain and scales the
// reference evapotranspiration by the lake coefficient. Negative results
// are returned as is; non-finite ones fail with a CalculationError.
func Calculate(in CalculationInput) (Components, error) {
	agg := in.Aggregate
	tMin, tMax := deref(agg.TMin), deref(agg.TMax)
	rhMin, rhMax := deref(agg.RHMin), deref(agg.RHMax)
	u10, p := deref(agg.WindMean), deref(agg.PressureMean)

	var c Components
	c.TMean = (tMin + tMax) / 2
	c.RHMean = (rhMin + rhMax) / 2

	c.ESMean = (SaturationVaporPressure(tMin) + SaturationVaporPressure(tMax)) / 2
	c.EA = c.RHMean / 100 * c.ESMean
	c.VPD = c.ESMean - c.EA

	c.Gamma = PsychrometricConstant(p)
	c.Delta = 4098 * c.ESMean / math.Pow(c.TMean+237.3, 2)

	geo := in.Geometry
	ratio := 0.0
	if geo.MaxDaylightHours > 0 {
		ratio = in.Sunshine.Hours / geo.MaxDaylightHours
	}
	c.Rs = (in.Constants.AngstromA + in.Constants.AngstromB*ratio) * geo.ExtraterrestrialRadiation
	c.Rns = (1 - in.Constants.Albedo) * c.Rs
	c.Rnl, c.RatioClamped = NetLongwave(tMin, tMax, c.EA, c.Rs, geo.ClearSkyRadiation)
	c.Rn = c.Rns - c.Rnl

	c.U2 = WindAt2m(u10)

	denom := c.Delta + c.Gamma*(1+0.34*c.U2)
	c.RadiationTerm = 0.408 * c.Delta * c.Rn / denom
	c.AerodynamicTerm = c.Gamma * (900 / (c.TMean + 273)) * c.U2 * c.VPD / denom
	c.ET0 = c.RadiationTerm + c.AerodynamicTerm
	c.Evaporation = in.Constants.LakeCoefficient * c.ET0

	for _, check := range []struct {
		field string
		value float64
	}{{"et0", c.ET0}, {"evaporation", c.Evaporation}} {
		if math.IsNaN(check.value) || math.IsInf(check.value, 0) {
			return c, &CalculationError{
				LocationID: in.LocationID,
				Date:       in.Date,
				Field:      check.field,
				Inputs: map[string]float64{
					"t_min":          tMin,
					"t_max":          tMax,
					"rh_min":         rhMin,
					"rh_max":         rhMax,
					"wind_mean":      u10,
					"pressure_mean":  p,
					"sunshine_hours": in.Sunshine.Hours,
					"ra":             geo.ExtraterrestrialRadiation,
					"denominator":    denom,
				},
			}
		}
	}
	return c, nil
}
