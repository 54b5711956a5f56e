package domain

import "math"

// Solar constant in MJ m⁻² min⁻¹.
const solarConstant = 0.0820

// SolarGeometry holds the day's astronomical quantities for one site.
// Angles are in radians, radiation in MJ/m²/day.
type SolarGeometry struct {
	Declination               float64 `json:"declination"`
	SunsetHourAngle           float64 `json:"sunset_hour_angle"`
	DistanceFactor            float64 `json:"distance_factor"`
	ExtraterrestrialRadiation float64 `json:"ra"`
	MaxDaylightHours          float64 `json:"max_daylight_hours"`
	ClearSkyRadiation         float64 `json:"rso"`
}

// SolarGeometryFor computes solar geometry from latitude in degrees,
// altitude in metres and day of year. Polar day and polar night are handled
// by clamping the hour-angle cosine, giving ωs of π and 0 respectively.
func SolarGeometryFor(latitudeDeg, altitude float64, dayOfYear int) SolarGeometry {
	phi := latitudeDeg * math.Pi / 180
	j := float64(dayOfYear)

	delta := Declination(dayOfYear)
	ws := math.Acos(clamp(-math.Tan(phi)*math.Tan(delta), -1, 1))
	dr := 1 + 0.033*math.Cos(2*math.Pi*j/365)

	ra := (24 * 60 / math.Pi) * solarConstant * dr *
		(ws*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*math.Sin(ws))

	return SolarGeometry{
		Declination:               delta,
		SunsetHourAngle:           ws,
		DistanceFactor:            dr,
		ExtraterrestrialRadiation: ra,
		MaxDaylightHours:          24 * ws / math.Pi,
		ClearSkyRadiation:         (0.75 + 2e-5*altitude) * ra,
	}
}

// Declination returns the solar declination in radians for a day of year.
func Declination(dayOfYear int) float64 {
	return 0.409 * math.Sin(2*math.Pi*float64(dayOfYear)/365-1.39)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
