package domain

import "strings"

// Canonical units used by DailyAggregate and every calculation downstream.
const (
	UnitCelsius     = "°C"
	UnitPercent     = "%"
	UnitMetersPerS  = "m/s"
	UnitKiloPascal  = "kPa"
	UnitHours       = "h"
	UnitMJPerM2Day  = "MJ/m2/day"
	kelvinOffset    = 273.15
	kmhPerMS        = 3.6
	mphToMS         = 0.44704
	knotToMS        = 0.514444
	atmToKPa        = 101.325
	mmHgToKPa       = 0.133322
	wattToMJPerDay  = 0.0864 // 86400 s / 1e6
	octaToPercent   = 12.5
	kWhToMJ         = 3.6
	jPerCm2ToMJPerM = 0.01
)

// CelsiusToKelvin converts °C to K.
func CelsiusToKelvin(c float64) float64 { return c + kelvinOffset }

// KelvinToCelsius converts K to °C.
func KelvinToCelsius(k float64) float64 { return k - kelvinOffset }

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

// KmhToMS converts km/h to m/s.
func KmhToMS(v float64) float64 { return v / kmhPerMS }

// MphToMS converts mph to m/s.
func MphToMS(v float64) float64 { return v * mphToMS }

// KnotsToMS converts knots to m/s.
func KnotsToMS(v float64) float64 { return v * knotToMS }

// HPaToKPa converts hectopascal (or millibar) to kPa.
func HPaToKPa(v float64) float64 { return v / 10 }

// AtmToKPa converts standard atmospheres to kPa.
func AtmToKPa(v float64) float64 { return v * atmToKPa }

// ToCanonical converts a raw value of the given kind from unit to the kind's
// canonical unit. An empty unit is taken as already canonical.
func ToCanonical(kind Kind, value float64, unit string) (float64, error) {
	u := normalizeUnit(unit)
	if u == "" {
		return value, nil
	}

	switch kind {
	case KindTemperature:
		switch u {
		case "°c", "c", "celsius", "degc", "deg c":
			return value, nil
		case "°f", "f", "fahrenheit", "degf":
			return FahrenheitToCelsius(value), nil
		case "k", "kelvin":
			return KelvinToCelsius(value), nil
		}
	case KindWindSpeed:
		switch u {
		case "m/s", "mps", "ms-1", "m s-1":
			return value, nil
		case "km/h", "kmh", "kph", "km/hr":
			return KmhToMS(value), nil
		case "mph", "mi/h":
			return MphToMS(value), nil
		case "kn", "kt", "kts", "knot", "knots":
			return KnotsToMS(value), nil
		}
	case KindPressure:
		switch u {
		case "kpa":
			return value, nil
		case "hpa", "mbar", "mb", "hectopascal":
			return HPaToKPa(value), nil
		case "pa":
			return value / 1000, nil
		case "atm":
			return AtmToKPa(value), nil
		case "mmhg", "torr":
			return value * mmHgToKPa, nil
		}
	case KindHumidity:
		switch u {
		case "%", "percent", "pct":
			return value, nil
		case "fraction":
			return value * 100, nil
		}
	case KindSunshine:
		switch u {
		case "h", "hr", "hrs", "hour", "hours":
			return value, nil
		case "min", "minute", "minutes":
			return value / 60, nil
		case "s", "sec", "seconds":
			return value / 3600, nil
		}
	case KindRadiation:
		switch u {
		case "mj/m2/day", "mj/m²/day", "mj/m2/d", "mj/m²/d", "mj/m2":
			return value, nil
		case "w/m2", "w/m²", "w m-2":
			return value * wattToMJPerDay, nil
		case "kwh/m2/day", "kwh/m²/day", "kwh/m2":
			return value * kWhToMJ, nil
		case "j/cm2/day", "j/cm²/day", "j/cm2":
			return value * jPerCm2ToMJPerM, nil
		}
	case KindCloud, KindCloudLow, KindCloudMid, KindCloudHigh:
		switch u {
		case "%", "percent", "pct":
			return value, nil
		case "octa", "octas", "okta", "oktas":
			return value * octaToPercent, nil
		case "fraction":
			return value * 100, nil
		}
	}

	return 0, &UnsupportedUnitError{Symbol: unit, Kind: kind}
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}
