// Package domain implements the lake evaporation calculation engine.
//
// # Inputs
//
// Sensor series are attached to a lake evaporation target series through
// its "lakeEvaporation" metadata. Each reference uses one of three forms:
//
//	tsId(4711)            direct series id
//	tsPath(/site/TA/15m)  series path, resolved against the discovered list
//	exchangeId(A-17)      external exchange id, resolved the same way
//
// Readings arrive in whatever unit the series records. [ToCanonical] brings
// every reading into the canonical unit of its kind before aggregation:
//
//	temperature  °C         humidity  %          wind    m/s (10 m height)
//	pressure     kPa        sunshine  hours      radiation  MJ/m²/day
//	cloud cover  %
//
// Radiation in W/m² is a daily mean flux and scales by 0.0864. Cloud cover in
// octas scales by 12.5.
//
// # Daily Aggregation
//
// Temperature and humidity reduce to min/max, wind and pressure to the
// arithmetic mean, sunshine to the daily sum, radiation to the mean. Cloud
// layers combine as
//
//	cw = (low·1.0 + mid·0.6 + high·0.3) / 1.9
//
// A kind without readings leaves its field nil. Required kinds that stay nil
// after raster fallback make the day incomplete; it is skipped, never
// defaulted.
//
// # Evaporation
//
// [Calculate] follows the FAO-56 Penman-Monteith form used by the
// Shuttleworth method:
//
//	ET0 = (0.408·Δ·Rn + γ·(900/(T+273))·u2·VPD) / (Δ + γ·(1 + 0.34·u2))
//	E   = kc · ET0
//
// The first addend is reported as the radiation term, the second as the
// aerodynamic term. Net radiation uses Ångström–Prescott coefficients for
// incoming shortwave and bounds Rs/Rso to [0.3, 1.0] in the longwave cloud
// factor. Negative values can occur on winter days with a net longwave loss
// and are kept.
//
// # Sunshine
//
// Measured sunshine wins; otherwise it is inverted from global radiation,
// then estimated from cloud cover. Both estimates are bounded to [0, N].
// Without any of the three the day is calculated with zero sunshine and the
// result records the assumption.
//
// # Raster Fallback
//
// Locations inside 35–72°N, 25°W–45°E use ICON-EU with GFS as fallback;
// everything else uses GFS. See [RasterModels.ModelsFor] and
// [DefaultRasterParameters].
package domain
