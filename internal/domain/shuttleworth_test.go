package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceInput is the published validation day: 51°N, 23 m, day 180.
func referenceInput(t *testing.T) CalculationInput {
	t.Helper()

	agg, dropped := Aggregate(concat(
		readingsAt(KindTemperature, "°C", 19.5, 25.0),
		readingsAt(KindHumidity, "%", 65, 85),
		readingsAt(KindWindSpeed, "km/h", 9),
		readingsAt(KindPressure, "kPa", 101.3),
		readingsAt(KindSunshine, "h", 8.0),
	))
	require.Empty(t, dropped)
	require.NoError(t, agg.Complete())

	consts := DefaultConstants()
	geo := SolarGeometryFor(51.0, 23.0, 180)
	return CalculationInput{
		LocationID: "loc-ref",
		Date:       time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
		Aggregate:  agg,
		Constants:  consts,
		Geometry:   geo,
		Sunshine:   EstimateSunshine(SunshineInput{Aggregate: agg, Geometry: geo, Constants: consts}, DefaultSunshineStrategies),
	}
}

func TestCalculate_ReferenceScenario(t *testing.T) {
	in := referenceInput(t)

	c, err := Calculate(in)
	require.NoError(t, err)

	assert.InDelta(t, 4.3415, c.Evaporation, 0.05)
	assert.InDelta(t, 4.1348, c.ET0, 0.001)
	assert.InDelta(t, c.ET0, c.RadiationTerm+c.AerodynamicTerm, 1e-12)
	assert.InDelta(t, 1.05*c.ET0, c.Evaporation, 1e-12)
	assert.InDelta(t, 2.5*0.7479511, c.U2, 1e-6)
	assert.InDelta(t, 0.0673645, c.Gamma, 1e-9)
	assert.InDelta(t, 13.0224, c.Rn, 1e-3)
	assert.False(t, c.RatioClamped)
}

func TestCalculate_LakeCoefficientScales(t *testing.T) {
	in := referenceInput(t)
	base, err := Calculate(in)
	require.NoError(t, err)

	in.Constants.LakeCoefficient = 1.20
	scaled, err := Calculate(in)
	require.NoError(t, err)

	assert.InDelta(t, base.ET0, scaled.ET0, 1e-12)
	assert.InDelta(t, 1.20*base.ET0, scaled.Evaporation, 1e-12)
}

func TestSaturationVaporPressure_WorkbookValues(t *testing.T) {
	assert.InDelta(t, 5.030148, SaturationVaporPressure(33.0), 1e-6)
	assert.InDelta(t, 1.937729, SaturationVaporPressure(17.0), 1e-6)
}

func TestPsychrometricConstant(t *testing.T) {
	assert.InDelta(t, 0.066434, PsychrometricConstant(99.9), 1e-6)
}

func TestNetLongwave_WorkbookValue(t *testing.T) {
	rnl, clamped := NetLongwave(17.0, 33.0, 1.751261, 30.904801, 31.322714)
	assert.InDelta(t, 5.913087, rnl, 1e-5)
	assert.False(t, clamped)
}

func TestNetLongwave_RatioBounded(t *testing.T) {
	high, clampedHigh := NetLongwave(10, 20, 1.2, 40, 30)
	atOne, _ := NetLongwave(10, 20, 1.2, 30, 30)
	assert.True(t, clampedHigh)
	assert.InDelta(t, atOne, high, 1e-12)

	low, clampedLow := NetLongwave(10, 20, 1.2, 1, 30)
	atFloor, _ := NetLongwave(10, 20, 1.2, 9, 30)
	assert.True(t, clampedLow)
	assert.InDelta(t, atFloor, low, 1e-12)
}

func TestCalculate_NegativeWinterResultKept(t *testing.T) {
	agg := DailyAggregate{
		TMin: ptr(-5), TMax: ptr(-2),
		RHMin: ptr(90), RHMax: ptr(100),
		WindMean: ptr(0.5), PressureMean: ptr(101.3),
	}
	geo := SolarGeometryFor(60, 0, 355)
	in := CalculationInput{
		LocationID: "loc-winter",
		Date:       time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		Aggregate:  agg,
		Constants:  DefaultConstants(),
		Geometry:   geo,
		Sunshine:   SunshineEstimate{Hours: 0, Method: SunshineAssumption, Origin: OriginAssumption},
	}

	c, err := Calculate(in)
	require.NoError(t, err)
	assert.Less(t, c.Rn, 0.0)
	assert.InDelta(t, -0.0127, c.Evaporation, 1e-3)
}

func TestCalculate_NonFiniteFails(t *testing.T) {
	in := referenceInput(t)
	in.Aggregate.WindMean = ptr(math.NaN())

	_, err := Calculate(in)
	var calcErr *CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "loc-ref", calcErr.LocationID)
	assert.Equal(t, "et0", calcErr.Field)
	assert.Contains(t, calcErr.Inputs, "wind_mean")
	assert.Contains(t, err.Error(), "2024-06-28")
}
