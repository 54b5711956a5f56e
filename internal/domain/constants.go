package domain

import "fmt"

// Default calculation constants.
const (
	DefaultAlbedo          = 0.23
	DefaultAngstromA       = 0.25
	DefaultAngstromB       = 0.5
	DefaultLakeCoefficient = 1.05

	MinLakeCoefficient = 1.05
	MaxLakeCoefficient = 1.20
)

// CalculationConstants are the empirical coefficients of the evaporation chain.
type CalculationConstants struct {
	Albedo          float64 `json:"albedo"`
	AngstromA       float64 `json:"angstrom_a"`
	AngstromB       float64 `json:"angstrom_b"`
	LakeCoefficient float64 `json:"lake_coefficient"`
}

// ConstantOverrides holds per-location values; nil means inherit.
type ConstantOverrides struct {
	Albedo          *float64 `json:"albedo,omitempty"`
	AngstromA       *float64 `json:"angstrom_a,omitempty"`
	AngstromB       *float64 `json:"angstrom_b,omitempty"`
	LakeCoefficient *float64 `json:"lake_coefficient,omitempty"`
}

// DefaultConstants returns the built-in coefficients.
func DefaultConstants() CalculationConstants {
	return CalculationConstants{
		Albedo:          DefaultAlbedo,
		AngstromA:       DefaultAngstromA,
		AngstromB:       DefaultAngstromB,
		LakeCoefficient: DefaultLakeCoefficient,
	}
}

// Resolve layers location overrides on top of global constants and
// validates the result. The returned value is never modified afterwards.
func (c CalculationConstants) Resolve(o ConstantOverrides) (CalculationConstants, error) {
	out := c
	if o.Albedo != nil {
		out.Albedo = *o.Albedo
	}
	if o.AngstromA != nil {
		out.AngstromA = *o.AngstromA
	}
	if o.AngstromB != nil {
		out.AngstromB = *o.AngstromB
	}
	if o.LakeCoefficient != nil {
		out.LakeCoefficient = *o.LakeCoefficient
	}
	if err := out.Validate(); err != nil {
		return CalculationConstants{}, err
	}
	return out, nil
}

// Validate checks the coefficients for physically usable values.
func (c CalculationConstants) Validate() error {
	if c.Albedo < 0 || c.Albedo > 1 {
		return fmt.Errorf("albedo %g outside [0, 1]", c.Albedo)
	}
	if c.AngstromB <= 0 {
		return fmt.Errorf("angstrom_b %g must be positive", c.AngstromB)
	}
	if c.AngstromA < 0 || c.AngstromA+c.AngstromB > 1 {
		return fmt.Errorf("angstrom coefficients a=%g b=%g out of range", c.AngstromA, c.AngstromB)
	}
	if c.LakeCoefficient < MinLakeCoefficient || c.LakeCoefficient > MaxLakeCoefficient {
		return fmt.Errorf("lake_coefficient %g outside [%g, %g]",
			c.LakeCoefficient, MinLakeCoefficient, MaxLakeCoefficient)
	}
	return nil
}
