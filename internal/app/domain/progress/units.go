package progress

import (
	"fmt"
	"math"
	"strings"
)

const (
	UnitKg  = "kg"
	UnitLbs = "lbs"

	lbsPerKg = 2.20462
	kgPerLbs = 0.453592
)

// KgToLbs converts kilograms to pounds.
func KgToLbs(kg float64) float64 { return kg * lbsPerKg }

// LbsToKg converts pounds to kilograms.
func LbsToKg(lbs float64) float64 { return lbs * kgPerLbs }

// NormalizeWeight returns value expressed in both units, rounded to two
// decimals.
func NormalizeWeight(value float64, unit string) (kg, lbs float64, err error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", UnitKg:
		return round2(value), round2(KgToLbs(value)), nil
	case UnitLbs, "lb":
		return round2(LbsToKg(value)), round2(value), nil
	}
	return 0, 0, fmt.Errorf("unknown weight unit %q", unit)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
