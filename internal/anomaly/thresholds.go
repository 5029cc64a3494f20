package anomaly

import "math"

// Band is an inclusive [Min, Max] range. An open side is ±Inf.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the band, bounds included.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Threshold pairs a normal band with the wider critical band around it.
type Threshold struct {
	Normal   Band
	Critical Band
}

// Classify returns the severity for v, or "" when v is inside the normal band.
// The critical band is checked first so a value never yields both severities.
func (t Threshold) Classify(v float64) Severity {
	if !t.Critical.Contains(v) {
		return SeverityCritical
	}
	if !t.Normal.Contains(v) {
		return SeverityWarning
	}
	return ""
}

func between(min, max float64) Band { return Band{Min: min, Max: max} }
func atLeast(min float64) Band      { return Band{Min: min, Max: math.Inf(1)} }
func atMost(max float64) Band       { return Band{Min: math.Inf(-1), Max: max} }

// Health thresholds.
var (
	heartRateThreshold       = Threshold{Normal: between(60, 100), Critical: between(40, 120)}
	spO2Threshold            = Threshold{Normal: atLeast(95), Critical: atLeast(88)}
	systolicBPThreshold      = Threshold{Normal: between(90, 120), Critical: between(70, 140)}
	diastolicBPThreshold     = Threshold{Normal: between(60, 80), Critical: between(40, 90)}
	skinTempThreshold        = Threshold{Normal: between(36, 37.5), Critical: between(35, 39)}
	respiratoryRateThreshold = Threshold{Normal: between(12, 20), Critical: between(8, 30)}
)

// Cabin and life-support thresholds. Power consumption has none.
var (
	cabinCO2Threshold      = Threshold{Normal: atMost(7), Critical: atMost(10)}
	cabinO2Threshold       = Threshold{Normal: between(19.5, 23.5), Critical: between(18, 25)}
	cabinPressureThreshold = Threshold{Normal: between(95, 105), Critical: between(90, 110)}
	cabinTempThreshold     = Threshold{Normal: between(18, 27), Critical: between(15, 30)}
	cabinHumidityThreshold = Threshold{Normal: between(30, 70), Critical: between(20, 80)}
	waterLevelThreshold    = Threshold{Normal: atLeast(20), Critical: atLeast(10)}
	wasteLevelThreshold    = Threshold{Normal: atMost(80), Critical: atMost(95)}
)
