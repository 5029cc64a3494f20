package anomaly

import (
	"fmt"
	"strconv"
)

// rule describes how one field is checked and worded. Message formats take
// the value rendered in shortest form.
type rule struct {
	typ       Type
	category  Category
	threshold Threshold

	criticalTitle   string
	criticalMessage string
	warningTitle    string
	warningMessage  string
}

func (r rule) evaluate(v float64) (Anomaly, bool) {
	sev := r.threshold.Classify(v)
	if sev == "" {
		return Anomaly{}, false
	}

	title, format := r.warningTitle, r.warningMessage
	if sev == SeverityCritical {
		title, format = r.criticalTitle, r.criticalMessage
	}

	return Anomaly{
		Type:     r.typ,
		Severity: sev,
		Category: r.category,
		Title:    title,
		Message:  fmt.Sprintf(format, formatValue(v)),
		Value:    v,
	}, true
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	heartRateRule = rule{
		typ:             TypeHeartRate,
		threshold:       heartRateThreshold,
		criticalTitle:   "Critical Heart Rate",
		criticalMessage: "Heart rate is %s BPM, outside safe range.",
		warningTitle:    "Abnormal Heart Rate",
		warningMessage:  "Heart rate is %s BPM, outside normal range.",
	}
	spO2Rule = rule{
		typ:             TypeSpO2,
		threshold:       spO2Threshold,
		criticalTitle:   "Critical Blood Oxygen Level",
		criticalMessage: "SpO₂ is %s%%, critically low.",
		warningTitle:    "Low Blood Oxygen",
		warningMessage:  "SpO₂ is %s%%, below normal range.",
	}
	systolicRule = rule{
		typ:             TypeBloodPressure,
		threshold:       systolicBPThreshold,
		criticalTitle:   "Critical Blood Pressure",
		criticalMessage: "Systolic BP is %s mmHg, critically abnormal.",
		warningTitle:    "Abnormal Blood Pressure",
		warningMessage:  "Systolic BP is %s mmHg, outside normal range.",
	}
	diastolicRule = rule{
		typ:             TypeBloodPressure,
		threshold:       diastolicBPThreshold,
		criticalTitle:   "Critical Blood Pressure",
		criticalMessage: "Diastolic BP is %s mmHg, critically abnormal.",
		warningTitle:    "Abnormal Blood Pressure",
		warningMessage:  "Diastolic BP is %s mmHg, outside normal range.",
	}
	skinTempRule = rule{
		typ:             TypeTemperature,
		threshold:       skinTempThreshold,
		criticalTitle:   "Critical Body Temperature",
		criticalMessage: "Skin temperature is %s°C, critically abnormal.",
		warningTitle:    "Abnormal Body Temperature",
		warningMessage:  "Skin temperature is %s°C, outside normal range.",
	}
	respiratoryRule = rule{
		typ:             TypeRespiratoryRate,
		threshold:       respiratoryRateThreshold,
		criticalTitle:   "Critical Respiratory Rate",
		criticalMessage: "Respiratory rate is %s breaths/min, critically abnormal.",
		warningTitle:    "Abnormal Respiratory Rate",
		warningMessage:  "Respiratory rate is %s breaths/min, outside normal range.",
	}

	cabinCO2Rule = rule{
		typ:             TypeCabinCO2,
		category:        CategoryEnvironment,
		threshold:       cabinCO2Threshold,
		criticalTitle:   "Critical CO₂ Level",
		criticalMessage: "Cabin CO₂ is %s mmHg, critically high.",
		warningTitle:    "Elevated CO₂ Level",
		warningMessage:  "Cabin CO₂ is %s mmHg, above normal.",
	}
	cabinO2Rule = rule{
		typ:             TypeCabinO2,
		category:        CategoryEnvironment,
		threshold:       cabinO2Threshold,
		criticalTitle:   "Critical Oxygen Level",
		criticalMessage: "Cabin O₂ is %s%%, critically abnormal.",
		warningTitle:    "Abnormal Oxygen Level",
		warningMessage:  "Cabin O₂ is %s%%, outside normal range.",
	}
	cabinPressureRule = rule{
		typ:             TypeCabinPressure,
		category:        CategoryEnvironment,
		threshold:       cabinPressureThreshold,
		criticalTitle:   "Critical Cabin Pressure",
		criticalMessage: "Cabin pressure is %s kPa, critically abnormal.",
		warningTitle:    "Abnormal Cabin Pressure",
		warningMessage:  "Cabin pressure is %s kPa, outside normal range.",
	}
	cabinTempRule = rule{
		typ:             TypeCabinTemp,
		category:        CategoryEnvironment,
		threshold:       cabinTempThreshold,
		criticalTitle:   "Critical Cabin Temperature",
		criticalMessage: "Cabin temperature is %s°C, critically abnormal.",
		warningTitle:    "Abnormal Cabin Temperature",
		warningMessage:  "Cabin temperature is %s°C, outside normal range.",
	}
	cabinHumidityRule = rule{
		typ:             TypeCabinHumidity,
		category:        CategoryEnvironment,
		threshold:       cabinHumidityThreshold,
		criticalTitle:   "Critical Cabin Humidity",
		criticalMessage: "Cabin humidity is %s%%, critically abnormal.",
		warningTitle:    "Abnormal Cabin Humidity",
		warningMessage:  "Cabin humidity is %s%%, outside normal range.",
	}
	waterLevelRule = rule{
		typ:             TypeWaterLevel,
		category:        CategorySystem,
		threshold:       waterLevelThreshold,
		criticalTitle:   "Critical Water Level",
		criticalMessage: "Water reclamation at %s%%, critically low.",
		warningTitle:    "Low Water Level",
		warningMessage:  "Water reclamation at %s%%, below normal.",
	}
	wasteLevelRule = rule{
		typ:             TypeWasteLevel,
		category:        CategorySystem,
		threshold:       wasteLevelThreshold,
		criticalTitle:   "Critical Waste Level",
		criticalMessage: "Waste management at %s%%, critically high.",
		warningTitle:    "High Waste Level",
		warningMessage:  "Waste management at %s%%, above normal.",
	}
)

type check struct {
	rule  rule
	value float64
}

func run(checks []check) []Anomaly {
	var out []Anomaly
	for _, c := range checks {
		if a, ok := c.rule.evaluate(c.value); ok {
			out = append(out, a)
		}
	}
	return out
}

// DetectHealth classifies a set of vitals. Anomalies are returned in field
// order: heart rate, SpO2, systolic, diastolic, skin temperature and, when
// present, respiratory rate. A nil slice means the reading is normal.
func DetectHealth(r HealthReading) []Anomaly {
	checks := []check{
		{heartRateRule, r.HeartRate},
		{spO2Rule, r.SpO2},
		{systolicRule, r.SystolicBP},
		{diastolicRule, r.DiastolicBP},
		{skinTempRule, r.SkinTemp},
	}
	if r.RespiratoryRate != nil {
		checks = append(checks, check{respiratoryRule, *r.RespiratoryRate})
	}
	return run(checks)
}

// DetectSystem classifies a cabin snapshot in the order CO2, O2, pressure,
// temperature, humidity, water reclamation, waste management.
func DetectSystem(r SystemReading) []Anomaly {
	return run([]check{
		{cabinCO2Rule, r.CabinCO2},
		{cabinO2Rule, r.CabinO2},
		{cabinPressureRule, r.CabinPressure},
		{cabinTempRule, r.CabinTemp},
		{cabinHumidityRule, r.CabinHumidity},
		{waterLevelRule, r.WaterReclamationLevel},
		{wasteLevelRule, r.WasteManagementLevel},
	})
}
