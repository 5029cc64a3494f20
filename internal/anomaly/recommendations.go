package anomaly

// DefaultRecommendation is returned for types without a dedicated advisory.
const DefaultRecommendation = "Monitor situation closely and follow standard operating procedures."

var recommendations = map[Type]string{
	TypeHeartRate:       "Monitor astronaut closely. Consider medical evaluation. Reduce physical activity.",
	TypeSpO2:            "Administer supplemental oxygen immediately. Check life support systems. Initiate medical protocol.",
	TypeBloodPressure:   "Initiate cardiovascular monitoring. Review medication. Consult flight surgeon.",
	TypeTemperature:     "Check thermal regulation systems. Administer fluids if fever. Initiate medical assessment.",
	TypeRespiratoryRate: "Assess airway and breathing. Check cabin atmosphere. Initiate medical assessment.",
	TypeCabinCO2:        "Activate CO₂ scrubbers immediately. Check ventilation systems. Verify LiOH cartridges.",
	TypeCabinO2:         "Check oxygen generation system. Verify O₂ supply levels. Activate backup systems if needed.",
	TypeCabinPressure:   "Check hull integrity and seals. Verify pressure control system. Prepare suits if pressure keeps dropping.",
	TypeCabinTemp:       "Check thermal control system. Verify heat exchanger operation. Adjust cabin setpoint.",
	TypeCabinHumidity:   "Check humidity control and condensate separator. Verify ventilation flow.",
	TypeWaterLevel:      "Prepare for water conservation mode. Check recycling system. Review water usage protocols.",
	TypeWasteLevel:      "Schedule immediate waste disposal. Check waste management system integrity. Initiate cleanup protocol.",
}

// Recommendation returns the canned advisory for an anomaly type. It does not
// depend on severity or value.
func Recommendation(t Type) string {
	if rec, ok := recommendations[t]; ok {
		return rec
	}
	return DefaultRecommendation
}
