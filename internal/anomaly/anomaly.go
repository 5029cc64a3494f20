// Package anomaly classifies crew vitals and cabin system readings against
// fixed two-tier thresholds.
package anomaly

// Severity of a detected anomaly.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Category groups anomalies for display. Health anomalies carry no category
// from the classifier.
type Category string

const (
	CategoryHealth      Category = "HEALTH"
	CategoryEnvironment Category = "ENVIRONMENT"
	CategorySystem      Category = "SYSTEM"
)

// Type identifies the measured quantity that triggered an anomaly.
type Type string

const (
	TypeHeartRate       Type = "HEART_RATE"
	TypeSpO2            Type = "SPO2"
	TypeBloodPressure   Type = "BLOOD_PRESSURE"
	TypeTemperature     Type = "TEMPERATURE"
	TypeRespiratoryRate Type = "RESPIRATORY_RATE"
	TypeCabinCO2        Type = "CABIN_CO2"
	TypeCabinO2         Type = "CABIN_O2"
	TypeCabinPressure   Type = "CABIN_PRESSURE"
	TypeCabinTemp       Type = "CABIN_TEMP"
	TypeCabinHumidity   Type = "CABIN_HUMIDITY"
	TypeWaterLevel      Type = "WATER_LEVEL"
	TypeWasteLevel      Type = "WASTE_LEVEL"
)

// Anomaly is one out-of-range measurement.
type Anomaly struct {
	Type     Type     `json:"type"`
	Severity Severity `json:"severity"`
	Category Category `json:"category,omitempty"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Value    float64  `json:"value"`
}

// HealthReading holds one set of crew vitals.
type HealthReading struct {
	HeartRate       float64  `json:"heartRate"`
	SpO2            float64  `json:"spO2"`
	SystolicBP      float64  `json:"systolicBP"`
	DiastolicBP     float64  `json:"diastolicBP"`
	SkinTemp        float64  `json:"skinTemp"`
	RespiratoryRate *float64 `json:"respiratoryRate,omitempty"`
}

// SystemReading holds one snapshot of the cabin environment and life support.
type SystemReading struct {
	CabinCO2              float64 `json:"cabinCO2"`
	CabinO2               float64 `json:"cabinO2"`
	CabinPressure         float64 `json:"cabinPressure"`
	CabinTemp             float64 `json:"cabinTemp"`
	CabinHumidity         float64 `json:"cabinHumidity"`
	PowerConsumption      float64 `json:"powerConsumption"`
	WaterReclamationLevel float64 `json:"waterReclamationLevel"`
	WasteManagementLevel  float64 `json:"wasteManagementLevel"`
}
