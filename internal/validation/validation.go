// Package validation range-checks readings and account input before they
// reach the services. HTTP handlers and the MQTT ingester share these rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smukkama/sentinel-server/internal/anomaly"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Error lists the offending fields of a rejected input
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+" "+reason)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Struct validates v against its validate tags and returns *Error on failure
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// HealthReading is the wire form of a vitals reading. Pointers distinguish a
// missing field from a zero value.
type HealthReading struct {
	HeartRate       *float64   `json:"heartRate" validate:"required,gte=30,lte=220"`
	SpO2            *float64   `json:"spO2" validate:"required,gte=50,lte=100"`
	SystolicBP      *float64   `json:"systolicBP" validate:"required,gte=50,lte=250"`
	DiastolicBP     *float64   `json:"diastolicBP" validate:"required,gte=30,lte=150"`
	SkinTemp        *float64   `json:"skinTemp" validate:"required,gte=30,lte=45"`
	RespiratoryRate *float64   `json:"respiratoryRate" validate:"omitempty,gte=0,lte=60"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

// Reading converts a validated request into classifier input
func (h *HealthReading) Reading() anomaly.HealthReading {
	r := anomaly.HealthReading{
		HeartRate:   *h.HeartRate,
		SpO2:        *h.SpO2,
		SystolicBP:  *h.SystolicBP,
		DiastolicBP: *h.DiastolicBP,
		SkinTemp:    *h.SkinTemp,
	}
	if h.RespiratoryRate != nil {
		rr := *h.RespiratoryRate
		r.RespiratoryRate = &rr
	}
	return r
}

// At returns the client supplied timestamp or the zero time
func (h *HealthReading) At() time.Time {
	if h.Timestamp == nil {
		return time.Time{}
	}
	return *h.Timestamp
}

// SystemReading is the wire form of a cabin snapshot
type SystemReading struct {
	CabinCO2              *float64   `json:"cabinCO2" validate:"required,gte=0,lte=50"`
	CabinO2               *float64   `json:"cabinO2" validate:"required,gte=0,lte=100"`
	CabinPressure         *float64   `json:"cabinPressure" validate:"required,gte=0,lte=150"`
	CabinTemp             *float64   `json:"cabinTemp" validate:"required,gte=-50,lte=50"`
	CabinHumidity         *float64   `json:"cabinHumidity" validate:"required,gte=0,lte=100"`
	PowerConsumption      *float64   `json:"powerConsumption" validate:"required,gte=0"`
	WaterReclamationLevel *float64   `json:"waterReclamationLevel" validate:"required,gte=0,lte=100"`
	WasteManagementLevel  *float64   `json:"wasteManagementLevel" validate:"required,gte=0,lte=100"`
	Timestamp             *time.Time `json:"timestamp,omitempty"`
}

func (s *SystemReading) Reading() anomaly.SystemReading {
	return anomaly.SystemReading{
		CabinCO2:              *s.CabinCO2,
		CabinO2:               *s.CabinO2,
		CabinPressure:         *s.CabinPressure,
		CabinTemp:             *s.CabinTemp,
		CabinHumidity:         *s.CabinHumidity,
		PowerConsumption:      *s.PowerConsumption,
		WaterReclamationLevel: *s.WaterReclamationLevel,
		WasteManagementLevel:  *s.WasteManagementLevel,
	}
}

func (s *SystemReading) At() time.Time {
	if s.Timestamp == nil {
		return time.Time{}
	}
	return *s.Timestamp
}

// Signup is the account creation request
type Signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required,min=2"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin mission_control"`
}

// Login is the credential check request
type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
