package protocol

import (
	"encoding/json"
	"time"
)

// AlertNotification is the message format for alerts published to Kafka
type AlertNotification struct {
	AlertID        string    `json:"alert_id"`
	UserID         string    `json:"user_id"`
	ReadingID      string    `json:"reading_id"`
	ReadingKind    string    `json:"reading_kind"`
	AnomalyType    string    `json:"anomaly_type"`
	Severity       string    `json:"severity"` // CRITICAL, WARNING
	Category       string    `json:"category"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Value          *float64  `json:"value,omitempty"`
	Recommendation string    `json:"recommendation"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsCritical reports whether the alert needs an email
func (a *AlertNotification) IsCritical() bool {
	return a.Severity == "CRITICAL"
}

// EncodeAlertNotification encodes an AlertNotification to JSON
func EncodeAlertNotification(alert *AlertNotification) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertNotification decodes JSON to AlertNotification
func DecodeAlertNotification(data []byte) (*AlertNotification, error) {
	var alert AlertNotification
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
