package domain

import "encoding/json"

// Envelope is the single JSON object emitted per run.
type Envelope struct {
	Success bool
	Alerts  []Alert
	Error   string
}

// NewEnvelope builds the all-or-nothing result: any error discards alerts.
func NewEnvelope(alerts []Alert, err error) Envelope {
	if err != nil {
		return Envelope{Success: false, Error: err.Error()}
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	return Envelope{Success: true, Alerts: alerts}
}

type successEnvelope struct {
	Success bool    `json:"success"`
	Alerts  []Alert `json:"alerts"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON emits {"success":true,"alerts":[...]} or
// {"success":false,"error":"..."}; the two shapes never mix.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if !e.Success {
		return json.Marshal(errorEnvelope{Success: false, Error: e.Error})
	}
	alerts := e.Alerts
	if alerts == nil {
		alerts = []Alert{}
	}
	return json.Marshal(successEnvelope{Success: true, Alerts: alerts})
}

// UnmarshalJSON accepts either shape.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool    `json:"success"`
		Alerts  []Alert `json:"alerts"`
		Error   string  `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Success, e.Alerts, e.Error = raw.Success, raw.Alerts, raw.Error
	return nil
}
