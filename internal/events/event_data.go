package events

import (
	"encoding/json"
)

// EventData is the interface that all event payload types implement.
// It allows type-safe payloads while keeping the bus generic.
type EventData interface {
	// EventType returns the event type this payload is associated with
	EventType() EventType
}

// SyncStartedData contains data for SyncStarted events
type SyncStartedData struct {
	Symbols []string `json:"symbols"`
}

// EventType returns the event type for SyncStartedData
func (d *SyncStartedData) EventType() EventType {
	return SyncStarted
}

// SyncCompletedData contains data for SyncCompleted events
type SyncCompletedData struct {
	Symbols int      `json:"symbols"`
	Bars    int      `json:"bars"`
	Failed  []string `json:"failed,omitempty"`
}

// EventType returns the event type for SyncCompletedData
func (d *SyncCompletedData) EventType() EventType {
	return SyncCompleted
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID   string   `json:"run_id"`
	Symbols []string `json:"symbols"`
	Points  int      `json:"points"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID          string  `json:"run_id"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	Return         float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	FrontierPoints int     `json:"frontier_points"`
	Duration       float64 `json:"duration_seconds"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID string `json:"run_id"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string  `json:"key"`
	SizeBytes int64   `json:"size_bytes"`
	Duration  float64 `json:"duration_seconds"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// MarshalJSON customizes JSON serialization for Event
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 {
		return nil
	}

	var eventData EventData
	switch aux.Type {
	case SyncStarted:
		eventData = &SyncStartedData{}
	case SyncCompleted:
		eventData = &SyncCompletedData{}
	case RunStarted:
		eventData = &RunStartedData{}
	case RunCompleted:
		eventData = &RunCompletedData{}
	case RunFailed:
		eventData = &RunFailedData{}
	case BackupCompleted:
		eventData = &BackupCompletedData{}
	case ErrorOccurred:
		eventData = &ErrorEventData{}
	default:
		// Unknown types decode into a raw map so nothing is dropped
		var rawData map[string]interface{}
		if err := json.Unmarshal(aux.Data, &rawData); err != nil {
			return err
		}
		e.Data = &GenericEventData{Type: aux.Type, Data: rawData}
		return nil
	}

	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData

	return nil
}

// GenericEventData is a fallback payload for events without a known type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
