package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Layouts accepted for persisted timestamps. History files written by older
// tooling carry ISO-8601 local times without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without a UTC offset.
// Values without an offset are read as local time.
func ParseTimestamp(v string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("model: invalid timestamp %q", v)
}

// isoTime decodes through ParseTimestamp. Encoding stays RFC 3339.
type isoTime time.Time

func (t *isoTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "model: decode timestamp")
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = isoTime(parsed)
	return nil
}

// UnmarshalJSON accepts timestamps with or without a UTC offset.
func (e *ErrorEntry) UnmarshalJSON(b []byte) error {
	type entry ErrorEntry
	aux := struct {
		*entry
		Timestamp isoTime `json:"timestamp"`
	}{entry: (*entry)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Timestamp = time.Time(aux.Timestamp)
	return nil
}

// UnmarshalJSON accepts timestamps with or without a UTC offset.
func (a *Application) UnmarshalJSON(b []byte) error {
	type application Application
	aux := struct {
		*application
		CreatedAt isoTime `json:"created_at"`
		UpdatedAt isoTime `json:"updated_at"`
	}{application: (*application)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.CreatedAt = time.Time(aux.CreatedAt)
	a.UpdatedAt = time.Time(aux.UpdatedAt)
	return nil
}
