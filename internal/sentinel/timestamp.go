package sentinel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// The backend stamps frames with zone-less ISO 8601 times in UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO 8601 times. A time
// without a zone is read as UTC. An empty string yields the zero time.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

type wireTime time.Time

func (t *wireTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = wireTime(parsed)
	return nil
}

func (th *Thought) UnmarshalJSON(data []byte) error {
	type plain Thought
	aux := struct {
		*plain
		Timestamp *wireTime `json:"timestamp"`
	}{plain: (*plain)(th)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != nil {
		th.Timestamp = time.Time(*aux.Timestamp)
	}
	return nil
}

func (a *LastAction) UnmarshalJSON(data []byte) error {
	type plain LastAction
	aux := struct {
		*plain
		Timestamp *wireTime `json:"timestamp"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != nil {
		a.Timestamp = time.Time(*aux.Timestamp)
	}
	return nil
}

func (u *AgentStateUpdate) UnmarshalJSON(data []byte) error {
	type plain AgentStateUpdate
	aux := struct {
		*plain
		Timestamp *wireTime `json:"timestamp"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != nil {
		stamp := time.Time(*aux.Timestamp)
		u.Timestamp = &stamp
	}
	return nil
}

func (f *FixProposal) UnmarshalJSON(data []byte) error {
	type plain FixProposal
	aux := struct {
		*plain
		CreatedAt *wireTime `json:"created_at"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CreatedAt != nil {
		f.CreatedAt = time.Time(*aux.CreatedAt)
	}
	return nil
}
