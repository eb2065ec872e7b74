package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"neurosentinel/internal/sentinel"
)

// Field applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Component tags the subsystem that logged.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Event adds the wire event name.
func Event(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("event", name)
	}
}

// State adds an agent state.
func State(s sentinel.AgentState) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("agent_state", string(s))
	}
}

// NodeID adds a node id.
func NodeID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("node_id", id)
	}
}

// URL adds an endpoint.
func URL(url string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("url", url)
	}
}

// Count adds a counter.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Connected adds the transport state.
func Connected(connected bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("connected", connected)
	}
}

// Duration adds a duration in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error. A nil error adds nothing.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Str adds a string field with a custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
