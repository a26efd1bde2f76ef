package types

import (
	"encoding/json"
	"fmt"
)

// EventKind tags a remote mutation event.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one remote mutation pushed by the transport. Exactly one of
// the payload fields is meaningful per kind: Message for insert, ID+Patch
// for update, ID+TS for delete.
type Event struct {
	Kind    EventKind     `json:"type"`
	Message *Message      `json:"message,omitempty"`
	ID      string        `json:"id,omitempty"`
	Patch   *MessagePatch `json:"patch,omitempty"`
	TS      int64         `json:"ts,omitempty"`
}

// eventEnvelope mirrors Event but carries the pin patch explicitly,
// since OptionalPin does not round-trip through plain JSON.
type eventEnvelope struct {
	Kind    EventKind     `json:"type"`
	Message *Message      `json:"message,omitempty"`
	ID      string        `json:"id,omitempty"`
	Patch   *MessagePatch `json:"patch,omitempty"`
	PinSet  bool          `json:"pin_set,omitempty"`
	Pin     *Pin          `json:"pin,omitempty"`
	TS      int64         `json:"ts,omitempty"`
}

// ParseEvent decodes a push payload into a tagged event. Unknown or
// malformed payloads return an error; callers log and drop them.
func ParseEvent(payload []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	ev := Event{Kind: env.Kind, Message: env.Message, ID: env.ID, Patch: env.Patch, TS: env.TS}
	switch env.Kind {
	case EventInsert:
		if env.Message == nil {
			return Event{}, fmt.Errorf("insert event without message")
		}
	case EventUpdate:
		if env.ID == "" {
			return Event{}, fmt.Errorf("update event without id")
		}
		if ev.Patch == nil {
			ev.Patch = &MessagePatch{}
		}
		if env.PinSet {
			ev.Patch.Pin = OptionalPin{Set: true, Value: env.Pin}
		}
	case EventDelete:
		if env.ID == "" {
			return Event{}, fmt.Errorf("delete event without id")
		}
	default:
		return Event{}, fmt.Errorf("unrecognized event type: %q", env.Kind)
	}
	return ev, nil
}

// EncodeEvent is the inverse of ParseEvent.
func EncodeEvent(ev Event) ([]byte, error) {
	env := eventEnvelope{Kind: ev.Kind, Message: ev.Message, ID: ev.ID, Patch: ev.Patch, TS: ev.TS}
	if ev.Patch != nil && ev.Patch.Pin.Set {
		env.PinSet = true
		env.Pin = ev.Patch.Pin.Value
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}
