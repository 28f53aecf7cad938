package memory

import (
	"encoding/json"

	"github.com/oceanbase/agentmem-go/pkg/clock"
)

// EventRecord is the serialized form of an Event.
//
// Field names are shared with previously saved agent state and must not change.
type EventRecord struct {
	Subject   string   `json:"subject"`
	Predicate string   `json:"predicate"`
	Object    string   `json:"object"`
	Describe  string   `json:"describe"`
	Address   []string `json:"address"`
	Emoji     string   `json:"emoji"`
}

// ActionRecord is the serialized form of an Action. The end time is derived
// on load and never stored.
type ActionRecord struct {
	Event    *EventRecord `json:"event"`
	ObjEvent *EventRecord `json:"obj_event"`
	Start    string       `json:"start"`
	Duration int          `json:"duration"`
}

// Record converts the event to its serialized form. A nil event has no record.
func (e *Event) Record() *EventRecord {
	if e == nil {
		return nil
	}
	return &EventRecord{
		Subject:   e.subject,
		Predicate: e.predicate,
		Object:    e.object,
		Describe:  e.description,
		Address:   e.Address(),
		Emoji:     e.emoji,
	}
}

// EventFromRecord rebuilds an Event. An empty subject is valid; only a
// nil record is missing.
func EventFromRecord(r *EventRecord, opts ...EventOption) (*Event, error) {
	if r == nil {
		return nil, newFieldError("EventFromRecord", "event", ErrMissingField)
	}
	all := []EventOption{
		WithPredicate(r.Predicate),
		WithObject(r.Object),
		WithDescription(r.Describe),
		WithAddress(r.Address...),
		WithEmoji(r.Emoji),
	}
	return NewEvent(r.Subject, append(all, opts...)...), nil
}

// Record converts the action to its serialized form.
func (a *Action) Record() *ActionRecord {
	r := &ActionRecord{
		Event:    a.Event.Record(),
		Start:    clock.Format(a.Start),
		Duration: a.Duration,
	}
	if a.ObjEvent != nil {
		r.ObjEvent = a.ObjEvent.Record()
	}
	return r
}

// ActionFromRecord rebuilds an Action. The start time is parsed in the
// location of clk so it compares correctly against simulation time.
func ActionFromRecord(r *ActionRecord, clk clock.Clock, opts ...EventOption) (*Action, error) {
	const op = "ActionFromRecord"
	if r == nil || r.Event == nil {
		return nil, newFieldError(op, "event", ErrMissingField)
	}
	if r.Start == "" {
		return nil, newFieldError(op, "start", ErrMissingField)
	}
	event, err := EventFromRecord(r.Event, opts...)
	if err != nil {
		return nil, err
	}
	var obj *Event
	if r.ObjEvent != nil {
		if obj, err = EventFromRecord(r.ObjEvent, opts...); err != nil {
			return nil, err
		}
	}
	start, err := clock.Parse(r.Start, clk)
	if err != nil {
		return nil, &FieldError{Op: op, Field: "start", Err: ErrInvalidInput}
	}
	return NewAction(clk, event,
		WithObjectEvent(obj),
		WithStart(start),
		WithDuration(r.Duration),
	), nil
}

// MarshalEvent encodes the event as JSON.
func MarshalEvent(e *Event) ([]byte, error) {
	return json.Marshal(e.Record())
}

// UnmarshalEvent decodes a JSON event record. A record without a
// "subject" key is ErrMissingField.
func UnmarshalEvent(data []byte, opts ...EventOption) (*Event, error) {
	var r EventRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, newFieldError("UnmarshalEvent", "", err)
	}
	if err := requireSubject("UnmarshalEvent", data); err != nil {
		return nil, err
	}
	return EventFromRecord(&r, opts...)
}

// MarshalAction encodes the action as JSON.
func MarshalAction(a *Action) ([]byte, error) {
	return json.Marshal(a.Record())
}

// UnmarshalAction decodes a JSON action record.
func UnmarshalAction(data []byte, clk clock.Clock, opts ...EventOption) (*Action, error) {
	var r ActionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, newFieldError("UnmarshalAction", "", err)
	}

	var raw struct {
		Event    json.RawMessage `json:"event"`
		ObjEvent json.RawMessage `json:"obj_event"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newFieldError("UnmarshalAction", "", err)
	}
	if r.Event != nil {
		if err := requireSubject("UnmarshalAction", raw.Event); err != nil {
			return nil, err
		}
	}
	if r.ObjEvent != nil {
		if err := requireSubject("UnmarshalAction", raw.ObjEvent); err != nil {
			return nil, err
		}
	}
	return ActionFromRecord(&r, clk, opts...)
}

// requireSubject checks that the event object in data has a subject key,
// empty or not.
func requireSubject(op string, data json.RawMessage) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return newFieldError(op, "", err)
	}
	if _, ok := keys["subject"]; !ok {
		return newFieldError(op, "subject", ErrMissingField)
	}
	return nil
}
