package memory

import (
	"hash/fnv"
	"strings"
)

// AddressSeparator joins address segments in rendered and hashed forms.
const AddressSeparator = ":"

// Event is a subject-predicate-object fact with an optional description and
// location.
//
// The identity of an Event is its content: subject, predicate, object,
// description and the joined address. Emoji is decorative and never part of
// the identity. Update changes the identity, so an Event used as a map key
// must be re-indexed (see Journal).
type Event struct {
	subject     string
	predicate   string
	object      string
	description string
	address     []string
	emoji       string
	vocab       Vocabulary
}

// Key is the comparable content identity of an Event.
type Key struct {
	Subject     string
	Predicate   string
	Object      string
	Description string
	Address     string
}

// EventOption configures NewEvent.
type EventOption func(*Event)

// WithPredicate sets the predicate. Empty values keep the vocabulary default.
func WithPredicate(predicate string) EventOption {
	return func(e *Event) {
		e.predicate = predicate
	}
}

// WithObject sets the object. Empty values keep the vocabulary default.
func WithObject(object string) EventOption {
	return func(e *Event) {
		e.object = object
	}
}

// WithDescription sets a free-text description that overrides rendering.
func WithDescription(description string) EventOption {
	return func(e *Event) {
		e.description = description
	}
}

// WithAddress sets the location path, root first.
func WithAddress(address ...string) EventOption {
	return func(e *Event) {
		e.address = append([]string(nil), address...)
	}
}

// WithEmoji sets the decorative emoji tag.
func WithEmoji(emoji string) EventOption {
	return func(e *Event) {
		e.emoji = emoji
	}
}

// WithVocabulary selects the default tokens used for empty fields.
func WithVocabulary(v Vocabulary) EventOption {
	return func(e *Event) {
		e.vocab = v
	}
}

// NewEvent creates an Event. It never fails: missing fields get defaults.
//
// Example:
//
//	ev := memory.NewEvent("Isabella",
//	    memory.WithPredicate("is"),
//	    memory.WithObject("brewing coffee"),
//	    memory.WithAddress("cafe", "counter", "coffee machine"),
//	)
func NewEvent(subject string, opts ...EventOption) *Event {
	e := &Event{subject: subject, vocab: Chinese}
	for _, opt := range opts {
		opt(e)
	}
	e.vocab = e.vocab.orDefault()
	e.predicate = e.orCurrently(e.predicate)
	e.object = e.orIdle(e.object)
	if e.address == nil {
		e.address = []string{}
	}
	return e
}

// EventFromList builds an Event from (subject, predicate, object[, description]).
func EventFromList(fields []string, opts ...EventOption) (*Event, error) {
	if len(fields) < 3 {
		return nil, newFieldError("EventFromList", "", ErrInvalidInput)
	}
	all := []EventOption{WithPredicate(fields[1]), WithObject(fields[2])}
	if len(fields) > 3 {
		all = append(all, WithDescription(fields[3]))
	}
	return NewEvent(fields[0], append(all, opts...)...), nil
}

// Subject returns the acting entity.
func (e *Event) Subject() string { return e.subject }

// Predicate returns the verb.
func (e *Event) Predicate() string { return e.predicate }

// Object returns the object.
func (e *Event) Object() string { return e.object }

// Description returns the free-text description, possibly empty.
func (e *Event) Description() string { return e.description }

// Emoji returns the decorative emoji tag.
func (e *Event) Emoji() string { return e.emoji }

// Vocabulary returns the tokens the event was built with.
func (e *Event) Vocabulary() Vocabulary { return e.vocab }

// Address returns a copy of the location path.
func (e *Event) Address() []string {
	return append([]string{}, e.address...)
}

// HasAddress reports whether the event happens at a physical location.
func (e *Event) HasAddress() bool {
	return len(e.address) > 0
}

// AddressString returns the address joined with AddressSeparator.
func (e *Event) AddressString() string {
	return strings.Join(e.address, AddressSeparator)
}

// String renders the event, followed by " @ <address>" when located.
func (e *Event) String() string {
	des := e.description
	if des == "" {
		des = e.subject + " " + e.predicate + " " + e.object
	}
	if len(e.address) > 0 {
		des += " @ " + e.AddressString()
	}
	return des
}

// Describe renders the event without its address.
//
// With withSubject the subject is prefixed, unless the text already mentions
// it. Without it, a leading "<subject> " is stripped.
func (e *Event) Describe(withSubject bool) string {
	des := e.description
	if des == "" {
		des = e.predicate + " " + e.object
	}
	if withSubject {
		if !strings.Contains(des, e.subject) {
			return e.subject + " " + des
		}
		return des
	}
	return strings.TrimPrefix(des, e.subject+" ")
}

// Matches reports whether every non-empty filter equals the event's field.
func (e *Event) Matches(subject, predicate, object string) bool {
	if subject != "" && e.subject != subject {
		return false
	}
	if predicate != "" && e.predicate != predicate {
		return false
	}
	if object != "" && e.object != object {
		return false
	}
	return true
}

// Update overwrites predicate, object and description in place.
//
// Empty predicate/object reset to the vocabulary defaults; an empty
// description keeps the current one.
func (e *Event) Update(predicate, object, description string) {
	e.predicate = e.orCurrently(predicate)
	e.object = e.orIdle(object)
	if description != "" {
		e.description = description
	}
}

// Key returns the content identity.
func (e *Event) Key() Key {
	return Key{
		Subject:     e.subject,
		Predicate:   e.predicate,
		Object:      e.object,
		Description: e.description,
		Address:     e.AddressString(),
	}
}

// Hash returns a 64-bit hash of Key. Equal events have equal hashes.
func (e *Event) Hash() uint64 {
	k := e.Key()
	h := fnv.New64a()
	for _, part := range []string{k.Subject, k.Predicate, k.Object, k.Description, k.Address} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Equal reports whether both events have the same identity.
func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Key() == other.Key()
}

// Clone returns a deep copy.
func (e *Event) Clone() *Event {
	c := *e
	c.address = e.Address()
	return &c
}

func (e *Event) orCurrently(predicate string) string {
	if predicate == "" {
		return e.vocab.Currently
	}
	return predicate
}

func (e *Event) orIdle(object string) string {
	if object == "" {
		return e.vocab.Idle
	}
	return object
}
