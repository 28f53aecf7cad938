package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/oceanbase/agentmem-go/pkg/clock"
)

// Action is a time-bounded activity built around a primary Event and an
// optional object Event (the thing or place being used).
type Action struct {
	// Event is the primary activity, e.g. drinking coffee.
	Event *Event

	// ObjEvent describes the object of the activity, or nil.
	ObjEvent *Event

	// Start is when the activity began.
	Start time.Time

	// Duration is the length of the activity in minutes; 0 is instantaneous.
	Duration int

	end time.Time
}

// ActionOption configures NewAction.
type ActionOption func(*Action)

// WithObjectEvent sets the secondary event.
func WithObjectEvent(obj *Event) ActionOption {
	return func(a *Action) {
		a.ObjEvent = obj
	}
}

// WithStart sets the start time. The zero time means "now".
func WithStart(start time.Time) ActionOption {
	return func(a *Action) {
		a.Start = start
	}
}

// WithDuration sets the duration in minutes. Negative values become 0.
func WithDuration(minutes int) ActionOption {
	return func(a *Action) {
		a.Duration = minutes
	}
}

// NewAction creates an Action around event, which must not be nil.
//
// Start defaults to clk.Now(), or wall time when clk is nil. Start is
// truncated to whole seconds, the precision of the serialized record. The
// end time is fixed here and not recomputed if Start or Duration change later.
func NewAction(clk clock.Clock, event *Event, opts ...ActionOption) *Action {
	if clk == nil {
		clk = clock.Wall{}
	}
	a := &Action{Event: event}
	for _, opt := range opts {
		opt(a)
	}
	if a.Start.IsZero() {
		a.Start = clk.Now()
	}
	a.Start = a.Start.Truncate(time.Second)
	if a.Duration < 0 {
		a.Duration = 0
	}
	a.end = a.Start.Add(time.Duration(a.Duration) * time.Minute)
	return a
}

// End returns start + duration as computed at construction.
func (a *Action) End() time.Time {
	return a.end
}

// Finished reports whether the activity is over at clk.Now().
//
// Instantaneous actions and actions whose event has no address (thinking,
// planning) are always finished. A nil clk reads wall time.
func (a *Action) Finished(clk clock.Clock) bool {
	if a.Duration == 0 {
		return true
	}
	if a.Event == nil || !a.Event.HasAddress() {
		return true
	}
	if clk == nil {
		clk = clock.Wall{}
	}
	return clk.Now().After(a.end)
}

// Summary is a read-only projection of an Action.
type Summary struct {
	// Status is "<label> [<start>~<end>]".
	Status string `json:"status"`

	// Event is the rendered primary event.
	Event string `json:"event"`

	// Object is the rendered object event, empty when absent.
	Object string `json:"object,omitempty"`
}

// Summary describes the action's state at clk.Now().
func (a *Action) Summary(clk clock.Clock) Summary {
	vocab := Chinese
	if a.Event != nil {
		vocab = a.Event.Vocabulary()
	}
	label := vocab.InProgress
	if a.Finished(clk) {
		label = vocab.Finished
	}
	s := Summary{
		Status: fmt.Sprintf("%s [%s~%s]", label,
			a.Start.Format(clock.ShortLayout), a.end.Format(clock.ShortLayout)),
	}
	if a.Event != nil {
		s.Event = a.Event.String()
	}
	if a.ObjEvent != nil {
		s.Object = a.ObjEvent.String()
	}
	return s
}

// Format renders the summary as "key: value" lines.
func (a *Action) Format(clk clock.Clock) string {
	s := a.Summary(clk)
	lines := []string{"status: " + s.Status, "event: " + s.Event}
	if s.Object != "" {
		lines = append(lines, "object: "+s.Object)
	}
	return strings.Join(lines, "\n")
}
