package memory_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/clock"
	"github.com/oceanbase/agentmem-go/pkg/memory"
)

func TestMarshalEvent_FieldNames(t *testing.T) {
	ev := memory.NewEvent("Klaus",
		memory.WithPredicate("is"),
		memory.WithObject("reading"),
		memory.WithAddress("town", "library"),
		memory.WithEmoji("📚"))

	data, err := memory.MarshalEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"subject":"Klaus","predicate":"is","object":"reading","describe":"","address":["town","library"],"emoji":"📚"}`,
		string(data))

	data, err = memory.MarshalEvent(memory.NewEvent("Klaus"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"address":[]`)
}

func TestEvent_RoundTrip(t *testing.T) {
	events := []*memory.Event{
		memory.NewEvent(""),
		memory.NewEvent("", memory.WithDescription("someone knocks")),
		memory.NewEvent("Klaus"),
		memory.NewEvent("Klaus", memory.WithPredicate("is"), memory.WithObject("reading")),
		memory.NewEvent("Klaus",
			memory.WithPredicate("is"),
			memory.WithObject("reading"),
			memory.WithDescription("Klaus is reading a paper"),
			memory.WithAddress("town", "library", "desk"),
			memory.WithEmoji("📚")),
	}

	for _, ev := range events {
		data, err := memory.MarshalEvent(ev)
		require.NoError(t, err)

		decoded, err := memory.UnmarshalEvent(data)
		require.NoError(t, err)
		assert.True(t, ev.Equal(decoded), ev.String())
		assert.Equal(t, ev.Emoji(), decoded.Emoji())
		if diff := cmp.Diff(ev.Record(), decoded.Record()); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestMarshalAction_Format(t *testing.T) {
	sim := clock.NewSim(time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC))
	act := memory.NewAction(sim, brewing(), memory.WithDuration(30))

	data, err := memory.MarshalAction(act)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "20240213-08:00:00", raw["start"])
	assert.Equal(t, float64(30), raw["duration"])
	assert.Nil(t, raw["obj_event"])
	assert.Contains(t, raw, "obj_event")
	assert.NotContains(t, raw, "end")
	assert.Len(t, raw, 4)
}

func TestAction_RoundTrip(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	start := time.Date(2024, 2, 13, 8, 0, 0, 0, loc)
	sim := clock.NewSim(start)

	cup := memory.NewEvent("coffee machine", memory.WithPredicate("is"), memory.WithObject("brewing"))
	act := memory.NewAction(sim, brewing(), memory.WithObjectEvent(cup), memory.WithDuration(30))

	data, err := memory.MarshalAction(act)
	require.NoError(t, err)

	decoded, err := memory.UnmarshalAction(data, sim)
	require.NoError(t, err)

	assert.True(t, act.Start.Equal(decoded.Start))
	assert.Equal(t, loc, decoded.Start.Location())
	assert.True(t, act.End().Equal(decoded.End()))
	assert.True(t, act.Event.Equal(decoded.Event))
	assert.True(t, act.ObjEvent.Equal(decoded.ObjEvent))

	for _, offset := range []time.Duration{0, 30 * time.Minute, 31 * time.Minute} {
		require.NoError(t, sim.Set(start.Add(offset)))
		assert.Equal(t, act.Finished(sim), decoded.Finished(sim), offset.String())
	}
}

func TestAction_RoundTripSubSecondStart(t *testing.T) {
	start := time.Date(2024, 2, 13, 8, 0, 0, 700*int(time.Millisecond), time.UTC)
	sim := clock.NewSim(start)
	act := memory.NewAction(sim, brewing(), memory.WithDuration(1))
	assert.Equal(t, time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC), act.Start)

	data, err := memory.MarshalAction(act)
	require.NoError(t, err)
	decoded, err := memory.UnmarshalAction(data, sim)
	require.NoError(t, err)
	assert.True(t, act.End().Equal(decoded.End()))

	for _, offset := range []time.Duration{59 * time.Second, 59900 * time.Millisecond, 60 * time.Second, 61 * time.Second} {
		require.NoError(t, sim.Set(start.Add(offset)))
		assert.Equal(t, act.Finished(sim), decoded.Finished(sim), offset.String())
	}
}

func TestActionFromRecord_Errors(t *testing.T) {
	sim := clock.NewSim(time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC))
	ev := brewing().Record()

	tests := []struct {
		name   string
		record *memory.ActionRecord
		field  string
		err    error
	}{
		{"nil record", nil, "event", memory.ErrMissingField},
		{"missing event", &memory.ActionRecord{Start: "20240213-08:00:00"}, "event", memory.ErrMissingField},
		{"missing start", &memory.ActionRecord{Event: ev}, "start", memory.ErrMissingField},
		{"malformed start", &memory.ActionRecord{Event: ev, Start: "2024-02-13 08:00"}, "start", memory.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := memory.ActionFromRecord(tt.record, sim)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))

			var fe *memory.FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestUnmarshalAction_MissingEvent(t *testing.T) {
	sim := clock.NewSim(time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC))
	_, err := memory.UnmarshalAction([]byte(`{"start":"20240213-08:00:00","duration":5}`), sim)
	assert.ErrorIs(t, err, memory.ErrMissingField)

	_, err = memory.UnmarshalAction([]byte(`not json`), sim)
	assert.Error(t, err)
}

func TestUnmarshal_SubjectKeyRequired(t *testing.T) {
	sim := clock.NewSim(time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC))

	tests := []struct {
		name      string
		unmarshal func() error
		wantErr   bool
	}{
		{"event without subject", func() error {
			_, err := memory.UnmarshalEvent([]byte(`{"predicate":"is","object":"idle"}`))
			return err
		}, true},
		{"event with empty subject", func() error {
			_, err := memory.UnmarshalEvent([]byte(`{"subject":"","predicate":"is"}`))
			return err
		}, false},
		{"action event without subject", func() error {
			_, err := memory.UnmarshalAction([]byte(`{"event":{"predicate":"is"},"start":"20240213-08:00:00"}`), sim)
			return err
		}, true},
		{"action object without subject", func() error {
			_, err := memory.UnmarshalAction([]byte(`{"event":{"subject":"Klaus"},"obj_event":{},"start":"20240213-08:00:00"}`), sim)
			return err
		}, true},
		{"action with empty subjects", func() error {
			_, err := memory.UnmarshalAction([]byte(`{"event":{"subject":""},"obj_event":null,"start":"20240213-08:00:00"}`), sim)
			return err
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.unmarshal()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, memory.ErrMissingField)
			var fe *memory.FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "subject", fe.Field)
		})
	}
}
