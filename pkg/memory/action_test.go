package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/clock"
	"github.com/oceanbase/agentmem-go/pkg/memory"
)

var t0 = time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC)

func brewing() *memory.Event {
	return memory.NewEvent("Isabella",
		memory.WithPredicate("is"),
		memory.WithObject("brewing coffee"),
		memory.WithAddress("cafe", "counter", "coffee machine"))
}

func TestNewAction_Defaults(t *testing.T) {
	sim := clock.NewSim(t0)
	act := memory.NewAction(sim, brewing())

	assert.Equal(t, t0, act.Start)
	assert.Equal(t, 0, act.Duration)
	assert.Equal(t, t0, act.End())
	assert.Nil(t, act.ObjEvent)
}

func TestNewAction_NilClockAndEvent(t *testing.T) {
	before := time.Now().Truncate(time.Second)
	act := memory.NewAction(nil, brewing(), memory.WithDuration(30))
	assert.False(t, act.Start.Before(before))
	assert.Zero(t, act.Start.Nanosecond())
	assert.False(t, act.Finished(nil))

	bare := memory.NewAction(clock.NewSim(t0), nil, memory.WithDuration(30))
	assert.True(t, bare.Finished(nil))
	s := bare.Summary(nil)
	assert.Equal(t, "已完成 [20240213-08:00~20240213-08:30]", s.Status)
	assert.Empty(t, s.Event)
}

func TestNewAction_NegativeDuration(t *testing.T) {
	sim := clock.NewSim(t0)
	act := memory.NewAction(sim, brewing(), memory.WithDuration(-5))

	assert.Equal(t, 0, act.Duration)
	assert.True(t, act.Finished(sim))
}

func TestAction_InstantaneousIsFinished(t *testing.T) {
	sim := clock.NewSim(t0)
	act := memory.NewAction(sim, brewing(), memory.WithDuration(0))
	assert.True(t, act.Finished(sim))
}

func TestAction_AddresslessIsFinished(t *testing.T) {
	sim := clock.NewSim(t0)
	thinking := memory.NewEvent("Isabella", memory.WithPredicate("is"), memory.WithObject("planning a party"))
	act := memory.NewAction(sim, thinking, memory.WithDuration(10000))

	assert.Equal(t, act.Start, sim.Now())
	assert.True(t, act.Finished(sim))
}

func TestAction_FinishedIsStrictlyAfterEnd(t *testing.T) {
	sim := clock.NewSim(t0)
	act := memory.NewAction(sim, brewing(), memory.WithDuration(30))

	assert.False(t, act.Finished(sim))

	require.NoError(t, sim.Set(t0.Add(30*time.Minute)))
	assert.False(t, act.Finished(sim), "finished only once now exceeds end")

	require.NoError(t, sim.Advance(time.Second))
	assert.True(t, act.Finished(sim))
}

func TestAction_EndIsFixedAtConstruction(t *testing.T) {
	sim := clock.NewSim(t0)
	act := memory.NewAction(sim, brewing(), memory.WithDuration(30))

	act.Duration = 120
	act.Start = t0.Add(time.Hour)
	assert.Equal(t, t0.Add(30*time.Minute), act.End())
}

func TestAction_Summary(t *testing.T) {
	sim := clock.NewSim(t0)
	cup := memory.NewEvent("coffee machine",
		memory.WithPredicate("is"),
		memory.WithObject("brewing"),
		memory.WithAddress("cafe", "counter", "coffee machine"))
	act := memory.NewAction(sim, brewing(),
		memory.WithObjectEvent(cup),
		memory.WithStart(t0),
		memory.WithDuration(30))

	s := act.Summary(sim)
	assert.Equal(t, "进行中 [20240213-08:00~20240213-08:30]", s.Status)
	assert.Equal(t, "Isabella is brewing coffee @ cafe:counter:coffee machine", s.Event)
	assert.Equal(t, "coffee machine is brewing @ cafe:counter:coffee machine", s.Object)

	require.NoError(t, sim.Advance(time.Hour))
	assert.Equal(t, "已完成 [20240213-08:00~20240213-08:30]", act.Summary(sim).Status)
}

func TestAction_Format(t *testing.T) {
	sim := clock.NewSim(t0)
	ev := memory.NewEvent("Isabella",
		memory.WithVocabulary(memory.English),
		memory.WithPredicate("is"),
		memory.WithObject("brewing coffee"),
		memory.WithAddress("cafe", "counter"))
	act := memory.NewAction(sim, ev, memory.WithDuration(15))

	expected := "status: in progress [20240213-08:00~20240213-08:15]\n" +
		"event: Isabella is brewing coffee @ cafe:counter"
	assert.Equal(t, expected, act.Format(sim))
}
