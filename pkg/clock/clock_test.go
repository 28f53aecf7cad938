package clock_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/clock"
)

func TestSim_Advance(t *testing.T) {
	start := time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC)
	sim := clock.NewSim(start)

	require.NoError(t, sim.Advance(90*time.Minute))
	assert.Equal(t, start.Add(90*time.Minute), sim.Now())

	err := sim.Advance(-time.Second)
	assert.True(t, errors.Is(err, clock.ErrBackwards))
	assert.Equal(t, start.Add(90*time.Minute), sim.Now())
}

func TestSim_Set(t *testing.T) {
	start := time.Date(2024, 2, 13, 8, 0, 0, 0, time.UTC)
	sim := clock.NewSim(start)

	require.NoError(t, sim.Set(start.Add(time.Hour)))
	assert.Equal(t, start.Add(time.Hour), sim.Now())

	err := sim.Set(start)
	assert.ErrorIs(t, err, clock.ErrBackwards)
}

func TestFormatParse(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ts := time.Date(2024, 2, 13, 9, 5, 7, 0, loc)
	sim := clock.NewSim(ts)

	s := clock.Format(ts)
	assert.Equal(t, "20240213-09:05:07", s)

	parsed, err := clock.Parse(s, sim)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
	assert.Equal(t, loc, parsed.Location())

	_, err = clock.Parse("2024-02-13", sim)
	assert.Error(t, err)
}

func TestParse_NilClockUsesUTC(t *testing.T) {
	parsed, err := clock.Parse("20240213-09:05:07", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}
