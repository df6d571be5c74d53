package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	before := MetricsSnapshot()

	MetricsActivation()
	MetricsSkip()
	MetricsFailure()
	MetricsDecimation(0.010, 500, 4096)
	MetricsRelease(4096)

	after := MetricsSnapshot()
	assert.Equal(t, before.Activations+1, after.Activations)
	assert.Equal(t, before.Skips+1, after.Skips)
	assert.Equal(t, before.Failures+1, after.Failures)
	assert.Equal(t, before.Decimations+1, after.Decimations)
	assert.Equal(t, before.FacesRemoved+500, after.FacesRemoved)
	// Release balances the decimation's resident bytes.
	assert.Equal(t, before.ResidentBytes, after.ResidentBytes)
}

func TestMetricsResidentBytesNeverNegative(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	MetricsRelease(1 << 40)
	assert.GreaterOrEqual(t, MetricsSnapshot().ResidentBytes, int64(0))
}

func TestClockElapsed(t *testing.T) {
	c := NewClock()
	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()

	assert.Greater(t, c.ElapsedSeconds(), 0.0)
	assert.Less(t, c.ElapsedSeconds(), 5.0)

	// Stopped clocks no longer advance.
	c.Stop()
	elapsed := c.Elapsed()
	c.Update()
	assert.Equal(t, elapsed, c.Elapsed())
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := errors.Join(ErrMeshCorrupt, errors.New("face 12 out of range"))
	assert.ErrorIs(t, wrapped, ErrMeshCorrupt)
	assert.NotErrorIs(t, wrapped, ErrAssetNotFound)
	assert.NotErrorIs(t, ErrInvalidMesh, ErrMeshCorrupt)
}
