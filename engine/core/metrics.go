package core

import "sync"

const AVG_COUNT uint8 = 30

// MetricsState accumulates pipeline counters for the whole process.
// Decimation timings keep a rolling average over the last AVG_COUNT runs.
type MetricsState struct {
	DecimationAVGCounter uint8
	MStimes              [AVG_COUNT]float64
	MSavg                float64

	Activations   int64
	Decimations   int64
	Skips         int64
	Failures      int64
	FacesRemoved  int64
	ResidentBytes int64
}

var onceMetrics sync.Once
var metricsMu sync.Mutex
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

// MetricsActivation records one activation attempt.
func MetricsActivation() {
	if metricsState == nil {
		return
	}
	metricsMu.Lock()
	metricsState.Activations++
	metricsMu.Unlock()
}

// MetricsSkip records a budget-driven skip decision.
func MetricsSkip() {
	if metricsState == nil {
		return
	}
	metricsMu.Lock()
	metricsState.Skips++
	metricsMu.Unlock()
}

// MetricsFailure records a terminal pipeline failure.
func MetricsFailure() {
	if metricsState == nil {
		return
	}
	metricsMu.Lock()
	metricsState.Failures++
	metricsMu.Unlock()
}

// MetricsDecimation records one completed decimation: elapsed time in
// seconds, how many faces the collapse removed, and the byte footprint of
// the mesh now resident.
func MetricsDecimation(elapsed float64, facesRemoved int, residentBytes int) {
	if metricsState == nil {
		return
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()

	ms := elapsed * 1000.0
	metricsState.MStimes[metricsState.DecimationAVGCounter] = ms
	if metricsState.DecimationAVGCounter == AVG_COUNT-1 {
		sum := 0.0
		for i := uint8(0); i < AVG_COUNT; i++ {
			sum += metricsState.MStimes[i]
		}
		metricsState.MSavg = sum / float64(AVG_COUNT)
	}
	metricsState.DecimationAVGCounter++
	metricsState.DecimationAVGCounter %= AVG_COUNT

	metricsState.Decimations++
	metricsState.FacesRemoved += int64(facesRemoved)
	metricsState.ResidentBytes += int64(residentBytes)
}

// MetricsRelease subtracts the byte footprint of a mesh dropped from a
// view slot.
func MetricsRelease(residentBytes int) {
	if metricsState == nil {
		return
	}
	metricsMu.Lock()
	metricsState.ResidentBytes -= int64(residentBytes)
	if metricsState.ResidentBytes < 0 {
		metricsState.ResidentBytes = 0
	}
	metricsMu.Unlock()
}

// MetricsSnapshot returns a copy of the current counters.
func MetricsSnapshot() MetricsState {
	if metricsState == nil {
		return MetricsState{}
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return *metricsState
}
