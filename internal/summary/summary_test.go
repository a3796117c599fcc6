package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timofeipermiakov/gpstrace/internal/enrich"
	"github.com/timofeipermiakov/gpstrace/internal/operator"
	"github.com/timofeipermiakov/gpstrace/internal/payload"
	"github.com/timofeipermiakov/gpstrace/internal/stop"
)

func f(v float64) *float64 { return &v }

func TestBuildCleaningSummaryCountsMatchInvariant(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.0000), Longitude: f(73.0000), Timestamp: 0},
		{Latitude: f(19.00001), Longitude: f(73.00001), Timestamp: 1000},
		{Latitude: f(19.00100), Longitude: f(73.00100), Timestamp: 2000},
	}})
	require.NoError(t, err)

	operator.RemoveNearby(tr, operator.DefaultRemoveNearbyConfig())
	enrich.Recompute(tr)

	cs := BuildCleaningSummary(tr, 1.5, CleaningSafety{})
	assert.Equal(t, 1, cs.Dropped)
	assert.Equal(t, 2, cs.Unchanged)
	assert.Equal(t, 2, cs.OutputNonNullPings)
	assert.Equal(t, 3, cs.InputNonNullPings)

	// Summary consistency (spec.md section 8): dropped + updated +
	// interpolated + unchanged == total pings (non-null output + dropped).
	total := cs.Dropped + cs.Updated + cs.Interpolated + cs.Unchanged
	assert.Equal(t, cs.OutputNonNullPings+cs.Dropped, total)
}

// TestBuildCleaningSummaryCountsOnlyNonNullRawCoords covers a trace where
// payload.Validate accepts a ping with a null raw coordinate (only one ping
// in the whole trace is required to carry a coordinate): InputNonNullPings
// must count actual coordinate presence, not just "not interpolated".
func TestBuildCleaningSummaryCountsOnlyNonNullRawCoords(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		{Timestamp: 1000}, // no coordinate at all
		{Latitude: f(19.1), Longitude: f(73.1), Timestamp: 2000},
	}})
	require.NoError(t, err)

	cs := BuildCleaningSummary(tr, 0, CleaningSafety{})
	assert.Equal(t, 2, cs.InputNonNullPings)
}

func TestBuildDistanceSummaryFlooredAtZero(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.000), Longitude: f(73.000), Timestamp: 0},
		{Latitude: f(19.001), Longitude: f(73.001), Timestamp: 1000},
	}})
	require.NoError(t, err)

	// Move a cleaned coordinate further away than the raw path, simulating
	// an interpolation-lengthened trace.
	tr.At(1).MarkUpdated(19.5, 73.5, "test")

	ds := BuildDistanceSummary(tr)
	assert.GreaterOrEqual(t, ds.CleanedDistanceM, ds.RawDistanceM)
	assert.Equal(t, 0.0, ds.ReductionM)
	assert.Equal(t, 0.0, ds.ReductionPct)
}

func TestBuildStopSummaryAggregatesGlobalInfo(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 150000},
		{Latitude: f(19.1), Longitude: f(73.1), Timestamp: 300000},
	}})
	require.NoError(t, err)

	events := stop.Detect(tr, stop.DefaultConfig())
	require.Len(t, events, 1)

	ss := BuildStopSummary(tr, events)
	require.Len(t, ss.Events, 1)
	assert.Equal(t, int64(150), ss.Events[0].DurationSeconds)
	assert.Equal(t, int64(300), ss.Global.TotalTraceTimeSeconds)
	assert.Greater(t, ss.Global.StopEventsPercentage, 0.0)
}
