package stop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timofeipermiakov/gpstrace/internal/payload"
)

func f(v float64) *float64 { return &v }

// jitteredStopThenStraightLine builds 10 pings clustered within a few
// meters of (19.0, 73.0) over 300s, followed by 10 pings moving steadily
// away, matching spec.md's scenario 6.
func jitteredStopThenStraightLine(t *testing.T) []payload.PingInput {
	t.Helper()
	var out []payload.PingInput
	jitter := []float64{0, 0.00001, -0.00001, 0.000015, -0.000015, 0.00002, -0.00002, 0.00001, -0.00001, 0}
	for i := 0; i < 10; i++ {
		out = append(out, payload.PingInput{
			Latitude:  f(19.0 + jitter[i]),
			Longitude: f(73.0 + jitter[i]),
			Timestamp: int64(i * 30000), // 0..270s
		})
	}
	for i := 0; i < 10; i++ {
		out = append(out, payload.PingInput{
			Latitude:  f(19.0 + float64(i+1)*0.01),
			Longitude: f(73.0),
			Timestamp: int64(300000 + i*10000),
		})
	}
	return out
}

func TestDetectFindsOneStopEvent(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: jitteredStopThenStraightLine(t)})
	require.NoError(t, err)

	events := Detect(tr, DefaultConfig())
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, 1, ev.SequenceNumber)
	assert.Len(t, ev.MemberPingIDs, 10)
	assert.InDelta(t, 19.0, ev.Representative.Lat, 0.001)
	assert.InDelta(t, 73.0, ev.Representative.Lon, 0.001)

	for i := 0; i < 10; i++ {
		p := tr.At(i)
		assert.True(t, p.StopEventStatus)
		assert.Equal(t, 1, p.StopEventSequenceNumber)
	}
	for i := 10; i < tr.Len(); i++ {
		assert.False(t, tr.At(i).StopEventStatus)
	}
}

func TestDetectNoStopWhenBelowMinStayingTime(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 5000},
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 10000},
	}})
	require.NoError(t, err)

	events := Detect(tr, DefaultConfig())
	assert.Empty(t, events)
}

// TestDetectMergesNearbyTemporalGroups covers the spatial-merge stage: two
// separate temporal candidates (broken apart by an excursion in between)
// whose medoids sit about 22m apart, well inside the default 50m merge
// threshold, must collapse into one final stop event.
func TestDetectMergesNearbyTemporalGroups(t *testing.T) {
	var pings []payload.PingInput
	for i := 0; i < 5; i++ {
		pings = append(pings, payload.PingInput{
			Latitude: f(19.0), Longitude: f(73.0), Timestamp: int64(i * 30000),
		})
	}
	pings = append(pings,
		payload.PingInput{Latitude: f(19.01), Longitude: f(73.01), Timestamp: 150000},
		payload.PingInput{Latitude: f(19.02), Longitude: f(73.02), Timestamp: 180000},
	)
	for i := 0; i < 5; i++ {
		pings = append(pings, payload.PingInput{
			Latitude: f(19.0002), Longitude: f(73.0), Timestamp: int64(210000 + i*30000),
		})
	}

	tr, err := payload.Validate(payload.Payload{Trace: pings})
	require.NoError(t, err)

	events := Detect(tr, DefaultConfig())
	require.Len(t, events, 1)
	assert.Len(t, events[0].MemberPingIDs, 10)
}

// TestDetectKeepsDistantTemporalGroupsSeparate is the negative case: the
// same shape as above but with the second cluster far enough away (over
// 50m) that it must remain its own stop event.
func TestDetectKeepsDistantTemporalGroupsSeparate(t *testing.T) {
	var pings []payload.PingInput
	for i := 0; i < 5; i++ {
		pings = append(pings, payload.PingInput{
			Latitude: f(19.0), Longitude: f(73.0), Timestamp: int64(i * 30000),
		})
	}
	pings = append(pings,
		payload.PingInput{Latitude: f(19.01), Longitude: f(73.01), Timestamp: 150000},
		payload.PingInput{Latitude: f(19.02), Longitude: f(73.02), Timestamp: 180000},
	)
	for i := 0; i < 5; i++ {
		pings = append(pings, payload.PingInput{
			Latitude: f(19.01), Longitude: f(73.0), Timestamp: int64(210000 + i*30000),
		})
	}

	tr, err := payload.Validate(payload.Payload{Trace: pings})
	require.NoError(t, err)

	events := Detect(tr, DefaultConfig())
	require.Len(t, events, 2)
}

func TestDetectNoStopWhenBelowMinSize(t *testing.T) {
	tr, err := payload.Validate(payload.Payload{Trace: []payload.PingInput{
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 0},
		{Latitude: f(19.1), Longitude: f(73.1), Timestamp: 200000},
		{Latitude: f(19.2), Longitude: f(73.2), Timestamp: 400000},
	}})
	require.NoError(t, err)

	events := Detect(tr, DefaultConfig())
	assert.Empty(t, events)
}
