package trace

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
)

func f(v float64) *float64 { return &v }

func newTestPing(id string, lat, lon float64, ts int64) *ping.Cleaned {
	return ping.New(ping.Raw{PingID: id, Latitude: f(lat), Longitude: f(lon), Timestamp: ts})
}

func TestNewIndexesByPingID(t *testing.T) {
	tr := New([]*ping.Cleaned{
		newTestPing("p1", 19.0, 73.0, 0),
		newTestPing("p2", 19.1, 73.1, 1000),
		newTestPing("p3", 19.2, 73.2, 2000),
	}, "car", 25)

	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, 0, tr.IndexOf("p1"))
	assert.Equal(t, 1, tr.IndexOf("p2"))
	assert.Equal(t, 2, tr.IndexOf("p3"))
	assert.Equal(t, -1, tr.IndexOf("missing"))
}

func TestInsertAfterShiftsSubsequentIndices(t *testing.T) {
	tr := New([]*ping.Cleaned{
		newTestPing("p1", 19.0, 73.0, 0),
		newTestPing("p2", 19.2, 73.2, 2000),
	}, "car", 25)

	tr.InsertAfter(0, newTestPing("p1_1", 19.1, 73.1, 1000))

	require.Equal(t, 3, tr.Len())
	assert.Equal(t, "p1", tr.At(0).PingID)
	assert.Equal(t, "p1_1", tr.At(1).PingID)
	assert.Equal(t, "p2", tr.At(2).PingID)
	assert.Equal(t, 1, tr.IndexOf("p1_1"))
	assert.Equal(t, 2, tr.IndexOf("p2"))
}

func TestNeighborsSkipsDroppedPings(t *testing.T) {
	dropped := newTestPing("p2", 19.1, 73.1, 1000)
	dropped.MarkDropped("test")

	tr := New([]*ping.Cleaned{
		newTestPing("p1", 19.0, 73.0, 0),
		dropped,
		newTestPing("p3", 19.2, 73.2, 2000),
		newTestPing("p4", 19.3, 73.3, 3000),
	}, "car", 25)

	sel := tr.Neighbors(1)
	assert.False(t, sel.OK, "dropped ping itself has no cleaned coord to select from")

	sel = tr.Neighbors(2)
	assert.True(t, sel.OK)
	assert.Equal(t, 0, sel.PrevIdx)
	assert.Equal(t, geo.Coord{Lat: 19.0, Lon: 73.0}, sel.Prev)
}

func TestDistanceSoFarAndDurationReflectLastPing(t *testing.T) {
	p0 := newTestPing("p1", 19.0, 73.0, 0)
	p1 := newTestPing("p2", 19.1, 73.1, 5000)
	p1.CumulativeDistanceM = 123.4
	p1.CumulativeTimeMs = 5000

	tr := New([]*ping.Cleaned{p0, p1}, "car", 25)
	assert.Equal(t, 123.4, tr.DistanceSoFar())
	assert.Equal(t, int64(5000), tr.Duration())
}

func TestEmptyTraceDistanceAndDurationAreZero(t *testing.T) {
	tr := New(nil, "car", 25)
	assert.Equal(t, 0.0, tr.DistanceSoFar())
	assert.Equal(t, int64(0), tr.Duration())
}

// TestCoordOfMatchesStructFields uses go-cmp instead of a field-by-field
// assertion to pin the full geo.Coord shape returned by CoordOf, so a future
// field addition to geo.Coord fails this test rather than silently going
// unchecked.
func TestCoordOfMatchesStructFields(t *testing.T) {
	tr := New([]*ping.Cleaned{newTestPing("p1", 19.0, 73.0, 0)}, "car", 25)

	got, ok := tr.CoordOf(0)
	require.True(t, ok)
	want := geo.Coord{Lat: 19.0, Lon: 73.0}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("CoordOf mismatch (-want +got):\n%s", diff)
	}
}
