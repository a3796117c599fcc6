package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func basicTrace() []PingInput {
	return []PingInput{
		{Latitude: f(19.0000), Longitude: f(73.0000), Timestamp: 0},
		{Latitude: f(19.00001), Longitude: f(73.00001), Timestamp: 1000},
		{Latitude: f(19.00100), Longitude: f(73.00100), Timestamp: 2000},
	}
}

func TestValidateSynthesizesPingIDs(t *testing.T) {
	tr, err := Validate(Payload{Trace: basicTrace()})
	require.NoError(t, err)
	require.Equal(t, 3, tr.Len())
	assert.Equal(t, "p1", tr.At(0).PingID)
	assert.Equal(t, "p2", tr.At(1).PingID)
	assert.Equal(t, "p3", tr.At(2).PingID)
}

func TestValidateDefaultsVehicleFields(t *testing.T) {
	tr, err := Validate(Payload{Trace: basicTrace()})
	require.NoError(t, err)
	assert.Equal(t, "car", tr.VehicleType)
	assert.Equal(t, 25.0, tr.VehicleSpeed)
}

func TestValidateRejectsMixedPingIDPresence(t *testing.T) {
	trc := basicTrace()
	trc[0].PingID = s("a")

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
	var ve *xerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "ping_id", ve.Field)
}

func TestValidateRejectsEmptyPingID(t *testing.T) {
	trc := basicTrace()
	for i := range trc {
		trc[i].PingID = s("")
	}

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
}

func TestValidateRejectsDuplicatePingID(t *testing.T) {
	trc := basicTrace()
	trc[0].PingID = s("dup")
	trc[1].PingID = s("dup")
	trc[2].PingID = s("other")

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
}

func TestValidateRejectsLatitudeOutOfRange(t *testing.T) {
	trc := basicTrace()
	trc[0].Latitude = f(95.0)

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
	var ve *xerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "latitude", ve.Field)
	assert.Equal(t, 0, ve.Index)
}

func TestValidateRejectsOutOfOrderTimestamps(t *testing.T) {
	trc := basicTrace()
	trc[0].Timestamp = 1000
	trc[1].Timestamp = 500

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
	var oe *xerrors.OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 1, oe.Index)
	assert.Equal(t, int64(1000), oe.PrevTime)
	assert.Equal(t, int64(500), oe.Timestamp)
}

func TestValidateAllowsTiedTimestamps(t *testing.T) {
	trc := basicTrace()
	trc[1].Timestamp = trc[0].Timestamp

	_, err := Validate(Payload{Trace: trc})
	require.NoError(t, err)
}

func TestValidateRejectsAllNullCoordinates(t *testing.T) {
	trc := []PingInput{
		{Timestamp: 0},
		{Timestamp: 1000},
	}

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
}

func TestValidateDoesNotSortInput(t *testing.T) {
	// Even though timestamps would sort cleanly, the validator must take
	// input order as given and report OrderError rather than silently
	// reordering.
	trc := []PingInput{
		{Latitude: f(19.0), Longitude: f(73.0), Timestamp: 2000},
		{Latitude: f(19.1), Longitude: f(73.1), Timestamp: 1000},
	}

	_, err := Validate(Payload{Trace: trc})
	require.Error(t, err)
	var oe *xerrors.OrderError
	require.ErrorAs(t, err, &oe)
}

func TestValidatePreservesExplicitPingIDs(t *testing.T) {
	trc := basicTrace()
	trc[0].PingID = s("a")
	trc[1].PingID = s("b")
	trc[2].PingID = s("c")

	tr, err := Validate(Payload{Trace: trc})
	require.NoError(t, err)
	assert.Equal(t, "a", tr.At(0).PingID)
	assert.Equal(t, "b", tr.At(1).PingID)
	assert.Equal(t, "c", tr.At(2).PingID)
}
