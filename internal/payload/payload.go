// Package payload validates an in-process trace payload and turns it into
// a constructed trace.Trace, assigning synthetic ping IDs when the input
// omits them.
package payload

import (
	"fmt"

	"github.com/timofeipermiakov/gpstrace/internal/ping"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

// MinUnixTimestampMs and MaxUnixTimestampMs bound valid input timestamps.
const (
	MinUnixTimestampMs int64 = 0
	MaxUnixTimestampMs int64 = 2145916800000 // 2038-01-01T00:00:00Z
)

// PingInput is a single ping as supplied by the caller, before
// validation and ID synthesis.
type PingInput struct {
	PingID      *string
	Latitude    *float64
	Longitude   *float64
	Timestamp   int64
	ErrorRadius *float64
	EventType   *string
	ForceRetain bool
	Metadata    map[string]any
}

// Payload is the top-level trace payload document (spec.md section 6.1).
type Payload struct {
	Trace       []PingInput
	VehicleType *string // default "car"
	// VehicleSpeed, in km/h, default 25.
	VehicleSpeed *float64
}

// Validate type- and range-checks the payload, synthesizes ping IDs when
// absent from all pings, and rejects mixed ID presence. It fails fast with
// ValidationError on the first violation, and reports OrderError if input
// timestamps are not non-decreasing. On success it returns a freshly built
// trace.Trace with cleaned == raw for every ping.
func Validate(doc Payload) (*trace.Trace, error) {
	if len(doc.Trace) == 0 {
		return nil, &xerrors.ValidationError{Field: "trace", Index: -1, Reason: "trace must contain at least one ping"}
	}

	anyCoord := false
	idsPresent := 0
	for i, p := range doc.Trace {
		if p.Latitude != nil {
			if *p.Latitude < -90 || *p.Latitude > 90 {
				return nil, &xerrors.ValidationError{Field: "latitude", Index: i, Reason: fmt.Sprintf("must be within [-90, 90], got %v", *p.Latitude)}
			}
		}
		if p.Longitude != nil {
			if *p.Longitude < -180 || *p.Longitude > 180 {
				return nil, &xerrors.ValidationError{Field: "longitude", Index: i, Reason: fmt.Sprintf("must be within [-180, 180], got %v", *p.Longitude)}
			}
		}
		if p.Latitude != nil && p.Longitude != nil {
			anyCoord = true
		}
		if p.Timestamp < MinUnixTimestampMs || p.Timestamp > MaxUnixTimestampMs {
			return nil, &xerrors.ValidationError{Field: "timestamp", Index: i, Reason: fmt.Sprintf("must be within [%d, %d] ms, got %d", MinUnixTimestampMs, MaxUnixTimestampMs, p.Timestamp)}
		}
		if p.ErrorRadius != nil && *p.ErrorRadius < 0 {
			return nil, &xerrors.ValidationError{Field: "error_radius", Index: i, Reason: "cannot be negative"}
		}
		if p.PingID != nil {
			if *p.PingID == "" {
				return nil, &xerrors.ValidationError{Field: "ping_id", Index: i, Reason: "cannot be an empty string"}
			}
			idsPresent++
		}
	}

	if !anyCoord {
		return nil, &xerrors.ValidationError{Field: "trace", Index: -1, Reason: "trace should have at least one ping with non-null latitude and longitude"}
	}
	if idsPresent != 0 && idsPresent != len(doc.Trace) {
		return nil, &xerrors.ValidationError{Field: "ping_id", Index: -1, Reason: "ping_id must be present in either all of the pings or in none of the pings"}
	}

	// I2: timestamps must be non-decreasing; ties are permitted.
	for i := 1; i < len(doc.Trace); i++ {
		if doc.Trace[i].Timestamp < doc.Trace[i-1].Timestamp {
			return nil, &xerrors.OrderError{Index: i, PrevTime: doc.Trace[i-1].Timestamp, Timestamp: doc.Trace[i].Timestamp}
		}
	}

	synthesize := idsPresent == 0
	seen := make(map[string]int, len(doc.Trace))
	cleaned := make([]*ping.Cleaned, 0, len(doc.Trace))
	for i, p := range doc.Trace {
		id := ""
		if synthesize {
			id = fmt.Sprintf("p%d", i+1)
		} else {
			id = *p.PingID
		}
		if prev, ok := seen[id]; ok {
			return nil, &xerrors.ValidationError{Field: "ping_id", Index: i, Reason: fmt.Sprintf("duplicate of ping_id %q already seen at index %d", id, prev)}
		}
		seen[id] = i

		meta := p.Metadata
		if meta == nil {
			meta = map[string]any{}
		}

		raw := ping.Raw{
			PingID:      id,
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Timestamp:   p.Timestamp,
			ErrorRadius: p.ErrorRadius,
			EventType:   p.EventType,
			ForceRetain: p.ForceRetain,
			Metadata:    meta,
		}
		cleaned = append(cleaned, ping.New(raw))
	}

	vehicleType := "car"
	if doc.VehicleType != nil {
		vehicleType = *doc.VehicleType
	}
	vehicleSpeed := 25.0
	if doc.VehicleSpeed != nil {
		if *doc.VehicleSpeed <= 0 {
			return nil, &xerrors.ValidationError{Field: "vehicle_speed", Index: -1, Reason: "must be strictly positive"}
		}
		vehicleSpeed = *doc.VehicleSpeed
	}

	return trace.New(cleaned, vehicleType, vehicleSpeed), nil
}
