// Package trace holds the ordered cleaned-ping container that cleaning
// operators read and mutate in place.
package trace

import (
	"fmt"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
)

// Trace is the ordered sequence of cleaned pings for one journey. Insertion
// preserves time order; an index from ping_id to position is kept current
// across every mutation, including the inserts performed by Interpolate.
type Trace struct {
	pings       []*ping.Cleaned
	index       map[string]int
	VehicleType string
	// VehicleSpeed is in km/h, echoed in output but never used for
	// computation.
	VehicleSpeed float64
}

// New builds a Trace from an already time-ordered, ID-assigned slice of
// cleaned pings. Callers are expected to have run the validator first.
func New(pings []*ping.Cleaned, vehicleType string, vehicleSpeed float64) *Trace {
	t := &Trace{
		pings:        pings,
		index:        make(map[string]int, len(pings)),
		VehicleType:  vehicleType,
		VehicleSpeed: vehicleSpeed,
	}
	t.reindex()
	return t
}

func (t *Trace) reindex() {
	for i, p := range t.pings {
		t.index[p.PingID] = i
	}
}

// Len returns the number of pings currently in the trace.
func (t *Trace) Len() int { return len(t.pings) }

// At returns the ping at position i.
func (t *Trace) At(i int) *ping.Cleaned { return t.pings[i] }

// All returns the live backing slice. Callers that reorder or resize it
// must call Reindex afterward.
func (t *Trace) All() []*ping.Cleaned { return t.pings }

// IndexOf returns the current position of a ping_id, or -1 if absent.
func (t *Trace) IndexOf(pingID string) int {
	if i, ok := t.index[pingID]; ok {
		return i
	}
	return -1
}

// InsertAfter inserts newPing immediately after position i and rebuilds the
// id index. Used by the interpolation operator.
func (t *Trace) InsertAfter(i int, newPing *ping.Cleaned) {
	t.pings = append(t.pings, nil)
	copy(t.pings[i+2:], t.pings[i+1:])
	t.pings[i+1] = newPing
	t.reindex()
}

// Reindex rebuilds the ping_id -> position map after an external mutation
// of the backing slice (e.g. a batch of interpolation inserts).
func (t *Trace) Reindex() { t.index = make(map[string]int, len(t.pings)); t.reindex() }

// CoordOf returns the cleaned coordinate of ping i as a geo.Coord and
// whether it is present.
func (t *Trace) CoordOf(i int) (geo.Coord, bool) {
	p := t.pings[i]
	if !p.HasCleanedCoord() {
		return geo.Coord{}, false
	}
	return geo.Coord{Lat: *p.CleanedLatitude, Lon: *p.CleanedLongitude}, true
}

// NeighborSelection holds the nearest non-dropped, non-null neighbours of an
// interior ping, as used by the distance and angle imputation operators.
type NeighborSelection struct {
	PrevIdx, NextIdx int
	Prev, Cur, Next  geo.Coord
	OK               bool
}

// Neighbors finds the nearest eligible (non-dropped, non-null-coord)
// neighbours of ping i on either side. The ping at i itself must have a
// cleaned coordinate; Eligible() is not checked here since callers apply
// their own is_interpolated/dropped skip before calling.
func (t *Trace) Neighbors(i int) NeighborSelection {
	cur, ok := t.CoordOf(i)
	if !ok {
		return NeighborSelection{}
	}

	prevIdx := -1
	for j := i - 1; j >= 0; j-- {
		if t.pings[j].UpdateStatus == ping.StatusDropped {
			continue
		}
		if c, ok := t.CoordOf(j); ok {
			prevIdx = j
			_ = c
			break
		}
	}

	nextIdx := -1
	for j := i + 1; j < len(t.pings); j++ {
		if t.pings[j].UpdateStatus == ping.StatusDropped {
			continue
		}
		if c, ok := t.CoordOf(j); ok {
			nextIdx = j
			_ = c
			break
		}
	}

	if prevIdx < 0 || nextIdx < 0 {
		return NeighborSelection{}
	}

	prev, _ := t.CoordOf(prevIdx)
	next, _ := t.CoordOf(nextIdx)
	return NeighborSelection{PrevIdx: prevIdx, NextIdx: nextIdx, Prev: prev, Cur: cur, Next: next, OK: true}
}

// DistanceSoFar returns the cumulative cleaned distance in meters, as last
// computed by the enrichment pass (zero before the first Output() call).
func (t *Trace) DistanceSoFar() float64 {
	if len(t.pings) == 0 {
		return 0
	}
	return t.pings[len(t.pings)-1].CumulativeDistanceM
}

// Duration returns the cumulative cleaned elapsed time in milliseconds, as
// last computed by the enrichment pass.
func (t *Trace) Duration() int64 {
	if len(t.pings) == 0 {
		return 0
	}
	return t.pings[len(t.pings)-1].CumulativeTimeMs
}

// String gives a short human summary, mirroring the teacher's habit of a
// quick Stringer for debug narration.
func (t *Trace) String() string {
	return fmt.Sprintf("trace(%d pings, %s, %.1f km/h)", len(t.pings), t.VehicleType, t.VehicleSpeed)
}
