// Package enrich recomputes the per-ping gap and cumulative metrics over a
// cleaned trace. Enrichment is never owned by operators: it is recomputed
// wholesale on every call, in cleaned-sequence order.
package enrich

import (
	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// Recompute walks the cleaned sequence in order and fills
// DistanceFromPrevM, TimeFromPrevMs, CumulativeDistanceM and
// CumulativeTimeMs for every ping. Dropped pings get nil gap fields and
// inherit the running cumulative from the last non-dropped ping (their
// entries show the cumulative value at the moment they were skipped, per
// spec.md section 4.6).
func Recompute(t *trace.Trace) {
	var (
		cumDist   float64
		cumTime   int64
		havePrev  bool
		prevCoord geo.Coord
		prevTime  int64
	)

	for i := 0; i < t.Len(); i++ {
		p := t.At(i)

		if p.UpdateStatus == ping.StatusDropped {
			p.DistanceFromPrevM = nil
			p.TimeFromPrevMs = nil
			p.CumulativeDistanceM = cumDist
			p.CumulativeTimeMs = cumTime
			continue
		}

		if !havePrev {
			zero := 0.0
			zeroMs := int64(0)
			p.DistanceFromPrevM = &zero
			p.TimeFromPrevMs = &zeroMs
			p.CumulativeDistanceM = cumDist
			p.CumulativeTimeMs = cumTime

			if c, ok := t.CoordOf(i); ok {
				prevCoord = c
				havePrev = true
			}
			prevTime = p.Timestamp
			continue
		}

		curCoord, ok := t.CoordOf(i)
		if !ok {
			// No cleaned coordinate but not dropped (the validator accepts
			// pings with null raw coordinates): no gap is measured; the ping
			// only carries the running cumulative.
			p.CumulativeDistanceM = cumDist
			p.CumulativeTimeMs = cumTime
			continue
		}

		dist := geo.Haversine(prevCoord, curCoord)
		timeMs := p.Timestamp - prevTime
		if timeMs < 0 {
			timeMs = 0
		}

		cumDist += dist
		cumTime += timeMs

		p.DistanceFromPrevM = &dist
		p.TimeFromPrevMs = &timeMs
		p.CumulativeDistanceM = cumDist
		p.CumulativeTimeMs = cumTime

		prevCoord = curCoord
		prevTime = p.Timestamp
	}
}
