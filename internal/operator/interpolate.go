package operator

import (
	"context"
	"fmt"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/osrm"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

// InterpolateConfig configures Interpolate.
type InterpolateConfig struct {
	// MinDistFromPrevPing and MaxDistFromPrevPing bound the great-circle
	// distance between consecutive eligible pings that is considered for
	// route-based densification, in meters.
	MinDistFromPrevPing float64
	MaxDistFromPrevPing float64
}

// DefaultInterpolateConfig returns the defaults grounded in
// original_source's interpolate_trace: 10m / 250m.
func DefaultInterpolateConfig() InterpolateConfig {
	return InterpolateConfig{MinDistFromPrevPing: 10, MaxDistFromPrevPing: 250}
}

// Validate rejects an inverted or degenerate insertion window.
func (cfg InterpolateConfig) Validate() error {
	if !(cfg.MinDistFromPrevPing < cfg.MaxDistFromPrevPing) {
		return &xerrors.ValidationError{Field: "min_dist_from_prev_ping", Index: -1, Reason: "must be less than max_dist_from_prev_ping"}
	}
	return nil
}

// Interpolation sanity thresholds, grounded in original_source's
// constants.py. A candidate route leg that implies an implausible average
// speed, or whose OSRM-reported path length is disproportionate to the
// great-circle distance between the endpoints, is skipped rather than
// inserted.
const (
	minTimeForInterpolatedRouteMs   = 1000 // 1 second
	maxInterpolationThresholdRatio  = 1.5
	minSpeedForInterpolatedRouteMps = 1.0
)

// Interpolate iterates over consecutive pairs of eligible pings, and where
// both were last updated by map_match_trace and their haversine distance
// falls in [MinDistFromPrevPing, MaxDistFromPrevPing], calls client.Route
// and, unless the sanity thresholds above reject the leg, inserts one
// interpolated
// ping per interior route point. Precondition: MapMatch must have already
// been called on this trace at least once (mapMatchRan=false makes this
// return an *xerrors.OperatorPreconditionError without mutating anything).
// Preserves global time monotonicity (I6): each inserted ping's timestamp
// is strictly between its neighbours', by construction of the
// arclength-proportional interpolation below. If a pathological time budget
// would make two consecutive timestamps collide, returns an
// *xerrors.InternalInvariantError instead of inserting the offending ping;
// pings already inserted earlier in the same call are kept.
func Interpolate(ctx context.Context, t *trace.Trace, client *osrm.Client, cfg InterpolateConfig, mapMatchRan bool) (Result, error) {
	res := Result{Operator: NameInterpolate}

	if !mapMatchRan {
		return res, &xerrors.OperatorPreconditionError{
			Operator:    NameInterpolate,
			Requires:    NameMapMatch,
			Explanation: "interpolate_trace must run after at least one map_match_trace call",
		}
	}

	// Snapshot the eligible pairs up front: the loop below inserts as it
	// goes, and eligiblePings must not observe its own insertions (I4 keeps
	// freshly-interpolated pings out of eligiblePings anyway, but a stable
	// snapshot avoids any doubt about iteration order).
	indices := eligibleNonNull(t)
	type pair struct{ a, b int }
	pairs := make([]pair, 0, len(indices))
	for i := 0; i+1 < len(indices); i++ {
		pairs = append(pairs, pair{indices[i], indices[i+1]})
	}

	// Track how many positions have been inserted before a given original
	// index so later pairs' indices can be translated into the live slice.
	inserted := 0
	for _, pr := range pairs {
		aIdx := pr.a + inserted
		bIdx := pr.b + inserted

		a := t.At(aIdx)
		b := t.At(bIdx)

		// original_source's interpolate_trace only considers a pair when
		// both endpoints were snapped by the last map_match_trace call, not
		// merely that map_match ran at some point in the trace's history.
		if a.LastUpdatedBy != NameMapMatch || b.LastUpdatedBy != NameMapMatch {
			continue
		}

		aCoord, _ := t.CoordOf(aIdx)
		bCoord, _ := t.CoordOf(bIdx)

		d := geo.Haversine(aCoord, bCoord)
		if d < cfg.MinDistFromPrevPing || d > cfg.MaxDistFromPrevPing {
			continue
		}

		route, err := client.Route(ctx, aCoord, bCoord)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if len(route) <= 2 {
			// Route geometry has only the two snapped endpoints: nothing to
			// insert between A and B.
			continue
		}

		totalTimeMs := b.Timestamp - a.Timestamp
		if totalTimeMs <= minTimeForInterpolatedRouteMs {
			continue
		}

		startSnap := geo.Haversine(aCoord, route[0])
		endSnap := geo.Haversine(bCoord, route[len(route)-1])
		routeTraceDistance := geo.TotalPath(route)
		totalTraceDistance := startSnap + routeTraceDistance + endSnap

		if totalTraceDistance > maxInterpolationThresholdRatio*d {
			continue
		}

		routeSpeed := totalTraceDistance / (float64(totalTimeMs) / 1000)
		if routeSpeed <= minSpeedForInterpolatedRouteMps {
			continue
		}

		interior := route[1 : len(route)-1]

		newPings := make([]*ping.Cleaned, 0, len(interior))
		prevCoord := aCoord
		prevTimeMs := a.Timestamp
		for k, pt := range interior {
			segDist := geo.Haversine(prevCoord, pt)
			ts := prevTimeMs + int64(segDist/routeSpeed*1000)

			// I6 requires each inserted timestamp to be strictly between its
			// neighbours'. A near-zero remaining time budget can round two
			// consecutive segments down to the same millisecond (or push one
			// past b's timestamp); rather than silently clamping and letting
			// a duplicate or out-of-order timestamp reach the trace, treat it
			// as a bug in this pairing and stop inserting for it. Pairs
			// already inserted earlier in this call are left as they are.
			if ts <= prevTimeMs || ts >= b.Timestamp {
				return res, &xerrors.InternalInvariantError{
					Invariant: "I6",
					Detail: fmt.Sprintf(
						"interpolated ping %s_%d between %s (t=%d) and %s (t=%d) would not have a strictly increasing timestamp (computed t=%d)",
						a.PingID, k+1, a.PingID, a.Timestamp, b.PingID, b.Timestamp, ts),
				}
			}

			id := fmt.Sprintf("%s_%d", a.PingID, k+1)
			np := ping.NewInterpolated(id, ts, pt.Lat, pt.Lon, NameInterpolate)
			newPings = append(newPings, np)
			prevCoord = pt
			prevTimeMs = ts
		}

		insertAt := aIdx
		for _, np := range newPings {
			t.InsertAfter(insertAt, np)
			insertAt++
			inserted++
			res.Touched++
		}
	}

	return res, nil
}
