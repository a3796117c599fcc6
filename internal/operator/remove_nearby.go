package operator

import (
	"fmt"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// RemoveNearbyConfig configures RemoveNearby.
type RemoveNearbyConfig struct {
	// MinDistBwConsecutivePings is the threshold, in meters, below which a
	// candidate ping is dropped rather than kept as a new anchor.
	MinDistBwConsecutivePings float64

	// MaxRemovedPercent and MaxDistanceReduced are advisory safety limits,
	// grounded in the teacher's applySafetyLimits: they never change what
	// RemoveNearby drops, only whether Result.Safety.WouldExceedSafety is
	// set for the caller to act on. Zero disables the corresponding check.
	MaxRemovedPercent  float64
	MaxDistanceReduced float64
}

// DefaultRemoveNearbyConfig returns spec.md's default of 5 meters, plus the
// teacher's own safety-limit defaults (20% of points, 25% of distance).
func DefaultRemoveNearbyConfig() RemoveNearbyConfig {
	return RemoveNearbyConfig{
		MinDistBwConsecutivePings: 5,
		MaxRemovedPercent:         20.0,
		MaxDistanceReduced:        25.0,
	}
}

// RemoveNearby walks the cleaned sequence maintaining a "last retained ping"
// anchor. A candidate with a non-null cleaned coordinate and
// ForceRetain=false is dropped when it falls within the threshold of the
// anchor; otherwise it becomes the new anchor. ForceRetain=true candidates
// are always retained and become the new anchor (I3). Idempotent: rerunning
// with the same config on the same cleaned sequence drops the same set of
// ping_ids, since dropped pings are skipped on the next pass and every
// surviving anchor is unchanged.
//
// RemoveNearby never refuses to run or reverts its own drops: cfg's
// MaxRemovedPercent/MaxDistanceReduced only populate an advisory
// Result.Safety report for the caller to inspect.
func RemoveNearby(t *trace.Trace, cfg RemoveNearbyConfig) Result {
	res := Result{Operator: NameRemoveNearby}

	eligible := eligibleNonNull(t)
	before := make([]geo.Coord, len(eligible))
	for k, i := range eligible {
		before[k], _ = t.CoordOf(i)
	}

	anchor := -1
	kept := make([]geo.Coord, 0, len(eligible))
	for _, i := range eligible {
		p := t.At(i)

		if anchor < 0 {
			anchor = i
			c, _ := t.CoordOf(i)
			kept = append(kept, c)
			continue
		}

		if p.ForceRetain {
			anchor = i
			c, _ := t.CoordOf(i)
			kept = append(kept, c)
			continue
		}

		anchorCoord, _ := t.CoordOf(anchor)
		curCoord, _ := t.CoordOf(i)
		if geo.Haversine(anchorCoord, curCoord) < cfg.MinDistBwConsecutivePings {
			p.MarkDropped(NameRemoveNearby)
			res.Touched++
			continue
		}

		anchor = i
		kept = append(kept, curCoord)
	}

	res.Safety = safetyReport(cfg, before, kept, res.Touched)
	if res.Safety.WouldExceedSafety {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"remove_nearby: removed %.1f%% of pings / %.1f%% of distance, exceeding advisory limits of %.0f%%/%.0f%%",
			res.Safety.RemovedPercent, res.Safety.DistanceReducedPercent, cfg.MaxRemovedPercent, cfg.MaxDistanceReduced))
	}

	return res
}

// safetyReport computes the advisory removal/distance-reduction
// percentages against cfg's limits. A zero limit disables that leg of the
// check, matching a caller who never set it.
func safetyReport(cfg RemoveNearbyConfig, before, kept []geo.Coord, touched int) *SafetyReport {
	rep := &SafetyReport{}
	if len(before) == 0 {
		return rep
	}

	rep.RemovedPercent = float64(touched) / float64(len(before)) * 100

	originalDistance := geo.TotalPath(before)
	keptDistance := geo.TotalPath(kept)
	if originalDistance > 0 {
		rep.DistanceReducedPercent = (originalDistance - keptDistance) / originalDistance * 100
	}

	if cfg.MaxRemovedPercent > 0 && rep.RemovedPercent > cfg.MaxRemovedPercent {
		rep.WouldExceedSafety = true
	}
	if cfg.MaxDistanceReduced > 0 && rep.DistanceReducedPercent > cfg.MaxDistanceReduced {
		rep.WouldExceedSafety = true
	}
	return rep
}
