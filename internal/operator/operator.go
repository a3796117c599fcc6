// Package operator implements the cleaning operators that read and mutate a
// trace.Trace's cleaned-ping sequence in place: RemoveNearby, ImputeByDistance,
// ImputeByAngle, MapMatch and Interpolate. Every operator skips pings already
// dropped or marked interpolated (I4), and none second-guesses the caller by
// refusing to run.
package operator

import (
	"fmt"

	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// Provenance names recorded on ping.Cleaned.LastUpdatedBy. These are wire
// contract, not display strings: summaries and invariant tests match on
// them exactly.
const (
	NameRemoveNearby   = "remove_nearby"
	NameImputeDistance = "impute_distorted_pings_with_distance"
	NameImputeAngle    = "impute_distorted_pings_with_angle"
	NameMapMatch       = "map_match_trace"
	NameInterpolate    = "interpolate_trace"
)

// Result carries per-call counters and any non-fatal warnings, mirroring the
// teacher's habit of returning a small Stats value alongside the mutation.
type Result struct {
	Operator string
	Touched  int
	Warnings []string

	// Safety is non-nil only for RemoveNearby: an advisory report on
	// whether the drop would have exceeded the teacher's safety-limit
	// vocabulary (MaxRemovedPercent/MaxDistanceReduced), never an
	// override of the caller's request.
	Safety *SafetyReport
}

// SafetyReport is RemoveNearby's advisory read on how aggressive a drop
// pass was, grounded in the teacher's applySafetyLimits. It never changes
// what RemoveNearby actually does: operators here don't second-guess the
// caller.
type SafetyReport struct {
	WouldExceedSafety      bool
	RemovedPercent         float64
	DistanceReducedPercent float64
}

func (r Result) String() string {
	if len(r.Warnings) == 0 {
		return fmt.Sprintf("%s: touched %d pings", r.Operator, r.Touched)
	}
	return fmt.Sprintf("%s: touched %d pings, %d warning(s)", r.Operator, r.Touched, len(r.Warnings))
}

// eligiblePings returns the indices of pings an operator (other than
// Interpolate itself) is allowed to read/mutate: not dropped, not
// is_interpolated (I4).
func eligiblePings(t *trace.Trace) []int {
	idx := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if t.At(i).Eligible() {
			idx = append(idx, i)
		}
	}
	return idx
}

// eligibleNonNull is eligiblePings further restricted to pings carrying a
// non-null cleaned coordinate, the precondition every geometric operator
// shares.
func eligibleNonNull(t *trace.Trace) []int {
	all := eligiblePings(t)
	out := make([]int, 0, len(all))
	for _, i := range all {
		if t.At(i).HasCleanedCoord() {
			out = append(out, i)
		}
	}
	return out
}
