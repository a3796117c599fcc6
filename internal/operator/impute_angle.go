package operator

import (
	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

// ImputeByAngleConfig configures ImputeByAngle.
type ImputeByAngleConfig struct {
	// MaxDeltaAngle, in degrees, is the unsigned turn angle above which the
	// interior ping is treated as a spurious spike and replaced by the
	// midpoint of its neighbours.
	MaxDeltaAngle float64
}

// DefaultImputeByAngleConfig returns spec.md's default of 120 degrees.
func DefaultImputeByAngleConfig() ImputeByAngleConfig {
	return ImputeByAngleConfig{MaxDeltaAngle: 120}
}

// Validate rejects out-of-range parameters at construction time, ahead of
// any call to ImputeByAngle. Grounded in original_source's
// ValidationErrorMessage catalogue, not spec.md, which is silent on
// parameter ranges.
func (cfg ImputeByAngleConfig) Validate() error {
	if cfg.MaxDeltaAngle < 0 || cfg.MaxDeltaAngle > 180 {
		return &xerrors.ValidationError{Field: "max_delta_angle", Index: -1, Reason: "must be within [0, 180] degrees"}
	}
	return nil
}

// ImputeByAngle uses the same neighbour selection as ImputeByDistance but
// tests the unsigned turn angle at the interior ping instead of a distance
// ratio.
func ImputeByAngle(t *trace.Trace, cfg ImputeByAngleConfig) Result {
	res := Result{Operator: NameImputeAngle}

	for _, i := range eligibleNonNull(t) {
		if i == 0 || i == t.Len()-1 {
			continue
		}

		nb := t.Neighbors(i)
		if !nb.OK {
			continue
		}

		delta := geo.AngularDelta(nb.Prev, nb.Cur, nb.Next)
		if delta <= cfg.MaxDeltaAngle {
			continue
		}

		mid := geo.SphericalMidpoint(nb.Prev, nb.Next)
		t.At(i).MarkUpdated(mid.Lat, mid.Lon, NameImputeAngle)
		res.Touched++
	}

	return res
}
