package operator

import (
	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

// ImputeByDistanceConfig configures ImputeByDistance.
type ImputeByDistanceConfig struct {
	// MaxDistRatio is the (d_pc+d_cn)/d_pn ratio above which the interior
	// ping is treated as a distance outlier and replaced by the midpoint of
	// its neighbours.
	MaxDistRatio float64
}

// DefaultImputeByDistanceConfig returns spec.md's default ratio of 3.
func DefaultImputeByDistanceConfig() ImputeByDistanceConfig {
	return ImputeByDistanceConfig{MaxDistRatio: 3}
}

// Validate rejects out-of-range parameters at construction time, ahead of
// any call to ImputeByDistance. Grounded in original_source's
// validate_impute_distorted_pings_with_distance_parameters: a ratio below 1
// would flag every interior ping as an outlier, since (d_pc+d_cn)/d_pn is
// never less than 1 by the triangle inequality.
func (cfg ImputeByDistanceConfig) Validate() error {
	if cfg.MaxDistRatio < 1 {
		return &xerrors.ValidationError{Field: "max_dist_ratio", Index: -1, Reason: "must be >= 1"}
	}
	return nil
}

// ImputeByDistance replaces an interior ping's cleaned coordinate with the
// spherical midpoint of its nearest non-dropped, non-null neighbours when
// the round-trip-via-cur distance is disproportionate to the direct
// prev->next distance. ForceRetain does not exempt a ping from imputation.
// Pings at the sequence ends, and pings without two eligible neighbours, are
// left unchanged.
func ImputeByDistance(t *trace.Trace, cfg ImputeByDistanceConfig) Result {
	res := Result{Operator: NameImputeDistance}

	for _, i := range eligibleNonNull(t) {
		if i == 0 || i == t.Len()-1 {
			continue
		}

		nb := t.Neighbors(i)
		if !nb.OK {
			continue
		}

		dPC := geo.Haversine(nb.Prev, nb.Cur)
		dCN := geo.Haversine(nb.Cur, nb.Next)
		dPN := geo.Haversine(nb.Prev, nb.Next)

		if dPN <= 0 {
			continue
		}
		if (dPC+dCN)/dPN <= cfg.MaxDistRatio {
			continue
		}

		mid := geo.SphericalMidpoint(nb.Prev, nb.Next)
		t.At(i).MarkUpdated(mid.Lat, mid.Lon, NameImputeDistance)
		res.Touched++
	}

	return res
}
