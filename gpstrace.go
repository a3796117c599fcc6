// Package gpstrace cleans, enriches and summarizes vehicle GPS traces: a
// staged pipeline of cleaning operators over a shared per-ping state, map
// matching and route-based interpolation against an OSRM-compatible HTTP
// service, and two-stage stop-event detection.
package gpstrace

import (
	"context"
	"fmt"
	"time"

	"github.com/timofeipermiakov/gpstrace/internal/enrich"
	"github.com/timofeipermiakov/gpstrace/internal/httputil"
	"github.com/timofeipermiakov/gpstrace/internal/operator"
	"github.com/timofeipermiakov/gpstrace/internal/osrm"
	"github.com/timofeipermiakov/gpstrace/internal/payload"
	"github.com/timofeipermiakov/gpstrace/internal/stop"
	"github.com/timofeipermiakov/gpstrace/internal/summary"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// Re-exported input/output types so callers never need to import the
// internal packages directly.
type (
	PingInput = payload.PingInput
	Payload   = payload.Payload

	RemoveNearbyConfig     = operator.RemoveNearbyConfig
	ImputeByDistanceConfig = operator.ImputeByDistanceConfig
	ImputeByAngleConfig    = operator.ImputeByAngleConfig
	MapMatchConfig         = operator.MapMatchConfig
	InterpolateConfig      = operator.InterpolateConfig
	OperatorResult         = operator.Result

	StopDetectorConfig = stop.Config
	StopEvent          = stop.Event

	Output = summary.Output
)

// Default* constructors, re-exported for convenience.
var (
	DefaultRemoveNearbyConfig     = operator.DefaultRemoveNearbyConfig
	DefaultImputeByDistanceConfig = operator.DefaultImputeByDistanceConfig
	DefaultImputeByAngleConfig    = operator.DefaultImputeByAngleConfig
	DefaultMapMatchConfig         = operator.DefaultMapMatchConfig
	DefaultInterpolateConfig      = operator.DefaultInterpolateConfig
	DefaultStopDetectorConfig     = stop.DefaultConfig
)

// CleanTrace is the public handle over a single trace's cleaning pipeline.
// Scheduling is single-threaded cooperative: operators are invoked serially
// by the caller and CleanTrace exposes no internal parallelism of its own
// (MapMatch dispatches its OSRM batches concurrently; see internal/operator).
type CleanTrace struct {
	tr          *trace.Trace
	osrm        *osrm.Client
	mapMatchRan bool

	warnings           []string
	executionTime      time.Duration
	lastStopEvents     []stop.Event
	removeNearbySafety summary.CleaningSafety
}

// Option configures New.
type Option func(*CleanTrace)

// WithHTTPClient injects a transport for the OSRM client, e.g.
// httputil.NewMockClient() in tests. Production callers can omit this.
func WithHTTPClient(c httputil.Client) Option {
	return func(ct *CleanTrace) { ct.osrm = osrm.NewClient(c) }
}

// New validates payload doc, assigns ping IDs and builds a CleanTrace with
// cleaned == raw for every ping. Validation errors (ValidationError,
// OrderError) are fatal here: the engine is never constructed.
func New(doc Payload, opts ...Option) (*CleanTrace, error) {
	tr, err := payload.Validate(doc)
	if err != nil {
		return nil, err
	}

	ct := &CleanTrace{tr: tr}
	for _, opt := range opts {
		opt(ct)
	}
	if ct.osrm == nil {
		ct.osrm = osrm.NewClient(nil)
	}

	return ct, nil
}

func (ct *CleanTrace) timed(f func() operator.Result) operator.Result {
	start := time.Now()
	res := f()
	ct.executionTime += time.Since(start)
	ct.warnings = append(ct.warnings, res.Warnings...)
	fmt.Printf("gpstrace: %s\n", res.String())
	return res
}

// RemoveNearby runs the remove_nearby operator (spec.md section 4.5.1). Its
// advisory safety report (see operator.SafetyReport) is remembered for the
// next Output() call.
func (ct *CleanTrace) RemoveNearby(cfg RemoveNearbyConfig) OperatorResult {
	res := ct.timed(func() operator.Result {
		return operator.RemoveNearby(ct.tr, cfg)
	})
	if res.Safety != nil {
		ct.removeNearbySafety = summary.CleaningSafety{
			WouldExceedSafety:      res.Safety.WouldExceedSafety,
			RemovedPercent:         res.Safety.RemovedPercent,
			DistanceReducedPercent: res.Safety.DistanceReducedPercent,
		}
	}
	return res
}

// ImputeByDistance runs the impute_by_distance operator (spec.md section
// 4.5.2). Returns a ValidationError without mutating the trace if cfg is
// out of range.
func (ct *CleanTrace) ImputeByDistance(cfg ImputeByDistanceConfig) (OperatorResult, error) {
	if err := cfg.Validate(); err != nil {
		return operator.Result{Operator: operator.NameImputeDistance}, err
	}
	return ct.timed(func() operator.Result {
		return operator.ImputeByDistance(ct.tr, cfg)
	}), nil
}

// ImputeByAngle runs the impute_by_angle operator (spec.md section 4.5.3).
func (ct *CleanTrace) ImputeByAngle(cfg ImputeByAngleConfig) (OperatorResult, error) {
	if err := cfg.Validate(); err != nil {
		return operator.Result{Operator: operator.NameImputeAngle}, err
	}
	return ct.timed(func() operator.Result {
		return operator.ImputeByAngle(ct.tr, cfg)
	}), nil
}

// MapMatch runs the map_match operator (spec.md section 4.5.4) against the
// configured OSRM endpoint, and unlocks Interpolate's precondition.
func (ct *CleanTrace) MapMatch(ctx context.Context, cfg MapMatchConfig) (OperatorResult, error) {
	if err := cfg.Validate(); err != nil {
		return operator.Result{Operator: operator.NameMapMatch}, err
	}
	res := ct.timed(func() operator.Result {
		return operator.MapMatch(ctx, ct.tr, ct.osrm, cfg)
	})
	ct.mapMatchRan = true
	return res, nil
}

// Interpolate runs the interpolate operator (spec.md section 4.5.5).
// Requires a prior successful MapMatch call: otherwise returns an
// *xerrors.OperatorPreconditionError without mutating the trace.
func (ct *CleanTrace) Interpolate(ctx context.Context, cfg InterpolateConfig) (OperatorResult, error) {
	if err := cfg.Validate(); err != nil {
		return operator.Result{Operator: operator.NameInterpolate}, err
	}

	start := time.Now()
	res, err := operator.Interpolate(ctx, ct.tr, ct.osrm, cfg, ct.mapMatchRan)
	ct.executionTime += time.Since(start)
	if err != nil {
		return res, err
	}
	ct.warnings = append(ct.warnings, res.Warnings...)
	fmt.Printf("gpstrace: %s\n", res.String())
	return res, nil
}

// DetectStops runs the two-stage stop detector (spec.md section 4.7) and
// annotates matching pings. Results are cached for the next Output() call.
func (ct *CleanTrace) DetectStops(cfg StopDetectorConfig) []StopEvent {
	start := time.Now()
	events := stop.Detect(ct.tr, cfg)
	ct.executionTime += time.Since(start)
	ct.lastStopEvents = events
	fmt.Printf("gpstrace: detect_stops: found %d stop event(s)\n", len(events))
	return events
}

// Output recomputes enrichment (spec.md section 4.6) and assembles the
// final output document (spec.md section 4.8) alongside every warning
// accumulated so far.
func (ct *CleanTrace) Output() Output {
	enrich.Recompute(ct.tr)
	return summary.Build(ct.tr, ct.lastStopEvents, ct.executionTime.Seconds(), ct.warnings, ct.removeNearbySafety)
}

// Trace exposes the underlying trace container for read-only inspection
// (e.g. by an out-of-scope visualization consumer).
func (ct *CleanTrace) Trace() *trace.Trace { return ct.tr }
