// Package summary assembles the cleaning, distance and stop summaries and
// the final output document from a fully-enriched trace.
package summary

import (
	"fmt"
	"sort"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
	"github.com/timofeipermiakov/gpstrace/internal/stop"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// CleaningSummary reports how the pipeline changed the trace, computed from
// UpdateStatus and coordinate nullness. TotalTraceTime and
// TotalExecutionTime are supplemented fields grounded in
// _create_output_cleaning_summary (original_source), not present in
// spec.md's minimal set.
type CleaningSummary struct {
	InputNonNullPings  int
	OutputNonNullPings int
	Dropped            int
	Updated            int
	Interpolated       int
	Unchanged          int
	TotalTraceTime     string
	TotalExecutionTime float64 // seconds

	// RemoveNearbySafety is the advisory report from the last RemoveNearby
	// call, grounded in the teacher's applySafetyLimits. Zero value if
	// RemoveNearby was never called.
	RemoveNearbySafety CleaningSafety
}

// CleaningSafety mirrors operator.SafetyReport without importing package
// operator here: summary only reports what it's told, it never computes
// safety itself.
type CleaningSafety struct {
	WouldExceedSafety      bool
	RemovedPercent         float64
	DistanceReducedPercent float64
}

// DistanceSummary compares cumulative path length over raw vs cleaned
// coordinates. ReductionPct is floored at zero: a trace that got longer
// after cleaning (interpolation can do this) reports 0%, not negative.
type DistanceSummary struct {
	RawDistanceM     float64
	CleanedDistanceM float64
	ReductionM       float64
	ReductionPct     float64
}

// StopEventSummary describes one final, spatially-merged stop event.
type StopEventSummary struct {
	SequenceNumber    int
	RepresentativeLat float64
	RepresentativeLon float64
	FirstTimestamp    int64
	LastTimestamp     int64
	DurationSeconds   int64
	MemberPingIDs     []string
}

// GlobalStopEventsInfo aggregates stop time across the whole trace,
// grounded in constants.GLOBAL_STOP_EVENTS_INFO_KEYS.
type GlobalStopEventsInfo struct {
	TotalTraceTimeSeconds      int64
	TotalStopEventsTimeSeconds int64
	StopEventsPercentage       float64
}

// StopSummary lists every final stop event plus the global aggregate.
type StopSummary struct {
	Events []StopEventSummary
	Global GlobalStopEventsInfo
}

// Output is the full assembled output document (spec.md section 4.8/6.2).
type Output struct {
	CleanedTrace    []*ping.Cleaned
	CleaningSummary CleaningSummary
	DistanceSummary DistanceSummary
	StopSummary     StopSummary
	VehicleType     string
	VehicleSpeed    float64
	Warnings        []string
}

// BuildCleaningSummary computes cleaning_summary from the current cleaned
// sequence. totalExecutionTime and safety are threaded in by the caller
// (CleanTrace tracks execution time across operator calls and remembers
// RemoveNearby's last safety report); summary itself does no timing and no
// safety computation.
func BuildCleaningSummary(t *trace.Trace, totalExecutionTime float64, safety CleaningSafety) CleaningSummary {
	s := CleaningSummary{TotalExecutionTime: totalExecutionTime, RemoveNearbySafety: safety}

	for i := 0; i < t.Len(); i++ {
		p := t.At(i)
		if p.InputLatitude != nil && p.InputLongitude != nil {
			s.InputNonNullPings++
		}
		if p.HasCleanedCoord() {
			s.OutputNonNullPings++
		}
		switch p.UpdateStatus {
		case ping.StatusDropped:
			s.Dropped++
		case ping.StatusUpdated:
			s.Updated++
		case ping.StatusInterpolated:
			s.Interpolated++
		case ping.StatusUnchanged:
			s.Unchanged++
		}
	}

	if t.Len() > 0 {
		span := t.At(t.Len()-1).Timestamp - t.At(0).Timestamp
		s.TotalTraceTime = humanDuration(span / 1000)
	}

	return s
}

// BuildDistanceSummary compares the raw (input_*) path length against the
// cleaned path length, both over non-null coordinates only.
func BuildDistanceSummary(t *trace.Trace) DistanceSummary {
	var rawPoints, cleanedPoints []geo.Coord
	for i := 0; i < t.Len(); i++ {
		p := t.At(i)
		if p.InputLatitude != nil && p.InputLongitude != nil {
			rawPoints = append(rawPoints, geo.Coord{Lat: *p.InputLatitude, Lon: *p.InputLongitude})
		}
		if p.HasCleanedCoord() {
			cleanedPoints = append(cleanedPoints, geo.Coord{Lat: *p.CleanedLatitude, Lon: *p.CleanedLongitude})
		}
	}

	raw := geo.TotalPath(rawPoints)
	cleaned := geo.TotalPath(cleanedPoints)

	reduction := raw - cleaned
	pct := 0.0
	if raw > 0 && cleaned < raw {
		pct = (reduction / raw) * 100
	} else {
		reduction = 0
	}

	return DistanceSummary{
		RawDistanceM:     raw,
		CleanedDistanceM: cleaned,
		ReductionM:       reduction,
		ReductionPct:     pct,
	}
}

// BuildStopSummary flattens stop.Event values (already annotated onto the
// trace by stop.Detect) into the output's stop_summary shape.
func BuildStopSummary(t *trace.Trace, events []stop.Event) StopSummary {
	s := StopSummary{}

	var totalTraceSeconds int64
	if t.Len() > 0 {
		totalTraceSeconds = (t.At(t.Len()-1).Timestamp - t.At(0).Timestamp) / 1000
	}

	sorted := make([]stop.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SequenceNumber < sorted[j].SequenceNumber })

	var totalStopSeconds int64
	for _, ev := range sorted {
		duration := (ev.LastTimestamp - ev.FirstTimestamp) / 1000
		s.Events = append(s.Events, StopEventSummary{
			SequenceNumber:    ev.SequenceNumber,
			RepresentativeLat: ev.Representative.Lat,
			RepresentativeLon: ev.Representative.Lon,
			FirstTimestamp:    ev.FirstTimestamp,
			LastTimestamp:     ev.LastTimestamp,
			DurationSeconds:   duration,
			MemberPingIDs:     ev.MemberPingIDs,
		})
		totalStopSeconds += duration
	}

	pct := 0.0
	if totalTraceSeconds > 0 {
		pct = float64(totalStopSeconds) / float64(totalTraceSeconds) * 100
	}

	s.Global = GlobalStopEventsInfo{
		TotalTraceTimeSeconds:      totalTraceSeconds,
		TotalStopEventsTimeSeconds: totalStopSeconds,
		StopEventsPercentage:       pct,
	}
	return s
}

// Build assembles the full output document.
func Build(t *trace.Trace, events []stop.Event, totalExecutionTime float64, warnings []string, safety CleaningSafety) Output {
	return Output{
		CleanedTrace:    t.All(),
		CleaningSummary: BuildCleaningSummary(t, totalExecutionTime, safety),
		DistanceSummary: BuildDistanceSummary(t),
		StopSummary:     BuildStopSummary(t, events),
		VehicleType:     t.VehicleType,
		VehicleSpeed:    t.VehicleSpeed,
		Warnings:        warnings,
	}
}

func humanDuration(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
