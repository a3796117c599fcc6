// Package ping defines the raw and cleaned ping records that flow through
// the cleaning pipeline, along with the provenance operations operators use
// to mutate them.
package ping

// UpdateStatus is the provenance state of a cleaned ping's coordinates.
type UpdateStatus string

const (
	StatusUnchanged    UpdateStatus = "unchanged"
	StatusDropped      UpdateStatus = "dropped"
	StatusUpdated      UpdateStatus = "updated"
	StatusInterpolated UpdateStatus = "interpolated"
)

// Raw is a single timestamped GPS sample plus optional attributes, immutable
// once constructed by the validator.
type Raw struct {
	PingID      string
	Latitude    *float64 // nil if absent
	Longitude   *float64 // nil if absent
	Timestamp   int64    // ms since Unix epoch
	ErrorRadius *float64 // meters, nil if absent
	EventType   *string
	ForceRetain bool
	Metadata    map[string]any
}

// Cleaned is the mutable projection of a Raw ping carrying provenance and
// possibly-updated coordinates, plus enrichment and stop-detection fields
// populated by later passes.
type Cleaned struct {
	// Echoed raw fields, never overwritten after construction.
	InputLatitude    *float64
	InputLongitude   *float64
	PingID           string
	Timestamp        int64
	InputErrorRadius *float64
	InputEventType   *string
	ForceRetain      bool
	Metadata         map[string]any

	// Mutable projection.
	CleanedLatitude  *float64
	CleanedLongitude *float64
	UpdateStatus     UpdateStatus
	LastUpdatedBy    string // "" until first mutation
	IsInterpolated   bool

	// Enrichment, recomputed on demand by package enrich; never written by
	// operators.
	DistanceFromPrevM   *float64
	TimeFromPrevMs      *int64
	CumulativeDistanceM float64
	CumulativeTimeMs    int64

	// Stop-detection fields, populated only by package stop.
	StopEventStatus                  bool
	RepresentativeStopEventLatitude  *float64
	RepresentativeStopEventLongitude *float64
	StopEventSequenceNumber          int // >=1 once assigned, 0 otherwise
	CumulativeStopEventTime          string
}

// New builds a Cleaned ping from a Raw one. Cleaned coordinates start equal
// to the raw coordinates; provenance starts unchanged.
func New(r Raw) *Cleaned {
	var lat, lon *float64
	if r.Latitude != nil {
		v := *r.Latitude
		lat = &v
	}
	if r.Longitude != nil {
		v := *r.Longitude
		lon = &v
	}
	return &Cleaned{
		InputLatitude:    r.Latitude,
		InputLongitude:   r.Longitude,
		PingID:           r.PingID,
		Timestamp:        r.Timestamp,
		InputErrorRadius: r.ErrorRadius,
		InputEventType:   r.EventType,
		ForceRetain:      r.ForceRetain,
		Metadata:         r.Metadata,
		CleanedLatitude:  lat,
		CleanedLongitude: lon,
		UpdateStatus:     StatusUnchanged,
	}
}

// HasCleanedCoord reports whether the ping currently carries a non-null
// cleaned coordinate.
func (p *Cleaned) HasCleanedCoord() bool {
	return p.CleanedLatitude != nil && p.CleanedLongitude != nil
}

// MarkDropped sets the cleaned coordinate to null and records the dropping
// operator.
func (p *Cleaned) MarkDropped(operator string) {
	p.CleanedLatitude = nil
	p.CleanedLongitude = nil
	p.UpdateStatus = StatusDropped
	p.LastUpdatedBy = operator
}

// MarkUpdated replaces the cleaned coordinate and records the mutating
// operator.
func (p *Cleaned) MarkUpdated(lat, lon float64, operator string) {
	p.CleanedLatitude = &lat
	p.CleanedLongitude = &lon
	p.UpdateStatus = StatusUpdated
	p.LastUpdatedBy = operator
}

// NewInterpolated builds a synthetic ping inserted by the interpolator. Its
// input fields are null by definition; only the interpolator that created
// it may ever mutate it again (I4).
func NewInterpolated(pingID string, timestamp int64, lat, lon float64, operator string) *Cleaned {
	return &Cleaned{
		PingID:           pingID,
		Timestamp:        timestamp,
		CleanedLatitude:  &lat,
		CleanedLongitude: &lon,
		UpdateStatus:     StatusInterpolated,
		LastUpdatedBy:    operator,
		IsInterpolated:   true,
		ForceRetain:      false,
	}
}

// Eligible reports whether an operator other than the interpolator may
// touch this ping: not dropped, not an interpolated ping (I4).
func (p *Cleaned) Eligible() bool {
	return !p.IsInterpolated && p.UpdateStatus != StatusDropped
}
