// Package osrm is a minimal HTTP client for an OSRM-compatible routing
// service, implementing the bit-exact wire contract the map-match and
// interpolate operators depend on.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/httputil"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

const (
	// DefaultMatchBaseURL is the default match endpoint base.
	DefaultMatchBaseURL = "http://127.0.0.1:5000/match/v1/driving/"
	// DefaultRouteBaseURL is the default route endpoint base.
	DefaultRouteBaseURL = "http://127.0.0.1:5000/route/v1/driving/"
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 10 * time.Second
)

// Client is a stateless OSRM HTTP client: every call is one self-contained
// request with no connection state carried between calls.
type Client struct {
	HTTP         httputil.Client
	MatchBaseURL string
	RouteBaseURL string
	Timeout      time.Duration
}

// NewClient builds a Client with production defaults, wrapping an
// *http.Client unless transport is supplied (tests inject an
// *httputil.MockClient here).
func NewClient(transport httputil.Client) *Client {
	if transport == nil {
		transport = httputil.NewStandardClient(&http.Client{Timeout: DefaultTimeout})
	}
	return &Client{
		HTTP:         transport,
		MatchBaseURL: DefaultMatchBaseURL,
		RouteBaseURL: DefaultRouteBaseURL,
		Timeout:      DefaultTimeout,
	}
}

func coordString(points []geo.Coord) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return req, cancel, nil
}

// tracepoint mirrors the OSRM /match response's tracepoints entries.
type tracepoint struct {
	Location []float64 `json:"location"` // [lon, lat]
}

type matchResponse struct {
	Tracepoints []*tracepoint `json:"tracepoints"`
}

// Match snaps each input point to the road network. The returned slice has
// one entry per input point, in order; a nil entry means that point's
// tracepoint was null (no snap). On transport failure or malformed JSON the
// whole batch fails: Match returns a non-nil *xerrors.OsrmBatchError and a
// nil slice, tagged with a correlation ID for log/warning correlation. The
// operator does not retry.
func (c *Client) Match(ctx context.Context, points []geo.Coord) ([]*geo.Coord, error) {
	correlationID := uuid.NewString()

	url := c.MatchBaseURL + coordString(points) + "?overview=false"
	req, cancel, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "match", Cause: err}
	}
	defer cancel()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "match", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "match", Cause: fmt.Errorf("osrm match returned status %d", resp.StatusCode)}
	}

	var body matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "match", Cause: fmt.Errorf("decode match response: %w", err)}
	}
	if len(body.Tracepoints) != len(points) {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "match", Cause: fmt.Errorf("expected %d tracepoints, got %d", len(points), len(body.Tracepoints))}
	}

	out := make([]*geo.Coord, len(points))
	for i, tp := range body.Tracepoints {
		if tp == nil || len(tp.Location) != 2 {
			continue
		}
		out[i] = &geo.Coord{Lon: tp.Location[0], Lat: tp.Location[1]}
	}
	return out, nil
}

type routeGeometry struct {
	Coordinates [][]float64 `json:"coordinates"` // [[lon,lat], ...]
}

type route struct {
	Geometry routeGeometry `json:"geometry"`
}

type routeResponse struct {
	Routes []route `json:"routes"`
}

// Route returns the ordered driving-path coordinates between a and b,
// including both endpoints, or a *xerrors.OsrmBatchError on failure.
func (c *Client) Route(ctx context.Context, a, b geo.Coord) ([]geo.Coord, error) {
	correlationID := uuid.NewString()

	url := c.RouteBaseURL + coordString([]geo.Coord{a, b}) + "?overview=full&geometries=geojson"
	req, cancel, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: err}
	}
	defer cancel()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: fmt.Errorf("osrm route returned status %d", resp.StatusCode)}
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: fmt.Errorf("decode route response: %w", err)}
	}
	if len(body.Routes) == 0 {
		return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: fmt.Errorf("no routes returned")}
	}

	coords := body.Routes[0].Geometry.Coordinates
	out := make([]geo.Coord, len(coords))
	for i, c := range coords {
		if len(c) != 2 {
			return nil, &xerrors.OsrmBatchError{CorrelationID: correlationID, Operation: "route", Cause: fmt.Errorf("malformed geometry coordinate at index %d", i)}
		}
		out[i] = geo.Coord{Lon: c[0], Lat: c[1]}
	}
	return out, nil
}
