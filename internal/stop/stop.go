// Package stop implements the two-stage stop-event detector: a temporal
// grouping pass over the cleaned, non-dropped sequence, followed by a
// spatial merge of the resulting groups' medoids.
package stop

import (
	"fmt"
	"sort"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/ping"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
)

// Config configures the detector. Field names and defaults follow spec.md
// section 4.7. MaxDistForMergingStopPoints is kept at its literal,
// unit-ambiguous default for documentation purposes only (see DESIGN.md);
// the spatial-merge stage compares medoids with geo.Haversine, which
// returns meters, so it is driven by the separate, clearly-metered
// MaxDistForMergingStopPointsM instead.
type Config struct {
	MaxDistBwConsecutivePings   float64
	MaxDistForMergingStopPoints float64

	// MaxDistForMergingStopPointsM is the merge-stage threshold actually
	// used, in meters. spec.md's own default (0.001) is degrees of
	// lat/lon under the library it was carried over from; comparing it
	// directly against a haversine meter distance would require medoids
	// within 1mm of each other to ever merge, which never happens for
	// real GPS data.
	MaxDistForMergingStopPointsM float64

	MinStayingTimeSeconds int64
	MinSize               int
}

// DefaultConfig returns spec.md's defaults, plus the metered merge
// threshold this implementation actually compares against.
func DefaultConfig() Config {
	return Config{
		MaxDistBwConsecutivePings:    10,
		MaxDistForMergingStopPoints:  0.001,
		MaxDistForMergingStopPointsM: 50,
		MinStayingTimeSeconds:        120,
		MinSize:                      2,
	}
}

// member is a single non-dropped ping's position and coordinate, indexed
// into the trace for annotation.
type member struct {
	idx   int
	coord geo.Coord
	ts    int64
}

// Event is a finished, spatially-merged stop event.
type Event struct {
	SequenceNumber int
	Representative geo.Coord
	FirstTimestamp int64
	LastTimestamp  int64
	MemberPingIDs  []string
	memberIdx      []int
}

// Detect runs the two-stage algorithm over t and annotates every ping that
// belongs to a final stop event with StopEventStatus, representative
// coordinates, sequence number and CumulativeStopEventTime (elapsed time
// since the stop's first member, formatted "Xm Ys"). Returns the ordered
// list of final events.
func Detect(t *trace.Trace, cfg Config) []Event {
	members := eligibleMembers(t)
	groups := temporalGroups(members, cfg)

	type candidate struct {
		members []member
		medoid  member
	}
	var candidates []candidate
	for _, g := range groups {
		if len(g) < cfg.MinSize {
			continue
		}
		span := g[len(g)-1].ts - g[0].ts
		if span < cfg.MinStayingTimeSeconds*1000 {
			continue
		}
		candidates = append(candidates, candidate{members: g, medoid: medoidOf(g)})
	}

	if len(candidates) == 0 {
		return nil
	}

	// Union-find over candidate medoids: an edge joins two candidates whose
	// medoids are within MaxDistForMergingStopPointsM.
	parent := make([]int, len(candidates))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if geo.Haversine(candidates[i].medoid.coord, candidates[j].medoid.coord) <= cfg.MaxDistForMergingStopPointsM {
				union(i, j)
			}
		}
	}

	componentOf := make(map[int][]int) // root -> candidate indices
	for i := range candidates {
		r := find(i)
		componentOf[r] = append(componentOf[r], i)
	}

	// Sort components by the earliest member ping's timestamp to assign
	// sequence numbers in that order.
	type component struct {
		members       []member
		earliest      int64
		candidateIdxs []int
	}
	var comps []component
	for _, idxs := range componentOf {
		var all []member
		earliest := int64(1<<63 - 1)
		for _, ci := range idxs {
			all = append(all, candidates[ci].members...)
			if candidates[ci].members[0].ts < earliest {
				earliest = candidates[ci].members[0].ts
			}
		}
		comps = append(comps, component{members: all, earliest: earliest, candidateIdxs: idxs})
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].earliest < comps[j].earliest })

	events := make([]Event, 0, len(comps))
	for seq, c := range comps {
		sort.Slice(c.members, func(i, j int) bool { return c.members[i].ts < c.members[j].ts })
		rep := medoidOf(c.members)

		ev := Event{
			SequenceNumber: seq + 1,
			Representative: rep.coord,
			FirstTimestamp: c.members[0].ts,
			LastTimestamp:  c.members[len(c.members)-1].ts,
		}
		for _, m := range c.members {
			ev.MemberPingIDs = append(ev.MemberPingIDs, t.At(m.idx).PingID)
			ev.memberIdx = append(ev.memberIdx, m.idx)
		}
		events = append(events, ev)
	}

	annotate(t, events)
	return events
}

func eligibleMembers(t *trace.Trace) []member {
	out := make([]member, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		p := t.At(i)
		if p.UpdateStatus == ping.StatusDropped {
			continue
		}
		c, ok := t.CoordOf(i)
		if !ok {
			continue
		}
		out = append(out, member{idx: i, coord: c, ts: p.Timestamp})
	}
	return out
}

// temporalGroups scans members in time order, starting a candidate group at
// each ping and extending it while the next ping stays within
// MaxDistBwConsecutivePings of the group's first ping.
func temporalGroups(members []member, cfg Config) [][]member {
	var groups [][]member
	i := 0
	for i < len(members) {
		group := []member{members[i]}
		j := i + 1
		for j < len(members) && geo.Haversine(members[i].coord, members[j].coord) <= cfg.MaxDistBwConsecutivePings {
			group = append(group, members[j])
			j++
		}
		groups = append(groups, group)
		if j == i { // safety: never happens since j>i always
			j++
		}
		i = j
	}
	return groups
}

// medoidOf returns the member minimizing the sum of great-circle distances
// to every other member in the group.
func medoidOf(g []member) member {
	best := g[0]
	bestSum := sumDist(g, 0)
	for k := 1; k < len(g); k++ {
		s := sumDist(g, k)
		if s < bestSum {
			bestSum = s
			best = g[k]
		}
	}
	return best
}

func sumDist(g []member, i int) float64 {
	var total float64
	for j := range g {
		if j == i {
			continue
		}
		total += geo.Haversine(g[i].coord, g[j].coord)
	}
	return total
}

// annotate writes StopEventStatus, representative coords, sequence number
// and a running "Xm Ys" cumulative stop time onto every member ping.
func annotate(t *trace.Trace, events []Event) {
	for _, ev := range events {
		lat, lon := ev.Representative.Lat, ev.Representative.Lon
		for _, idx := range ev.memberIdx {
			p := t.At(idx)
			p.StopEventStatus = true
			p.RepresentativeStopEventLatitude = &lat
			p.RepresentativeStopEventLongitude = &lon
			p.StopEventSequenceNumber = ev.SequenceNumber
			p.CumulativeStopEventTime = humanDuration(p.Timestamp - ev.FirstTimestamp)
		}
	}
}

// humanDuration formats a millisecond elapsed time as "Xm Ys".
func humanDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
