package operator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/timofeipermiakov/gpstrace/internal/geo"
	"github.com/timofeipermiakov/gpstrace/internal/osrm"
	"github.com/timofeipermiakov/gpstrace/internal/trace"
	"github.com/timofeipermiakov/gpstrace/internal/xerrors"
)

// maxConcurrentBatches bounds how many /match requests are in flight at
// once. OSRM batches are independent (each covers disjoint pings) so they
// dispatch concurrently, but an unbounded fan-out could overwhelm a small
// self-hosted OSRM instance.
const maxConcurrentBatches = 4

// MapMatchConfig configures MapMatch.
type MapMatchConfig struct {
	// PingBatchSize is the number of consecutive eligible pings sent in a
	// single OSRM /match request.
	PingBatchSize int
}

// DefaultMapMatchConfig returns spec.md's default batch size of 5.
func DefaultMapMatchConfig() MapMatchConfig {
	return MapMatchConfig{PingBatchSize: 5}
}

// Validate rejects a batch size that cannot form a meaningful match request.
// A batch size over 100 is permitted but a caller should treat it as a
// warning (see MapMatch's Result.Warnings): the OSRM server may reject it.
func (cfg MapMatchConfig) Validate() error {
	if cfg.PingBatchSize < 2 {
		return &xerrors.ValidationError{Field: "ping_batch_size", Index: -1, Reason: "must be >= 2"}
	}
	return nil
}

// batchOutcome holds one chunk's dispatch result, keyed by its position
// among chunks so results can be reassembled in order regardless of which
// goroutine finished first.
type batchOutcome struct {
	chunk   []int
	snapped []*geo.Coord
	err     error
}

// MapMatch partitions the eligible, non-null-coordinate pings into
// contiguous chunks of PingBatchSize and calls client.Match once per chunk,
// dispatching up to maxConcurrentBatches requests at a time. A snapped point
// that differs from the ping's current cleaned coordinate is applied and
// marked updated; a null tracepoint leaves the ping unchanged. A whole-batch
// failure leaves every ping in that batch unchanged and appends a warning;
// MapMatch does not retry. Mutations are applied in chunk order once every
// batch has returned, so the result is independent of request completion
// order.
func MapMatch(ctx context.Context, t *trace.Trace, client *osrm.Client, cfg MapMatchConfig) Result {
	res := Result{Operator: NameMapMatch}
	if cfg.PingBatchSize > 100 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ping_batch_size %d exceeds 100; the OSRM server may reject the batch", cfg.PingBatchSize))
	}

	indices := eligibleNonNull(t)

	var chunks [][]int
	for start := 0; start < len(indices); start += cfg.PingBatchSize {
		end := start + cfg.PingBatchSize
		if end > len(indices) {
			end = len(indices)
		}
		chunks = append(chunks, indices[start:end])
	}

	outcomes := make([]batchOutcome, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for idx, chunk := range chunks {
		idx, chunk := idx, chunk
		g.Go(func() error {
			points := make([]geo.Coord, len(chunk))
			for k, i := range chunk {
				c, _ := t.CoordOf(i)
				points[k] = c
			}
			snapped, err := client.Match(gctx, points)
			outcomes[idx] = batchOutcome{chunk: chunk, snapped: snapped, err: err}
			return nil
		})
	}
	// Errors are captured per-batch in outcomes, not propagated through the
	// group: one bad batch must not cancel the others.
	_ = g.Wait()

	for _, out := range outcomes {
		if out.err != nil {
			res.Warnings = append(res.Warnings, out.err.Error())
			continue
		}
		for k, i := range out.chunk {
			sp := out.snapped[k]
			if sp == nil {
				continue
			}
			cur, _ := t.CoordOf(i)
			if sp.Lat == cur.Lat && sp.Lon == cur.Lon {
				continue
			}
			t.At(i).MarkUpdated(sp.Lat, sp.Lon, NameMapMatch)
			res.Touched++
		}
	}

	return res
}
