// Package selector picks the final record of a run.
package selector

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/fyrsmithlabs/recur/internal/record"
)

// ErrEmpty is returned when Select is given no records.
var ErrEmpty = errors.New("no records to select from")

// Select returns the first record holding the maximum score. Every record
// must be scored.
func Select(records []*record.Record) (*record.Record, error) {
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	var (
		best      *record.Record
		bestScore float64
	)
	for i, r := range records {
		score, err := r.MustScore()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if best == nil || score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, nil
}

// Reorder returns a shuffled copy of records. The multiset is unchanged.
//
// Reorder has no effect on the outcome of Select, which scans the whole
// collection for its maximum; it exists so callers can show that result does
// not depend on generation order. It is not a tie-breaker. A nil rng uses
// the package source.
func Reorder(records []*record.Record, rng *rand.Rand) []*record.Record {
	out := make([]*record.Record, len(records))
	copy(out, records)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
