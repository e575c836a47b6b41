package shingle

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/record-linkage/internal/workers"
)

// BuildAll fingerprints every record in parallel. salts may be nil; when
// given it must have one entry per record.
func BuildAll(ctx context.Context, records []string, shingleLen int, salts []string, numWorkers int) ([]Set, error) {
	if salts != nil && len(salts) != len(records) {
		return nil, fmt.Errorf("salts: got %d for %d records", len(salts), len(records))
	}
	return workers.Map(ctx, len(records), numWorkers, func(i int) Set {
		if salts != nil {
			return BuildSalted(records[i], shingleLen, i, salts[i])
		}
		return Build(records[i], shingleLen, i)
	})
}
