package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
)

const integrityPageSize = 500

// IntegrityReport summarizes a VerifyActionIntegrity pass.
type IntegrityReport struct {
	Batches  int
	Signed   int
	Unsigned int
	Tail     action.State
}

// VerifyActionIntegrity walks the whole log, recomputing the digest chain
// and checking every signature the keyring can verify. Unsigned batches are
// counted, not rejected; signed batches with no keyring are an error.
func (s *Store) VerifyActionIntegrity(ctx context.Context) (IntegrityReport, error) {
	if err := s.check(ctx); err != nil {
		return IntegrityReport{}, err
	}

	report := IntegrityReport{Tail: action.InitialState()}
	lastSeq := uint64(0)
	for {
		rows, err := s.sqlDB.QueryContext(ctx,
			`SELECT `+actionColumns+`, signature, key_id FROM actions WHERE seq > ? ORDER BY seq LIMIT ?`,
			int64(lastSeq), integrityPageSize,
		)
		if err != nil {
			return report, fmt.Errorf("list batches: %w", err)
		}

		n := 0
		for rows.Next() {
			var signature, keyID string
			batch, err := scanBatch(signedRow{rows: rows, signature: &signature, keyID: &keyID})
			if err != nil {
				rows.Close()
				return report, err
			}
			if batch.Seq != lastSeq+1 {
				rows.Close()
				return report, fmt.Errorf("action sequence gap: expected %d got %d", lastSeq+1, batch.Seq)
			}
			if err := batch.Verify(report.Tail); err != nil {
				rows.Close()
				return report, err
			}
			if signature == "" {
				report.Unsigned++
			} else {
				if s.keyring == nil {
					rows.Close()
					return report, fmt.Errorf("batch %d is signed but no keyring is configured", batch.Seq)
				}
				if err := s.keyring.VerifyState(batch.Seq, batch.State, signature, keyID); err != nil {
					rows.Close()
					return report, err
				}
				report.Signed++
			}
			report.Tail = batch.State
			report.Batches++
			lastSeq = batch.Seq
			n++
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return report, fmt.Errorf("list batches: %w", err)
		}
		if n < integrityPageSize {
			return report, nil
		}
	}
}

// signedRow appends the signature columns to a batch scan.
type signedRow struct {
	rows      rowScanner
	signature *string
	keyID     *string
}

func (r signedRow) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.signature, r.keyID)...)
}
