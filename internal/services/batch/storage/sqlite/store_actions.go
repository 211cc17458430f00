package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/batchmessaging/internal/platform/codec"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage"
)

const actionColumns = `seq, call_id, batch_values, prev_state, action_state, created_at`

// AppendBatch commits values as one batch after the current log tail.
func (s *Store) AppendBatch(ctx context.Context, callID string, values []uint64) (action.Batch, error) {
	if err := s.check(ctx); err != nil {
		return action.Batch{}, err
	}
	if len(values) == 0 {
		return action.Batch{}, action.ErrEmptyBatch
	}
	encoded, err := codec.Marshal(values)
	if err != nil {
		return action.Batch{}, fmt.Errorf("encode batch values: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return action.Batch{}, wrapBusy("begin tx", err)
	}
	defer tx.Rollback()

	lastSeq := uint64(0)
	prev := action.InitialState()
	var lastSeqRaw int64
	var prevRaw []byte
	err = tx.QueryRowContext(ctx, `SELECT seq, action_state FROM actions ORDER BY seq DESC LIMIT 1`).Scan(&lastSeqRaw, &prevRaw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return action.Batch{}, wrapBusy("read log tail", err)
	default:
		lastSeq = uint64(lastSeqRaw)
		if prev, err = action.StateFromBytes(prevRaw); err != nil {
			return action.Batch{}, fmt.Errorf("read log tail: %w", err)
		}
	}

	next, err := action.Next(prev, values)
	if err != nil {
		return action.Batch{}, err
	}
	batch := action.Batch{
		Seq:       lastSeq + 1,
		CallID:    strings.TrimSpace(callID),
		Values:    append([]uint64(nil), values...),
		PrevState: prev,
		State:     next,
		CreatedAt: fromMillis(toMillis(s.now())),
	}

	var signature, keyID string
	if s.keyring != nil {
		signature, keyID, err = s.keyring.SignState(batch.Seq, batch.State)
		if err != nil {
			return action.Batch{}, fmt.Errorf("sign batch: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO actions (seq, call_id, batch_values, value_count, prev_state, action_state, signature, key_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(batch.Seq),
		batch.CallID,
		encoded,
		len(values),
		prev[:],
		next[:],
		signature,
		keyID,
		toMillis(batch.CreatedAt),
	); err != nil {
		return action.Batch{}, wrapBusy("insert batch", err)
	}

	if err := tx.Commit(); err != nil {
		return action.Batch{}, wrapBusy("commit batch", err)
	}
	return batch, nil
}

// FetchSince returns up to maxBatches batches following cursor.
func (s *Store) FetchSince(ctx context.Context, cursor action.State, maxBatches int) (action.Page, error) {
	if err := s.check(ctx); err != nil {
		return action.Page{}, err
	}
	if maxBatches <= 0 {
		maxBatches = reducer.DefaultMaxBatches
	}

	afterSeq, err := s.seqForState(ctx, cursor)
	if err != nil {
		return action.Page{}, err
	}
	batches, err := s.listAfter(ctx, afterSeq, maxBatches)
	if err != nil {
		return action.Page{}, err
	}

	page := action.Page{Batches: batches, State: cursor}
	if len(batches) > 0 {
		page.State = batches[len(batches)-1].State
	}
	return page, nil
}

// ListBatches returns batches with Seq greater than afterSeq.
func (s *Store) ListBatches(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.listAfter(ctx, afterSeq, storage.NormalizeLimit(limit))
}

// seqForState returns the seq of the batch that produced state, or 0 for the
// initial state.
func (s *Store) seqForState(ctx context.Context, state action.State) (uint64, error) {
	if state == action.InitialState() {
		return 0, nil
	}
	var seq int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT seq FROM actions WHERE action_state = ?`, state[:]).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", action.ErrUnknownState, state)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup action state: %w", err)
	}
	return uint64(seq), nil
}

func (s *Store) listAfter(ctx context.Context, afterSeq uint64, limit int) ([]action.Batch, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE seq > ? ORDER BY seq LIMIT ?`,
		int64(afterSeq), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []action.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (action.Batch, error) {
	var (
		seq       int64
		callID    string
		encoded   []byte
		prevRaw   []byte
		stateRaw  []byte
		createdAt int64
	)
	if err := row.Scan(&seq, &callID, &encoded, &prevRaw, &stateRaw, &createdAt); err != nil {
		return action.Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	batch := action.Batch{
		Seq:       uint64(seq),
		CallID:    callID,
		CreatedAt: fromMillis(createdAt),
	}
	if err := codec.Unmarshal(encoded, &batch.Values); err != nil {
		return action.Batch{}, fmt.Errorf("decode batch %d values: %w", seq, err)
	}
	var err error
	if batch.PrevState, err = action.StateFromBytes(prevRaw); err != nil {
		return action.Batch{}, fmt.Errorf("batch %d: %w", seq, err)
	}
	if batch.State, err = action.StateFromBytes(stateRaw); err != nil {
		return action.Batch{}, fmt.Errorf("batch %d: %w", seq, err)
	}
	return batch, nil
}
