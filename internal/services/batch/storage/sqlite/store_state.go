package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
	"github.com/louisbranch/batchmessaging/internal/services/batch/storage"
)

// GetState returns the committed aggregate and cursor.
func (s *Store) GetState(ctx context.Context) (reducer.State, error) {
	if err := s.check(ctx); err != nil {
		return reducer.State{}, err
	}

	var (
		highest   int64
		stateRaw  []byte
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT highest_msg_num, action_state, updated_at FROM batch_state WHERE id = 1`,
	).Scan(&highest, &stateRaw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return reducer.State{}, storage.ErrNotFound
	}
	if err != nil {
		return reducer.State{}, fmt.Errorf("get batch state: %w", err)
	}

	cursor, err := action.StateFromBytes(stateRaw)
	if err != nil {
		return reducer.State{}, fmt.Errorf("get batch state: %w", err)
	}
	state := reducer.State{
		// Stored as the int64 with the same bits.
		HighestMsgNum: uint64(highest),
		ActionState:   cursor,
	}
	if updatedAt > 0 {
		state.UpdatedAt = fromMillis(updatedAt)
	}
	return state, nil
}

// CompareAndSwapState writes next when the stored aggregate and cursor still
// equal expected.
func (s *Store) CompareAndSwapState(ctx context.Context, expected, next reducer.State) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE batch_state
SET highest_msg_num = ?, action_state = ?, updated_at = ?
WHERE id = 1 AND highest_msg_num = ? AND action_state = ?`,
		int64(next.HighestMsgNum),
		next.ActionState[:],
		toMillis(next.UpdatedAt),
		int64(expected.HighestMsgNum),
		expected.ActionState[:],
	)
	if err != nil {
		return wrapBusy("swap batch state", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("swap batch state: %w", err)
	}
	if affected == 0 {
		return reducer.ErrStaleRead
	}
	return nil
}
