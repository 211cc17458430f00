package app

import (
	"errors"
	"strconv"

	apperrors "github.com/louisbranch/batchmessaging/internal/platform/errors"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/action"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/message"
	"github.com/louisbranch/batchmessaging/internal/services/batch/domain/reducer"
)

// domainError classifies err with a platform error code. The original error
// stays reachable through errors.Is and errors.As.
func domainError(err error) error {
	if err == nil {
		return nil
	}
	var existing *apperrors.Error
	if errors.As(err, &existing) {
		return err
	}

	var validation *message.ValidationError
	switch {
	case errors.As(err, &validation):
		wrapped := apperrors.Wrap(apperrors.CodeInvalidMessage, message.ErrInvalidMessage.Error(), err)
		wrapped.Metadata = map[string]string{"violations": strconv.Itoa(len(validation.Violations))}
		for _, v := range validation.Violations {
			wrapped.Violations = append(wrapped.Violations, apperrors.FieldViolation{
				Field:       v.Field,
				Description: v.Description,
			})
		}
		return wrapped
	case errors.Is(err, reducer.ErrStaleRead):
		return apperrors.Wrap(apperrors.CodeStaleRead, err.Error(), err)
	case errors.Is(err, action.ErrUnknownState):
		return apperrors.Wrap(apperrors.CodeUnknownActionState, err.Error(), err)
	case errors.Is(err, reducer.ErrCursorMismatch), errors.Is(err, action.ErrChainBroken):
		return apperrors.Wrap(apperrors.CodeCursorMismatch, err.Error(), err)
	default:
		return apperrors.Wrap(apperrors.CodeUnknown, err.Error(), err)
	}
}
