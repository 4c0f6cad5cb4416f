package service

import (
	"errors"

	"github.com/utafrali/techstore/internal/domain"
	apperrors "github.com/utafrali/techstore/pkg/errors"
)

// storeErr keeps domain and application errors intact and turns anything
// else the store returned into a retryable persistence failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Persistence(err)
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConcurrencyConflict)
}
