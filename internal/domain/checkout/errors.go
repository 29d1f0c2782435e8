package checkout

import (
	"fmt"

	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// Domain errors for checkout sessions.
var (
	ErrSessionNotFound   = fmt.Errorf("checkout session not found: %w", apperrors.ErrNotFound)
	ErrSessionExpired    = fmt.Errorf("checkout session has expired: %w", apperrors.ErrExpired)
	ErrSessionNotPayable = fmt.Errorf("checkout session is not awaiting payment: %w", apperrors.ErrInvalidState)
	ErrInvalidTransition = fmt.Errorf("invalid session state transition: %w", apperrors.ErrInvalidState)
	ErrMissingUser       = fmt.Errorf("user id is required: %w", apperrors.ErrInvalidInput)
)
