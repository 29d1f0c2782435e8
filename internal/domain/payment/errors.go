package payment

import (
	"fmt"

	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// Domain errors for payments and refunds.
var (
	ErrTransactionNotFound      = fmt.Errorf("transaction not found: %w", apperrors.ErrNotFound)
	ErrRefundNotFound           = fmt.Errorf("refund not found: %w", apperrors.ErrNotFound)
	ErrTransactionNotRefundable = fmt.Errorf("only completed transactions can be refunded: %w", apperrors.ErrInvalidState)
	ErrInvalidTransition        = fmt.Errorf("invalid transaction state transition: %w", apperrors.ErrInvalidState)
	ErrInvalidRefundAmount      = fmt.Errorf("invalid refund amount: %w", apperrors.ErrInvalidInput)
	ErrUnsupportedMethod        = fmt.Errorf("invalid payment method: %w", apperrors.ErrInvalidInput)
	ErrMissingPaymentFields     = fmt.Errorf("session id and payment method are required: %w", apperrors.ErrInvalidInput)
)
