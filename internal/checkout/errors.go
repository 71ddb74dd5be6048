package checkout

import (
	"fmt"
	"net/http"

	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

// ErrTotalMismatch is returned when the submitted total differs from the cart total.
var ErrTotalMismatch = common.NewCodedError("TOTAL_MISMATCH", http.StatusUnprocessableEntity, "total does not match the cart")

// InsufficientPaymentError reports cash that does not cover the total.
type InsufficientPaymentError struct {
	Total pricing.Money
	Paid  pricing.Money
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("amount paid %d is less than total %d", e.Paid, e.Total)
}

// Is matches pricing.ErrInsufficientPayment.
func (e *InsufficientPaymentError) Is(target error) bool {
	return target == pricing.ErrInsufficientPayment
}

// ErrorCode implements common.Coded.
func (e *InsufficientPaymentError) ErrorCode() string { return "INSUFFICIENT_PAYMENT" }

// HTTPStatus implements common.Coded.
func (e *InsufficientPaymentError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// CheckPayment returns the change owed for paid against total.
func CheckPayment(total, paid pricing.Money) (pricing.Money, error) {
	change, err := pricing.Change(total, paid)
	if err != nil {
		return 0, &InsufficientPaymentError{Total: total, Paid: paid}
	}
	return change, nil
}
