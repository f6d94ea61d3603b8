package domain

import (
	"fmt"
	"time"
)

type VoucherType string

const (
	VoucherFixed      VoucherType = "FIXED"      // flat amount off
	VoucherPercentage VoucherType = "PERCENTAGE" // percentage of cart total
)

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "ACTIVE"
	VoucherInactive VoucherStatus = "INACTIVE"
	VoucherExpired  VoucherStatus = "EXPIRED"
)

// Voucher is a promotional code. Zero values mean "unset" for the optional
// fields: MaxDiscount (percentage type only), MinPurchase, MaxUses,
// ExpiresAt.
type Voucher struct {
	ID          int64
	Code        string
	Type        VoucherType
	Discount    int64 // amount for FIXED, 0-100 for PERCENTAGE
	MaxDiscount int64
	MinPurchase int64
	MaxUses     int64
	UsedCount   int64
	ExpiresAt   *time.Time
	Status      VoucherStatus
}

// VoucherEvaluation is the outcome of applying a voucher to a cart total.
// When Valid is false, Message carries the user-facing rejection reason
// and Discount is zero.
type VoucherEvaluation struct {
	Valid    bool
	Message  string
	Discount int64
}

// EvaluateVoucher runs the eligibility checks in order, short-circuiting
// at the first failure, and computes the discount for the given cart
// total. It never mutates the voucher; redemption (the usage-counter
// increment) is a separate operation that runs only after the order is
// durably committed.
//
// A nil voucher means the code matched nothing.
func EvaluateVoucher(v *Voucher, cartTotal int64, now time.Time) VoucherEvaluation {
	if v == nil {
		return rejected("voucher not found")
	}
	if v.Status != VoucherActive {
		return rejected("voucher is not active")
	}
	if v.ExpiresAt != nil && !v.ExpiresAt.After(now) {
		return rejected("voucher has expired")
	}
	if v.MaxUses > 0 && v.UsedCount >= v.MaxUses {
		return rejected("voucher usage limit reached")
	}
	if cartTotal < v.MinPurchase {
		return rejected(fmt.Sprintf("minimum purchase amount is %d", v.MinPurchase))
	}

	var discount int64
	switch v.Type {
	case VoucherPercentage:
		discount = cartTotal * v.Discount / 100
		if v.MaxDiscount > 0 && discount > v.MaxDiscount {
			discount = v.MaxDiscount
		}
	default:
		discount = v.Discount
	}
	// The order total must stay non-negative.
	if discount > cartTotal {
		discount = cartTotal
	}

	return VoucherEvaluation{Valid: true, Discount: discount}
}

func rejected(msg string) VoucherEvaluation {
	return VoucherEvaluation{Valid: false, Message: msg}
}
