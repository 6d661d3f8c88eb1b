package services

import (
	"errors"
	"fmt"
)

// Promotion rule codes. Every code is an expected business outcome carried to
// the caller for client-side messaging, never a fault.
const (
	CodeCouponNotFound           = "coupon_not_found"
	CodeCouponNotValid           = "coupon_not_valid"
	CodeCouponNotPermittedUser   = "coupon_not_permitted_user"
	CodeCouponNotPermittedWH     = "coupon_not_permitted_warehouse"
	CodeCouponNotPermittedCat    = "coupon_not_permitted_category"
	CodeCouponMinAmount          = "coupon_min_amount"
	CodeCouponRedeemedLimit      = "coupon_redeemed_limit"
	CodeCouponRedeemedOrdersFrom = "coupon_redeemed_orders_from"
	CodeCouponRedeemedOrdersTo   = "coupon_redeemed_orders_to"
	CodeCouponRedeemed           = "coupon_redeemed"
	CodeReferralSelfUsage        = "referral_self_usage"
	CodeReferralLimit            = "referral_limit"
	CodeUserNotEligible          = "user_not_eligible"
	CodeGiftSettingsNotFound     = "gift_settings_not_found"
	CodeGiftMinSum               = "gift_min_sum"
	CodeWarehouseNotFound        = "warehouse_not_found"
)

// RuleError is a rejected promotion outcome: a machine-readable code plus
// structured details for the client. Two RuleErrors match under errors.Is when
// their codes agree, so callers can compare against the bare sentinels below.
type RuleError struct {
	Code    string
	Details map[string]any
}

// Error implements error.
func (e *RuleError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("promotion rule: %s", e.Code)
	}
	return fmt.Sprintf("promotion rule: %s %v", e.Code, e.Details)
}

// Is matches any RuleError with the same code.
func (e *RuleError) Is(target error) bool {
	var other *RuleError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// NewRuleError builds a RuleError for the given code and optional details.
func NewRuleError(code string, details map[string]any) *RuleError {
	return &RuleError{Code: code, Details: details}
}

// Bare sentinels for errors.Is comparisons.
var (
	ErrCouponNotFound           = &RuleError{Code: CodeCouponNotFound}
	ErrCouponNotValid           = &RuleError{Code: CodeCouponNotValid}
	ErrCouponNotPermittedUser   = &RuleError{Code: CodeCouponNotPermittedUser}
	ErrCouponNotPermittedWH     = &RuleError{Code: CodeCouponNotPermittedWH}
	ErrCouponNotPermittedCat    = &RuleError{Code: CodeCouponNotPermittedCat}
	ErrCouponMinAmount          = &RuleError{Code: CodeCouponMinAmount}
	ErrCouponRedeemedLimit      = &RuleError{Code: CodeCouponRedeemedLimit}
	ErrCouponRedeemedOrdersFrom = &RuleError{Code: CodeCouponRedeemedOrdersFrom}
	ErrCouponRedeemedOrdersTo   = &RuleError{Code: CodeCouponRedeemedOrdersTo}
	ErrCouponRedeemed           = &RuleError{Code: CodeCouponRedeemed}
	ErrReferralSelfUsage        = &RuleError{Code: CodeReferralSelfUsage}
	ErrReferralLimit            = &RuleError{Code: CodeReferralLimit}
	ErrUserNotEligible          = &RuleError{Code: CodeUserNotEligible}
	ErrGiftSettingsNotFound     = &RuleError{Code: CodeGiftSettingsNotFound}
	ErrGiftMinSum               = &RuleError{Code: CodeGiftMinSum}
	ErrWarehouseNotFound        = &RuleError{Code: CodeWarehouseNotFound}
)
