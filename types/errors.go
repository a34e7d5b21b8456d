package types

import "errors"

var (
	ErrUnknownPlan           = errors.New("unknown plan")
	ErrInvalidPaymentID      = errors.New("invalid payment id")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentAlreadySettled = errors.New("payment already settled")
	ErrPaymentExpired        = errors.New("payment expired")
	ErrTokenNotRedeemable    = errors.New("token not redeemable")
	ErrNotOperator           = errors.New("operator privileges required")
	ErrActiveSubscription    = errors.New("subscription already active")
	ErrTooManyPending        = errors.New("too many pending payments")
)
