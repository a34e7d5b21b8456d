package types

import "context"

// StateStore holds user and payment records. It carries no business logic;
// callers serialise read-modify-write cycles per record key.
type StateStore interface {
	GetOrCreateUser(userID int64) (*UserRecord, error)
	PutUser(user *UserRecord) error

	PutPayment(payment *PaymentRecord) error
	GetPayment(paymentID string) (*PaymentRecord, error)
	SetPaymentStatus(paymentID string, status PaymentStatus) (bool, error)
	PaymentsByUser(userID int64) ([]*PaymentRecord, error)
}

// Shortener wraps a long URL. Ordinary failures return the input unchanged.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}

type PayoutRenderer interface {
	RenderPayout(payee string, amount int64, paymentID string) string
}

type OperatorChecker interface {
	IsOperator(userID int64) bool
}
