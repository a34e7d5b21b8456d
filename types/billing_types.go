package types

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentExpired   PaymentStatus = "expired"
)

type Plan struct {
	Key         string `json:"key"`
	Hours       int    `json:"hours"`
	Price       int64  `json:"price"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (p Plan) Duration() time.Duration {
	return time.Duration(p.Hours) * time.Hour
}

type PaymentRecord struct {
	ID                string        `json:"payment_id"`
	UserID            int64         `json:"user_id"`
	PlanKey           string        `json:"plan_key"`
	PlanName          string        `json:"plan_name"`
	Amount            int64         `json:"amount"`
	Hours             int           `json:"hours"`
	Status            PaymentStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	VerifiedAt        *time.Time    `json:"verified_at,omitempty"`
	PayoutInstruction string        `json:"upi_link"`
}

func (p *PaymentRecord) Clone() *PaymentRecord {
	if p == nil {
		return nil
	}
	c := *p
	if p.VerifiedAt != nil {
		v := *p.VerifiedAt
		c.VerifiedAt = &v
	}
	return &c
}

// Payable is true only for a pending record that has not passed expiresAt.
func (p *PaymentRecord) Payable(now time.Time) bool {
	return p.Status == PaymentPending && now.Before(p.ExpiresAt)
}
