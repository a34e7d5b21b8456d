package types

import "time"

type UserRecord struct {
	UserID         int64           `json:"user_id"`
	DownloadsUsed  int             `json:"downloads_used"`
	Subscriptions  []Subscription  `json:"subscriptions"`
	Tokens         []IssuedToken   `json:"tokens"`
	VerifiedTokens []VerifiedToken `json:"verified_tokens"`
	TotalSpent     int64           `json:"total_spent"`
	TotalFiles     int             `json:"total_files"`
	JoinedAt       time.Time       `json:"joined_at"`
}

func NewUserRecord(userID int64, now time.Time) *UserRecord {
	return &UserRecord{
		UserID:         userID,
		Subscriptions:  []Subscription{},
		Tokens:         []IssuedToken{},
		VerifiedTokens: []VerifiedToken{},
		JoinedAt:       now.UTC(),
	}
}

// Clone returns a deep copy so stores never hand out shared slices.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Subscriptions = append([]Subscription{}, u.Subscriptions...)
	c.Tokens = append([]IssuedToken{}, u.Tokens...)
	c.VerifiedTokens = append([]VerifiedToken{}, u.VerifiedTokens...)
	return &c
}

type IssuedToken struct {
	Value         string    `json:"token"`
	CreatedAt     time.Time `json:"created"`
	ValidityHours int       `json:"validity_hours"`
	Used          bool      `json:"used"`
}

func (t IssuedToken) Validity() time.Duration {
	return time.Duration(t.ValidityHours) * time.Hour
}

// Redeemable reports whether the token is unused and now-createdAt < validity.
func (t IssuedToken) Redeemable(now time.Time) bool {
	return !t.Used && now.Sub(t.CreatedAt) < t.Validity()
}

type VerifiedToken struct {
	Value         string    `json:"token"`
	VerifiedAt    time.Time `json:"verified_at"`
	ValidityHours int       `json:"validity_hours"`
}

func (t VerifiedToken) ExpiresAt() time.Time {
	return t.VerifiedAt.Add(time.Duration(t.ValidityHours) * time.Hour)
}

func (t VerifiedToken) Live(now time.Time) bool {
	return now.Sub(t.VerifiedAt) < time.Duration(t.ValidityHours)*time.Hour
}

type Subscription struct {
	PaymentID string    `json:"payment_id"`
	Hours     int       `json:"hours"`
	Amount    int64     `json:"amount"`
	StartedAt time.Time `json:"start_time"`
	EndsAt    time.Time `json:"end_time"`
	Active    bool      `json:"active"`
}

func (s Subscription) Remaining(now time.Time) time.Duration {
	d := s.EndsAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
