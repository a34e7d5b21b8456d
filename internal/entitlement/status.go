package entitlement

import (
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

type Status struct {
	UserID        int64
	DownloadsUsed int
	FreeQuota     int
	FreeRemaining int
	Subscription  *ActiveSubscription
	Verification  *types.VerifiedToken
	VerifiedLeft  time.Duration
	TotalSpent    int64
	TotalFiles    int
	Purchases     int
	JoinedAt      time.Time
}

func (st Status) Premium() bool {
	return st.Subscription != nil
}

// Status is a read-mostly snapshot for display; remaining times are derived here.
func (s *Service) Status(userID int64) (Status, error) {
	sub, err := s.ActiveSubscription(userID)
	if err != nil {
		return Status{}, err
	}
	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return Status{}, err
	}

	now := s.now()
	st := Status{
		UserID:        userID,
		DownloadsUsed: user.DownloadsUsed,
		FreeQuota:     s.freeQuota,
		Subscription:  sub,
		TotalSpent:    user.TotalSpent,
		TotalFiles:    user.TotalFiles,
		Purchases:     len(user.Subscriptions),
		JoinedAt:      user.JoinedAt,
	}
	if left := s.freeQuota - user.DownloadsUsed; left > 0 {
		st.FreeRemaining = left
	}
	if v, ok := token.LiveVerification(user, now); ok {
		st.Verification = &v
		st.VerifiedLeft = v.ExpiresAt().Sub(now)
	}
	return st, nil
}
