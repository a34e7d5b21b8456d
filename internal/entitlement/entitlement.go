// Package entitlement decides whether a user may download right now and owns
// the subscription and quota mutations that feed that decision.
//
// A user is entitled when any of these holds, checked in order on every call:
// an unexpired active subscription, unused free quota, or a live verification.
// Subscription expiry is discovered lazily on read and may therefore lag by
// up to one check; there is no background sweep.
package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/keylock"
	"github.com/BatmanBruc/bat-bot-leecher/internal/metrics"
	"github.com/BatmanBruc/bat-bot-leecher/internal/payment"
	"github.com/BatmanBruc/bat-bot-leecher/internal/token"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

type Source string

const (
	SourceSubscription Source = "subscription"
	SourceQuota        Source = "quota"
	SourceVerification Source = "verification"
	SourceNone         Source = "denied"
)

type Decision struct {
	Allowed bool
	Source  Source
}

type ActiveSubscription struct {
	types.Subscription
	Remaining time.Duration
}

type Config struct {
	FreeQuota int
	// PendingLimit caps unexpired pending payments per user; zero disables the cap.
	PendingLimit int
	Now          func() time.Time
}

type Service struct {
	store        types.StateStore
	locks        *keylock.Locker
	tokens       *token.Service
	payments     *payment.Service
	operators    types.OperatorChecker
	freeQuota    int
	pendingLimit int
	now          func() time.Time
}

func NewService(store types.StateStore, locks *keylock.Locker, tokens *token.Service, payments *payment.Service, operators types.OperatorChecker, cfg Config) *Service {
	if cfg.FreeQuota < 0 {
		cfg.FreeQuota = 0
	}
	if cfg.PendingLimit < 0 {
		cfg.PendingLimit = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:        store,
		locks:        locks,
		tokens:       tokens,
		payments:     payments,
		operators:    operators,
		freeQuota:    cfg.FreeQuota,
		pendingLimit: cfg.PendingLimit,
		now:          cfg.Now,
	}
}

func (s *Service) FreeQuota() int {
	return s.freeQuota
}

func (s *Service) CanDownload(userID int64) (bool, error) {
	d, err := s.Check(userID)
	return d.Allowed, err
}

// Check evaluates the decision and reports which source granted it.
func (s *Service) Check(userID int64) (Decision, error) {
	sub, err := s.ActiveSubscription(userID)
	if err != nil {
		return Decision{Source: SourceNone}, err
	}
	if sub != nil {
		return s.decide(SourceSubscription), nil
	}

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return Decision{Source: SourceNone}, err
	}
	if user.DownloadsUsed < s.freeQuota {
		return s.decide(SourceQuota), nil
	}

	verified, err := s.tokens.HasActiveVerification(userID)
	if err != nil {
		return Decision{Source: SourceNone}, err
	}
	if verified {
		return s.decide(SourceVerification), nil
	}
	return s.decide(SourceNone), nil
}

func (s *Service) decide(src Source) Decision {
	metrics.EntitlementDecisionsTotal.WithLabelValues(string(src)).Inc()
	return Decision{Allowed: src != SourceNone, Source: src}
}

// ActiveSubscription returns the first active subscription that has not
// ended, flipping any stale active entries it passes to inactive.
func (s *Service) ActiveSubscription(userID int64) (*ActiveSubscription, error) {
	unlock := s.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range user.Subscriptions {
		sub := &user.Subscriptions[i]
		if !sub.Active {
			continue
		}
		if sub.EndsAt.After(now) {
			return &ActiveSubscription{Subscription: *sub, Remaining: sub.Remaining(now)}, nil
		}
		sub.Active = false
		if err := s.store.PutUser(user); err != nil {
			return nil, err
		}
		log.Debug().Int64("user_id", userID).Str("payment_id", sub.PaymentID).Msg("Subscription expired")
	}
	return nil, nil
}

// IncrementDownload records one consumed download. Call it only after a
// granted check and right before the download starts; concurrent pairs for
// one user may overshoot the free quota by the concurrency degree minus one.
func (s *Service) IncrementDownload(userID int64, fileSize int64, fileName string) error {
	unlock := s.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	user.DownloadsUsed++
	user.TotalFiles++
	if err := s.store.PutUser(user); err != nil {
		return err
	}
	log.Debug().Int64("user_id", userID).Int64("size", fileSize).Str("file", fileName).Int("downloads_used", user.DownloadsUsed).Msg("Download counted")
	return nil
}

// GrantSubscription appends a subscription starting now. It does not check
// for duplicates: settling a payment exactly once is what keeps it unique.
func (s *Service) GrantSubscription(userID int64, hours int, amount int64, paymentID string) (types.Subscription, error) {
	unlock := s.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return types.Subscription{}, err
	}
	now := s.now().UTC()
	sub := types.Subscription{
		PaymentID: paymentID,
		Hours:     hours,
		Amount:    amount,
		StartedAt: now,
		EndsAt:    now.Add(time.Duration(hours) * time.Hour),
		Active:    true,
	}
	user.Subscriptions = append(user.Subscriptions, sub)
	user.TotalSpent += amount
	if err := s.store.PutUser(user); err != nil {
		return types.Subscription{}, err
	}
	log.Info().Int64("user_id", userID).Int("hours", hours).Int64("amount", amount).Str("payment_id", paymentID).Msg("Subscription granted")
	return sub, nil
}

func (s *Service) revokeGrant(userID int64, paymentID string, amount int64) {
	unlock := s.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("payment_id", paymentID).Msg("Failed to load user for grant rollback")
		return
	}
	kept := user.Subscriptions[:0]
	removed := false
	for _, sub := range user.Subscriptions {
		if !removed && sub.PaymentID == paymentID {
			removed = true
			continue
		}
		kept = append(kept, sub)
	}
	if !removed {
		return
	}
	user.Subscriptions = kept
	user.TotalSpent -= amount
	if err := s.store.PutUser(user); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("payment_id", paymentID).Msg("Failed to roll back subscription grant")
	}
}

// StartPurchase applies the purchase policy and creates a pending payment.
// It refuses while a subscription is active and, when a pending limit is
// configured, while the user already holds that many payable requests.
func (s *Service) StartPurchase(userID int64, planKey string) (*types.PaymentRecord, error) {
	if _, ok := s.payments.Catalog().Get(planKey); !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownPlan, planKey)
	}
	active, err := s.ActiveSubscription(userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: ends %s", types.ErrActiveSubscription, active.EndsAt.Format(time.RFC3339))
	}
	if s.pendingLimit > 0 {
		pending, err := s.payments.Pending(userID)
		if err != nil {
			return nil, err
		}
		if len(pending) >= s.pendingLimit {
			return nil, fmt.Errorf("%w: %s", types.ErrTooManyPending, pending[len(pending)-1].ID)
		}
	}
	return s.payments.CreateRequest(userID, planKey)
}

// ConfirmPayment is the privileged settlement path. The operator check runs
// before any lookup. The subscription is appended while the payment lock is
// held, so a payment yields at most one subscription.
func (s *Service) ConfirmPayment(operatorID int64, paymentID string) (*types.PaymentRecord, types.Subscription, error) {
	if s.operators == nil || !s.operators.IsOperator(operatorID) {
		metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
		log.Warn().Int64("user_id", operatorID).Str("payment_id", paymentID).Msg("Payment confirmation attempted by non-operator")
		return nil, types.Subscription{}, types.ErrNotOperator
	}

	var granted types.Subscription
	record, err := s.payments.Settle(paymentID, func(rec *types.PaymentRecord) (func(), error) {
		sub, err := s.GrantSubscription(rec.UserID, rec.Hours, rec.Amount, rec.ID)
		if err != nil {
			return nil, err
		}
		granted = sub
		return func() { s.revokeGrant(rec.UserID, rec.ID, rec.Amount) }, nil
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("rejected").Inc()
		if !isOrdinary(err) {
			log.Error().Err(err).Str("payment_id", paymentID).Msg("Payment confirmation failed")
		}
		return record, types.Subscription{}, err
	}

	metrics.PaymentsTotal.WithLabelValues("confirmed").Inc()
	metrics.RevenueTotal.Add(float64(record.Amount))
	log.Info().Int64("operator_id", operatorID).Str("payment_id", record.ID).Int64("user_id", record.UserID).Msg("Payment confirmed")
	return record, granted, nil
}

// Verify redeems a verification token for the user.
func (s *Service) Verify(userID int64, value string) error {
	ok, err := s.tokens.Redeem(userID, value)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrTokenNotRedeemable
	}
	return nil
}

func isOrdinary(err error) bool {
	return errors.Is(err, types.ErrPaymentNotFound) ||
		errors.Is(err, types.ErrPaymentAlreadySettled) ||
		errors.Is(err, types.ErrPaymentExpired) ||
		errors.Is(err, types.ErrInvalidPaymentID)
}
