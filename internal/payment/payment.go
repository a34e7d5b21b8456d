// Package payment creates and settles manual payment requests. Settling a
// request is the only transition out of pending; turning it into a
// subscription is the entitlement layer's job.
package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/keylock"
	"github.com/BatmanBruc/bat-bot-leecher/internal/metrics"
	"github.com/BatmanBruc/bat-bot-leecher/internal/plans"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

const (
	DefaultTTL = 30 * time.Minute
	idLength   = 8
)

type Config struct {
	Payee string
	TTL   time.Duration
	Now   func() time.Time
}

type Service struct {
	store    types.StateStore
	locks    *keylock.Locker
	catalog  *plans.Catalog
	renderer types.PayoutRenderer
	payee    string
	ttl      time.Duration
	now      func() time.Time
}

func NewService(store types.StateStore, locks *keylock.Locker, catalog *plans.Catalog, renderer types.PayoutRenderer, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if renderer == nil {
		renderer = UPI{}
	}
	return &Service{
		store:    store,
		locks:    locks,
		catalog:  catalog,
		renderer: renderer,
		payee:    cfg.Payee,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

func (s *Service) Catalog() *plans.Catalog {
	return s.catalog
}

func (s *Service) CreateRequest(userID int64, planKey string) (*types.PaymentRecord, error) {
	plan, ok := s.catalog.Get(planKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownPlan, planKey)
	}

	id, err := s.newID()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &types.PaymentRecord{
		ID:                id,
		UserID:            userID,
		PlanKey:           plan.Key,
		PlanName:          plan.Name,
		Amount:            plan.Price,
		Hours:             plan.Hours,
		Status:            types.PaymentPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
		PayoutInstruction: s.renderer.RenderPayout(s.payee, plan.Price, id),
	}

	unlock := s.locks.Lock(keylock.PaymentKey(id))
	defer unlock()
	if err := s.store.PutPayment(record); err != nil {
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues("created").Inc()
	log.Info().Int64("user_id", userID).Str("payment_id", id).Str("plan", plan.Key).Int64("amount", plan.Price).Msg("Payment request created")
	return record, nil
}

func (s *Service) Get(paymentID string) (*types.PaymentRecord, error) {
	id, err := NormalizeID(paymentID)
	if err != nil {
		return nil, err
	}
	return s.store.GetPayment(id)
}

// SettleHook runs under the payment lock just before the record flips to
// completed. An error aborts the settlement; rollback, if non-nil, is called
// when the status write itself fails.
type SettleHook func(record *types.PaymentRecord) (rollback func(), err error)

// Settle moves a payable record to completed and returns it. It reports
// ErrPaymentAlreadySettled for completed records and ErrPaymentExpired for
// records past expiresAt, marking the latter expired on the way.
func (s *Service) Settle(paymentID string, hook SettleHook) (*types.PaymentRecord, error) {
	id, err := NormalizeID(paymentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.PaymentKey(id))
	defer unlock()

	record, err := s.store.GetPayment(id)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case types.PaymentCompleted:
		return record, fmt.Errorf("%w: %s", types.ErrPaymentAlreadySettled, id)
	case types.PaymentExpired:
		return record, fmt.Errorf("%w: %s", types.ErrPaymentExpired, id)
	}
	if !record.Payable(s.now()) {
		if _, err := s.store.SetPaymentStatus(id, types.PaymentExpired); err != nil {
			return nil, err
		}
		record.Status = types.PaymentExpired
		return record, fmt.Errorf("%w: %s", types.ErrPaymentExpired, id)
	}

	var rollback func()
	if hook != nil {
		rollback, err = hook(record.Clone())
		if err != nil {
			return nil, err
		}
	}

	ok, err := s.store.SetPaymentStatus(id, types.PaymentCompleted)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", types.ErrPaymentNotFound, id)
	}
	if err != nil {
		if rollback != nil {
			rollback()
		}
		return nil, err
	}
	return s.store.GetPayment(id)
}

// Confirm is the boolean form of Settle: false for unknown, settled or
// expired payments.
func (s *Service) Confirm(paymentID string) (bool, error) {
	_, err := s.Settle(paymentID, nil)
	if err == nil {
		return true, nil
	}
	if isNegative(err) {
		return false, nil
	}
	return false, err
}

// Pending returns the user's payments that are still payable.
func (s *Service) Pending(userID int64) ([]*types.PaymentRecord, error) {
	all, err := s.store.PaymentsByUser(userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*types.PaymentRecord, 0, len(all))
	for _, p := range all {
		if p.Payable(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) newID() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id := strings.ToUpper(uuid.New().String()[:idLength])
		_, err := s.store.GetPayment(id)
		if errors.Is(err, types.ErrPaymentNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("payment: could not allocate a unique id")
}

// NormalizeID trims and upper-cases a typed payment id and checks its shape.
func NormalizeID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if len(id) != idLength {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidPaymentID, raw)
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return "", fmt.Errorf("%w: %q", types.ErrInvalidPaymentID, raw)
		}
	}
	return id, nil
}

func isNegative(err error) bool {
	return errors.Is(err, types.ErrPaymentNotFound) ||
		errors.Is(err, types.ErrPaymentAlreadySettled) ||
		errors.Is(err, types.ErrPaymentExpired) ||
		errors.Is(err, types.ErrInvalidPaymentID)
}
