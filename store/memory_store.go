package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// MemoryStore is the volatile default backend. Records live for the process
// lifetime and are copied on every read and write.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[int64]*types.UserRecord
	payments     map[string]*types.PaymentRecord
	userPayments map[int64][]string
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]*types.UserRecord),
		payments:     make(map[string]*types.PaymentRecord),
		userPayments: make(map[int64][]string),
		now:          time.Now,
	}
}

func (s *MemoryStore) GetOrCreateUser(userID int64) (*types.UserRecord, error) {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return u.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u.Clone(), nil
	}
	u = types.NewUserRecord(userID, s.now())
	s.users[userID] = u
	return u.Clone(), nil
}

func (s *MemoryStore) PutUser(user *types.UserRecord) error {
	if user == nil {
		return fmt.Errorf("put user: nil record")
	}
	s.mu.Lock()
	s.users[user.UserID] = user.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PutPayment(payment *types.PaymentRecord) error {
	if payment == nil || payment.ID == "" {
		return fmt.Errorf("put payment: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[payment.ID]; !exists {
		s.userPayments[payment.UserID] = append(s.userPayments[payment.UserID], payment.ID)
	}
	s.payments[payment.ID] = payment.Clone()
	return nil
}

func (s *MemoryStore) GetPayment(paymentID string) (*types.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrPaymentNotFound, paymentID)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) SetPaymentStatus(paymentID string, status types.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return false, nil
	}
	applyStatus(p, status, s.now())
	return true, nil
}

func (s *MemoryStore) PaymentsByUser(userID int64) ([]*types.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.userPayments[userID]
	out := make([]*types.PaymentRecord, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.payments[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func applyStatus(p *types.PaymentRecord, status types.PaymentStatus, now time.Time) {
	p.Status = status
	if status == types.PaymentCompleted {
		t := now.UTC()
		p.VerifiedAt = &t
	}
}
