package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/types"
)

// RedisStateStore keeps one JSON document per user id and per payment id.
// A ttl of zero keeps records until they are deleted out of band.
type RedisStateStore struct {
	client *RedisClient
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStateStore(redisClient *RedisClient, ttlHours int) *RedisStateStore {
	ttl := time.Duration(ttlHours) * time.Hour
	if ttlHours <= 0 {
		ttl = 0
	}

	return &RedisStateStore{
		client: redisClient,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStateStore) userKey(userID int64) string {
	return s.client.generateKey("user", strconv.FormatInt(userID, 10))
}

func (s *RedisStateStore) paymentKey(paymentID string) string {
	return s.client.generateKey("payment", paymentID)
}

func (s *RedisStateStore) userPaymentsKey(userID int64) string {
	return s.client.generateKey("user_payments", strconv.FormatInt(userID, 10))
}

func (s *RedisStateStore) GetOrCreateUser(userID int64) (*types.UserRecord, error) {
	key := s.userKey(userID)

	var user types.UserRecord
	err := s.client.Get(key, &user)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}

	fresh := types.NewUserRecord(userID, s.now())
	if _, err := s.client.SetNX(key, fresh, s.ttl); err != nil {
		return nil, fmt.Errorf("create user %d: %w", userID, err)
	}
	// Another writer may have won SetNX; read back whatever is stored.
	if err := s.client.Get(key, &user); err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return &user, nil
}

func (s *RedisStateStore) PutUser(user *types.UserRecord) error {
	if user == nil {
		return fmt.Errorf("put user: nil record")
	}
	return s.client.Set(s.userKey(user.UserID), user, s.ttl)
}

func (s *RedisStateStore) PutPayment(payment *types.PaymentRecord) error {
	if payment == nil || payment.ID == "" {
		return fmt.Errorf("put payment: missing id")
	}
	key := s.paymentKey(payment.ID)
	exists, err := s.client.Exists(key)
	if err != nil {
		return err
	}
	if err := s.client.Set(key, payment, s.ttl); err != nil {
		return err
	}
	if !exists {
		if err := s.client.RPush(s.userPaymentsKey(payment.UserID), payment.ID); err != nil {
			_ = s.client.Del(key)
			return err
		}
	}
	return nil
}

func (s *RedisStateStore) GetPayment(paymentID string) (*types.PaymentRecord, error) {
	var payment types.PaymentRecord
	if err := s.client.Get(s.paymentKey(paymentID), &payment); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", types.ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	return &payment, nil
}

func (s *RedisStateStore) SetPaymentStatus(paymentID string, status types.PaymentStatus) (bool, error) {
	payment, err := s.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, types.ErrPaymentNotFound) {
			return false, nil
		}
		return false, err
	}
	applyStatus(payment, status, s.now())
	if err := s.client.Set(s.paymentKey(paymentID), payment, s.ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStateStore) PaymentsByUser(userID int64) ([]*types.PaymentRecord, error) {
	ids, err := s.client.LRange(s.userPaymentsKey(userID))
	if err != nil {
		return nil, err
	}

	payments := make([]*types.PaymentRecord, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPayment(id)
		if err != nil {
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}
