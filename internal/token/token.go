// Package token issues and redeems the time-boxed verification tokens that
// grant temporary unlimited downloads after a monetised redirect.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/BatmanBruc/bat-bot-leecher/internal/keylock"
	"github.com/BatmanBruc/bat-bot-leecher/internal/metrics"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

const valueLength = 16

// LinkBuilder renders the verification URL that embeds the token and user id.
type LinkBuilder func(userID int64, token string) string

// DeepLink sends the user back to the bot with /start verify_<user>_<token>.
func DeepLink(botUsername string) LinkBuilder {
	return func(userID int64, token string) string {
		return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, StartPayload(userID, token))
	}
}

// QueryLink points at an external landing page: <base>?token=..&user=..
func QueryLink(base string) LinkBuilder {
	return func(userID int64, token string) string {
		q := url.Values{}
		q.Set("token", token)
		q.Set("user", strconv.FormatInt(userID, 10))
		return base + "?" + q.Encode()
	}
}

type Config struct {
	ValidityHours int
	Link          LinkBuilder
	Now           func() time.Time
}

type Service struct {
	store         types.StateStore
	locks         *keylock.Locker
	shortener     types.Shortener
	link          LinkBuilder
	validityHours int
	now           func() time.Time
}

func NewService(store types.StateStore, locks *keylock.Locker, shortener types.Shortener, cfg Config) *Service {
	if cfg.ValidityHours <= 0 {
		cfg.ValidityHours = 24
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Link == nil {
		cfg.Link = QueryLink("https://t.me/verify")
	}
	return &Service{
		store:         store,
		locks:         locks,
		shortener:     shortener,
		link:          cfg.Link,
		validityHours: cfg.ValidityHours,
		now:           cfg.Now,
	}
}

func (s *Service) ValidityHours() int {
	return s.validityHours
}

// IssueVerificationLink records a fresh token for the user and returns the
// (possibly shortened) verification URL along with the raw token value.
// The shortener runs outside the user lock; its failure only degrades the URL.
func (s *Service) IssueVerificationLink(ctx context.Context, userID int64) (string, string, error) {
	unlock := s.locks.Lock(keylock.UserKey(userID))
	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		unlock()
		return "", "", err
	}

	now := s.now().UTC()
	value, err := generateValue(userID, now, s.validityHours, user.Tokens)
	if err != nil {
		unlock()
		return "", "", err
	}
	user.Tokens = append(user.Tokens, types.IssuedToken{
		Value:         value,
		CreatedAt:     now,
		ValidityHours: s.validityHours,
	})
	err = s.store.PutUser(user)
	unlock()
	if err != nil {
		return "", "", err
	}
	metrics.TokensTotal.WithLabelValues("issued").Inc()

	long := s.link(userID, value)
	short := long
	if s.shortener != nil {
		short = s.shortener.Shorten(ctx, long)
	}
	if short == "" {
		short = long
	}
	log.Debug().Int64("user_id", userID).Bool("shortened", short != long).Msg("Verification link issued")
	return short, value, nil
}

// Redeem marks a matching unused, unexpired token as used and records a
// verification carrying the token's own validity. A false result with a nil
// error is the ordinary "not redeemable" outcome.
func (s *Service) Redeem(userID int64, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	unlock := s.locks.Lock(keylock.UserKey(userID))
	defer unlock()

	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	for i := range user.Tokens {
		t := &user.Tokens[i]
		if t.Value != value || !t.Redeemable(now) {
			continue
		}
		t.Used = true
		user.VerifiedTokens = append(user.VerifiedTokens, types.VerifiedToken{
			Value:         value,
			VerifiedAt:    now,
			ValidityHours: t.ValidityHours,
		})
		if err := s.store.PutUser(user); err != nil {
			return false, err
		}
		metrics.TokensTotal.WithLabelValues("redeemed").Inc()
		return true, nil
	}

	metrics.TokensTotal.WithLabelValues("rejected").Inc()
	return false, nil
}

func (s *Service) HasActiveVerification(userID int64) (bool, error) {
	user, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return false, err
	}
	_, ok := LiveVerification(user, s.now())
	return ok, nil
}

// LiveVerification returns the live verification that expires last, if any.
func LiveVerification(user *types.UserRecord, now time.Time) (types.VerifiedToken, bool) {
	var (
		best  types.VerifiedToken
		found bool
	)
	for _, v := range user.VerifiedTokens {
		if !v.Live(now) {
			continue
		}
		if !found || v.ExpiresAt().After(best.ExpiresAt()) {
			best = v
			found = true
		}
	}
	return best, found
}

func generateValue(userID int64, now time.Time, validityHours int, existing []types.IssuedToken) (string, error) {
	for attempt := 0; attempt < 4; attempt++ {
		var nonce [8]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return "", fmt.Errorf("token nonce: %w", err)
		}
		h := sha256.New()
		fmt.Fprintf(h, "%d:%d:%d:", userID, now.UnixNano(), validityHours)
		_ = binary.Write(h, binary.BigEndian, nonce)
		value := hex.EncodeToString(h.Sum(nil))[:valueLength]
		if !containsValue(existing, value) {
			return value, nil
		}
	}
	return "", fmt.Errorf("token: could not generate a unique value")
}

func containsValue(tokens []types.IssuedToken, value string) bool {
	for _, t := range tokens {
		if t.Value == value {
			return true
		}
	}
	return false
}
