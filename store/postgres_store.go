package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists each user and payment as one JSONB document.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool, now: time.Now}
	if err := runMigrations(ctx, pool, "up"); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded migrations in the given direction: up, down or status.
func Migrate(ctx context.Context, dsn, direction string) error {
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()
	return runMigrations(ctx, pool, direction)
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "bot_leecher"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "bot_leecher"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, direction string) error {
	db := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	switch direction {
	case "", "up":
		return goose.UpContext(ctx, db, "migrations")
	case "down":
		return goose.DownContext(ctx, db, "migrations")
	case "status":
		return goose.StatusContext(ctx, db, "migrations")
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

func (s *PostgresStore) GetOrCreateUser(userID int64) (*types.UserRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fresh, err := json.Marshal(types.NewUserRecord(userID, s.now()))
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO users (user_id, data)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING
`, userID, fresh)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := s.pool.QueryRow(ctx, `SELECT data FROM users WHERE user_id = $1`, userID).Scan(&raw); err != nil {
		return nil, err
	}
	var u types.UserRecord
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user %d: %w", userID, err)
	}
	return &u, nil
}

func (s *PostgresStore) PutUser(user *types.UserRecord) error {
	if user == nil {
		return fmt.Errorf("put user: nil record")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO users (user_id, data)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
  data = EXCLUDED.data,
  updated_at = NOW();
`, user.UserID, data)
	return err
}

func (s *PostgresStore) PutPayment(payment *types.PaymentRecord) error {
	if payment == nil || payment.ID == "" {
		return fmt.Errorf("put payment: missing id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO payments (payment_id, user_id, status, data, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (payment_id) DO UPDATE SET
  status = EXCLUDED.status,
  data = EXCLUDED.data,
  updated_at = NOW();
`, payment.ID, payment.UserID, string(payment.Status), data, payment.CreatedAt)
	return err
}

func (s *PostgresStore) GetPayment(paymentID string) (*types.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM payments WHERE payment_id = $1`, paymentID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", types.ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	var p types.PaymentRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}
	return &p, nil
}

func (s *PostgresStore) SetPaymentStatus(paymentID string, status types.PaymentStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	err = tx.QueryRow(ctx, `
SELECT data
FROM payments
WHERE payment_id = $1
FOR UPDATE
`, paymentID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	var p types.PaymentRecord
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}
	applyStatus(&p, status, s.now())
	data, err := json.Marshal(&p)
	if err != nil {
		return false, err
	}
	_, err = tx.Exec(ctx, `
UPDATE payments
SET status = $2, data = $3, updated_at = NOW()
WHERE payment_id = $1
`, paymentID, string(status), data)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) PaymentsByUser(userID int64) ([]*types.PaymentRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT data
FROM payments
WHERE user_id = $1
ORDER BY created_at
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*types.PaymentRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p types.PaymentRecord
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
