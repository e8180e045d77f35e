package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"

    "github.com/yourorg/presentation-api/internal/deliver"
    "github.com/yourorg/presentation-api/internal/quota"
    "github.com/yourorg/presentation-api/internal/tier"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, err }
    db.SetMaxOpenConns(10)
    db.SetMaxIdleConns(5)
    db.SetConnMaxLifetime(30 * time.Minute)
    return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
    stmts := []string{
        `CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
        `CREATE TABLE IF NOT EXISTS accounts (
            id              TEXT PRIMARY KEY,
            tier            TEXT NOT NULL DEFAULT 'basic',
            email           TEXT,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE TABLE IF NOT EXISTS usage_counters (
            account_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            period          TEXT NOT NULL,
            used            INT NOT NULL DEFAULT 0,
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (account_id, period)
        );`,
        `CREATE TABLE IF NOT EXISTS export_authorizations (
            token           TEXT PRIMARY KEY,
            account_id      TEXT NOT NULL,
            period          TEXT NOT NULL,
            committed_at    TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE INDEX IF NOT EXISTS idx_authorizations_account ON export_authorizations(account_id, period);`,
        `CREATE TABLE IF NOT EXISTS delivery_receipts (
            id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            receipt_id      TEXT NOT NULL,
            account_id      TEXT NOT NULL,
            channel         TEXT NOT NULL,
            provider_id     TEXT,
            filename        TEXT,
            sent_at         TIMESTAMPTZ NOT NULL,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE INDEX IF NOT EXISTS idx_receipts_account ON delivery_receipts(account_id, created_at DESC);`,
    }
    for _, q := range stmts {
        if _, err := s.DB.ExecContext(ctx, q); err != nil { return err }
    }
    return nil
}

// Account implements quota.SubscriptionStore.
func (s *Store) Account(ctx context.Context, accountID string) (quota.Account, error) {
    var raw string
    err := s.DB.QueryRowContext(ctx, `SELECT tier FROM accounts WHERE id=$1`, accountID).Scan(&raw)
    if errors.Is(err, sql.ErrNoRows) {
        return quota.Account{}, fmt.Errorf("account %s: %w", accountID, quota.ErrAccountNotFound)
    }
    if err != nil { return quota.Account{}, err }
    t, err := tier.Parse(raw)
    if err != nil { return quota.Account{}, err }
    return quota.Account{ID: accountID, Tier: t}, nil
}

// Usage implements quota.SubscriptionStore.
func (s *Store) Usage(ctx context.Context, accountID, period string) (int, error) {
    var used int
    err := s.DB.QueryRowContext(ctx,
        `SELECT COALESCE((SELECT used FROM usage_counters WHERE account_id=$1 AND period=$2), 0)`,
        accountID, period,
    ).Scan(&used)
    return used, err
}

// CommitAuthorization implements quota.SubscriptionStore. The token primary
// key is the idempotency gate: only the transaction that first records the
// token increments the counter.
func (s *Store) CommitAuthorization(ctx context.Context, accountID, period, token string) (bool, error) {
    if s.DB == nil { return false, errors.New("nil db") }
    tx, err := s.DB.BeginTx(ctx, nil)
    if err != nil { return false, err }
    defer func() { if err != nil { _ = tx.Rollback() } }()

    res, err := tx.ExecContext(ctx, `
        INSERT INTO export_authorizations (token, account_id, period)
        VALUES ($1,$2,$3)
        ON CONFLICT (token) DO NOTHING`,
        token, accountID, period,
    )
    if err != nil { return false, err }
    n, err := res.RowsAffected()
    if err != nil { return false, err }
    if n == 0 {
        // token already committed, nothing to charge
        err = tx.Commit()
        return false, err
    }

    if _, err = tx.ExecContext(ctx, `
        INSERT INTO usage_counters (account_id, period, used)
        VALUES ($1,$2,1)
        ON CONFLICT (account_id, period)
        DO UPDATE SET used = usage_counters.used + 1, updated_at = now()`,
        accountID, period,
    ); err != nil { return false, err }

    err = tx.Commit()
    if err != nil { return false, err }
    return true, nil
}

// SaveReceipt records a delivery receipt for reporting.
func (s *Store) SaveReceipt(ctx context.Context, accountID string, r *deliver.Receipt) error {
    _, err := s.DB.ExecContext(ctx, `
        INSERT INTO delivery_receipts (receipt_id, account_id, channel, provider_id, filename, sent_at)
        VALUES ($1,$2,$3,$4,$5,$6)`,
        r.ID, accountID, string(r.Channel), r.ProviderID, r.Filename, r.SentAt,
    )
    return err
}
