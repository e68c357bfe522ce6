package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// PostgresStore persists wallet users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed wallet store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureExists(ctx context.Context, address id.WalletAddress, seenAt time.Time, userAgent string) (*User, error) {
	query := `
		INSERT INTO wallets (address, first_seen_at, last_seen_at, user_agent)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (address) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			user_agent = CASE WHEN EXCLUDED.user_agent <> '' THEN EXCLUDED.user_agent ELSE wallets.user_agent END
		RETURNING address, did, did_provider, first_seen_at, last_seen_at, user_agent
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, string(address), seenAt, userAgent))
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) Get(ctx context.Context, address id.WalletAddress) (*User, error) {
	query := `
		SELECT address, did, did_provider, first_seen_at, last_seen_at, user_agent
		FROM wallets
		WHERE address = $1
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, string(address)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) SetDID(ctx context.Context, address id.WalletAddress, did, provider string, at time.Time) error {
	query := `
		UPDATE wallets
		SET did = $2, did_provider = $3, last_seen_at = $4
		WHERE address = $1
	`
	res, err := s.db.ExecContext(ctx, query, string(address), did, provider, at)
	if err != nil {
		return fmt.Errorf("set wallet did: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set wallet did rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var address string
	var did, didProvider sql.NullString
	if err := row.Scan(&address, &did, &didProvider, &user.FirstSeenAt, &user.LastSeenAt, &user.UserAgent); err != nil {
		return nil, err
	}
	user.Address = id.WalletAddress(address)
	user.DID = did.String
	user.DIDProvider = didProvider.String
	return &user, nil
}
