package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"emblem/internal/verification/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// PostgresStore persists verification sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, wallet_address, provider, session_type, status, provider_ref,
	verification_url, did, metadata, failure_reason, created_at, expires_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	metadata, err := encodeMetadata(session.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO verification_sessions (id, wallet_address, provider, session_type, status, provider_ref,
			verification_url, did, metadata, failure_reason, created_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var storedID uuid.UUID
	err = s.db.QueryRowContext(ctx, query,
		uuid.UUID(session.ID),
		string(session.Wallet),
		session.Provider,
		string(session.Type),
		string(session.Status),
		session.ProviderRef,
		session.VerificationURL,
		session.DID,
		metadata,
		session.FailureReason,
		session.CreatedAt,
		nullableTime(session.ExpiresAt),
		nullableTime(session.CompletedAt),
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) GetByProviderRef(ctx context.Context, provider, ref string) (*models.Session, error) {
	if ref == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE provider = $1 AND provider_ref = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, provider, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session by provider ref: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet id.WalletAddress, filter *models.SessionFilter) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE wallet_address = $1`
	args := []any{string(wallet)}
	if filter != nil {
		if filter.Provider != nil {
			args = append(args, *filter.Provider)
			query += fmt.Sprintf(" AND provider = $%d", len(args))
		}
		if filter.Status != nil {
			args = append(args, string(*filter.Status))
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStore) FindUsable(ctx context.Context, wallet id.WalletAddress, provider string, now time.Time) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE wallet_address = $1 AND provider = $2 AND status = $3
			AND (expires_at IS NULL OR expires_at > $4)
		ORDER BY completed_at DESC NULLS LAST
		LIMIT 1
	`
	session, err := scanSession(s.db.QueryRowContext(ctx, query,
		string(wallet), provider, string(models.StatusCompleted), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find usable session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	metadata, err := encodeMetadata(session.Metadata)
	if err != nil {
		return err
	}
	// Identity columns (wallet, provider, type) stay as written at creation.
	query := `
		UPDATE verification_sessions
		SET status = $2, provider_ref = $3, verification_url = $4, did = $5,
			metadata = $6, failure_reason = $7, expires_at = $8, completed_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(session.ID),
		string(session.Status),
		session.ProviderRef,
		session.VerificationURL,
		session.DID,
		metadata,
		session.FailureReason,
		nullableTime(session.ExpiresAt),
		nullableTime(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time, limit int) ([]*models.Session, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		UPDATE verification_sessions
		SET status = $1, failure_reason = $2, completed_at = $3
		WHERE id IN (
			SELECT id FROM verification_sessions
			WHERE status = $4 AND expires_at IS NOT NULL AND expires_at <= $3
			ORDER BY expires_at
			LIMIT $5
		)
		RETURNING ` + sessionColumns
	rows, err := s.db.QueryContext(ctx, query,
		string(models.StatusExpired),
		models.ReasonExpired,
		now,
		string(models.StatusPending),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("expire due sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return sessions, nil
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode session metadata: %w", err)
	}
	return raw, nil
}

type sessionRow interface {
	Scan(dest ...any) error
}

func scanSession(row sessionRow) (*models.Session, error) {
	var session models.Session
	var sessionID uuid.UUID
	var wallet, sessionType, status string
	var metadata []byte
	var expiresAt, completedAt sql.NullTime
	if err := row.Scan(
		&sessionID,
		&wallet,
		&session.Provider,
		&sessionType,
		&status,
		&session.ProviderRef,
		&session.VerificationURL,
		&session.DID,
		&metadata,
		&session.FailureReason,
		&session.CreatedAt,
		&expiresAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	session.ID = id.SessionID(sessionID)
	session.Wallet = id.WalletAddress(wallet)
	session.Type = models.SessionType(sessionType)
	session.Status = models.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		session.ExpiresAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}
	return &session, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
