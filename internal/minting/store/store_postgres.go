package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"emblem/internal/minting/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// PostgresStore persists mint records in PostgreSQL. The partial unique
// index on (wallet_address, badge_type_id) over live rows is the
// authoritative uniqueness guard; Create reports its violation as a
// conflict.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed mint record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, wallet_address, badge_type_id, status, is_revoked, revoke_reason,
	revoked_at, token_id, tx_hash, failure_reason, metadata, created_at, updated_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.MintRecord) error {
	if record == nil {
		return fmt.Errorf("mint record is required")
	}
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO mint_records (id, wallet_address, badge_type_id, status, is_revoked, revoke_reason,
			revoked_at, token_id, tx_hash, failure_reason, metadata, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Wallet),
		uuid.UUID(record.BadgeTypeID),
		string(record.Status),
		record.IsRevoked,
		record.RevokeReason,
		nullableTime(record.RevokedAt),
		nullableInt(record.TokenID),
		record.TxHash,
		record.FailureReason,
		metadata,
		record.CreatedAt,
		record.UpdatedAt,
		nullableTime(record.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create mint record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, mintID id.MintID) (*models.MintRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM mint_records WHERE id = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, uuid.UUID(mintID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get mint record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindLive(ctx context.Context, wallet id.WalletAddress, badgeTypeID id.BadgeTypeID) (*models.MintRecord, error) {
	// At most one row matches thanks to the partial unique index.
	query := `
		SELECT ` + recordColumns + `
		FROM mint_records
		WHERE wallet_address = $1 AND badge_type_id = $2
			AND NOT is_revoked AND status <> $3
		LIMIT 1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query,
		string(wallet), uuid.UUID(badgeTypeID), string(models.StatusFailed)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find live mint record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet id.WalletAddress, filter *models.RecordFilter) ([]*models.MintRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM mint_records WHERE wallet_address = $1`
	args := []any{string(wallet)}
	if filter != nil {
		if filter.Status != nil {
			args = append(args, string(*filter.Status))
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filter.Revoked != nil {
			args = append(args, *filter.Revoked)
			query += fmt.Sprintf(" AND is_revoked = $%d", len(args))
		}
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mint records: %w", err)
	}
	defer rows.Close()

	var records []*models.MintRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mint record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mint records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.MintRecord) error {
	if record == nil {
		return fmt.Errorf("mint record is required")
	}
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}
	// Identity columns (wallet, badge type, created_at) stay as written at creation.
	query := `
		UPDATE mint_records
		SET status = $2, is_revoked = $3, revoke_reason = $4, revoked_at = $5,
			token_id = $6, tx_hash = $7, failure_reason = $8, metadata = $9,
			updated_at = $10, completed_at = $11
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		string(record.Status),
		record.IsRevoked,
		record.RevokeReason,
		nullableTime(record.RevokedAt),
		nullableInt(record.TokenID),
		record.TxHash,
		record.FailureReason,
		metadata,
		record.UpdatedAt,
		nullableTime(record.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update mint record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mint record rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode mint record metadata: %w", err)
	}
	return raw, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.MintRecord, error) {
	var record models.MintRecord
	var mintID, badgeTypeID uuid.UUID
	var wallet, status string
	var metadata []byte
	var tokenID sql.NullInt64
	var revokedAt, completedAt sql.NullTime
	if err := row.Scan(
		&mintID,
		&wallet,
		&badgeTypeID,
		&status,
		&record.IsRevoked,
		&record.RevokeReason,
		&revokedAt,
		&tokenID,
		&record.TxHash,
		&record.FailureReason,
		&metadata,
		&record.CreatedAt,
		&record.UpdatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	record.ID = id.MintID(mintID)
	record.Wallet = id.WalletAddress(wallet)
	record.BadgeTypeID = id.BadgeTypeID(badgeTypeID)
	record.Status = models.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode mint record metadata: %w", err)
		}
	}
	if tokenID.Valid {
		v := tokenID.Int64
		record.TokenID = &v
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		record.RevokedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}
	return &record, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
