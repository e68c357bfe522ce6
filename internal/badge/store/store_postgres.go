package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"emblem/internal/badge/models"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
)

// PostgresStore persists badge types in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed badge type store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const badgeTypeColumns = `id, slug, name, description, image_url, ledger_id, issuer_id, webhook_url,
	primary_providers, rule_logic, secondary_rules, active, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, badge *models.BadgeType) error {
	if badge == nil {
		return fmt.Errorf("badge type is required")
	}
	secondary, err := json.Marshal(badge.Rules.Secondary)
	if err != nil {
		return fmt.Errorf("encode secondary rules: %w", err)
	}
	query := `
		INSERT INTO badge_types (id, slug, name, description, image_url, ledger_id, issuer_id, webhook_url,
			primary_providers, rule_logic, secondary_rules, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var storedID uuid.UUID
	err = s.db.QueryRowContext(ctx, query,
		uuid.UUID(badge.ID),
		badge.Key,
		badge.Name,
		badge.Description,
		badge.ImageURL,
		badge.LedgerID,
		uuid.UUID(badge.IssuerID),
		badge.WebhookURL,
		pq.Array(badge.Rules.Primary),
		string(badge.Rules.Logic),
		secondary,
		badge.IsActive,
		badge.CreatedAt,
		badge.UpdatedAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create badge type: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error) {
	query := `SELECT ` + badgeTypeColumns + ` FROM badge_types WHERE id = $1`
	badge, err := scanBadgeType(s.db.QueryRowContext(ctx, query, uuid.UUID(badgeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get badge type: %w", err)
	}
	return badge, nil
}

func (s *PostgresStore) GetByKey(ctx context.Context, key string) (*models.BadgeType, error) {
	query := `SELECT ` + badgeTypeColumns + ` FROM badge_types WHERE slug = $1`
	badge, err := scanBadgeType(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get badge type by key: %w", err)
	}
	return badge, nil
}

func (s *PostgresStore) List(ctx context.Context, filter *models.BadgeTypeFilter) ([]*models.BadgeType, error) {
	query := `SELECT ` + badgeTypeColumns + ` FROM badge_types WHERE 1=1`
	var args []any
	if filter != nil {
		if filter.ActiveOnly {
			query += " AND active"
		}
		if filter.IssuerID != nil {
			args = append(args, uuid.UUID(*filter.IssuerID))
			query += fmt.Sprintf(" AND issuer_id = $%d", len(args))
		}
	}
	query += " ORDER BY slug"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list badge types: %w", err)
	}
	defer rows.Close()

	var badges []*models.BadgeType
	for rows.Next() {
		badge, err := scanBadgeType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge type: %w", err)
		}
		badges = append(badges, badge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badge types: %w", err)
	}
	return badges, nil
}

func (s *PostgresStore) Update(ctx context.Context, badge *models.BadgeType) error {
	if badge == nil {
		return fmt.Errorf("badge type is required")
	}
	secondary, err := json.Marshal(badge.Rules.Secondary)
	if err != nil {
		return fmt.Errorf("encode secondary rules: %w", err)
	}
	// slug and ledger_id stay as written at creation.
	query := `
		UPDATE badge_types
		SET name = $2, description = $3, image_url = $4, webhook_url = $5,
			primary_providers = $6, rule_logic = $7, secondary_rules = $8,
			active = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(badge.ID),
		badge.Name,
		badge.Description,
		badge.ImageURL,
		badge.WebhookURL,
		pq.Array(badge.Rules.Primary),
		string(badge.Rules.Logic),
		secondary,
		badge.IsActive,
		badge.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update badge type: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update badge type rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type badgeTypeRow interface {
	Scan(dest ...any) error
}

func scanBadgeType(row badgeTypeRow) (*models.BadgeType, error) {
	var badge models.BadgeType
	var badgeID, issuerID uuid.UUID
	var logic string
	var primary pq.StringArray
	var secondary []byte
	if err := row.Scan(
		&badgeID,
		&badge.Key,
		&badge.Name,
		&badge.Description,
		&badge.ImageURL,
		&badge.LedgerID,
		&issuerID,
		&badge.WebhookURL,
		&primary,
		&logic,
		&secondary,
		&badge.IsActive,
		&badge.CreatedAt,
		&badge.UpdatedAt,
	); err != nil {
		return nil, err
	}
	badge.ID = id.BadgeTypeID(badgeID)
	badge.IssuerID = id.IssuerID(issuerID)
	badge.Rules.Primary = []string(primary)
	badge.Rules.Logic = models.Logic(logic)
	if len(secondary) > 0 {
		if err := json.Unmarshal(secondary, &badge.Rules.Secondary); err != nil {
			return nil, fmt.Errorf("decode secondary rules: %w", err)
		}
	}
	return &badge, nil
}
