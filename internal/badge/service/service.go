package service

import (
	"context"
	"errors"
	"log/slog"

	"emblem/internal/badge/models"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/platform/sentinel"
	"emblem/pkg/requestcontext"
)

// Store defines the persistence interface for badge types.
// Error Contract:
// - GetByID / GetByKey return sentinel.ErrNotFound when no badge type exists
// - Create returns sentinel.ErrConflict on duplicate key or ledger id
// - Update returns sentinel.ErrNotFound when the row is gone
type Store interface {
	Create(ctx context.Context, badge *models.BadgeType) error
	GetByID(ctx context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error)
	GetByKey(ctx context.Context, key string) (*models.BadgeType, error)
	List(ctx context.Context, filter *models.BadgeTypeFilter) ([]*models.BadgeType, error)
	Update(ctx context.Context, badge *models.BadgeType) error
}

// Service owns the badge type lifecycle: creation, administrative update and
// deactivation. Badge types are never deleted; deactivation removes them from
// eligibility while keeping the mint history intact.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateParams carries the issuer-supplied definition of a new badge type.
type CreateParams struct {
	Key         string
	Name        string
	Description string
	ImageURL    string
	LedgerID    int64
	IssuerID    id.IssuerID
	WebhookURL  string
	Rules       models.Rules
}

// UpdateParams lists the administratively mutable fields; nil means unchanged.
// Key and ledger id are fixed at creation.
type UpdateParams struct {
	Name        *string
	Description *string
	ImageURL    *string
	WebhookURL  *string
	Rules       *models.Rules
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*models.BadgeType, error) {
	now := requestcontext.Now(ctx)
	badge, err := models.NewBadgeType(id.NewBadgeTypeID(), params.Key, params.Name, params.LedgerID, params.IssuerID, params.Rules, now)
	if err != nil {
		return nil, err
	}
	badge.Description = params.Description
	badge.ImageURL = params.ImageURL
	badge.WebhookURL = params.WebhookURL

	if err := s.store.Create(ctx, badge); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "badge type key or ledger id already in use")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create badge type")
	}

	s.logger.InfoContext(ctx, "badge_type_created",
		"badge_type", badge.Key,
		"ledger_id", badge.LedgerID,
		"issuer_id", badge.IssuerID.String(),
		"primary_providers", len(badge.Rules.Primary),
		"secondary_rules", len(badge.Rules.Secondary),
	)
	return badge, nil
}

func (s *Service) Update(ctx context.Context, badgeID id.BadgeTypeID, params UpdateParams) (*models.BadgeType, error) {
	badge, err := s.getByID(ctx, badgeID)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if *params.Name == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "badge type name required")
		}
		badge.Name = *params.Name
	}
	if params.Description != nil {
		badge.Description = *params.Description
	}
	if params.ImageURL != nil {
		badge.ImageURL = *params.ImageURL
	}
	if params.WebhookURL != nil {
		badge.WebhookURL = *params.WebhookURL
	}
	if params.Rules != nil {
		if err := params.Rules.Validate(); err != nil {
			return nil, err
		}
		badge.Rules = *params.Rules
	}
	badge.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, badge); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update badge type")
	}

	s.logger.InfoContext(ctx, "badge_type_updated", "badge_type", badge.Key)
	return badge, nil
}

// Deactivate removes the badge type from eligibility. One-way from the
// service's point of view; reactivation is a manual operation.
func (s *Service) Deactivate(ctx context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error) {
	badge, err := s.getByID(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if !badge.IsActive {
		return nil, dErrors.New(dErrors.CodeConflict, "badge type already deactivated")
	}

	badge.IsActive = false
	badge.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, badge); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate badge type")
	}

	s.logger.InfoContext(ctx, "badge_type_deactivated", "badge_type", badge.Key)
	return badge, nil
}

// GetByKey resolves a badge type by its public handle.
func (s *Service) GetByKey(ctx context.Context, key string) (*models.BadgeType, error) {
	if err := models.ValidateKey(key); err != nil {
		return nil, err
	}
	badge, err := s.store.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read badge type")
	}
	return badge, nil
}

// GetByID resolves a badge type by its id.
func (s *Service) GetByID(ctx context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error) {
	return s.getByID(ctx, badgeID)
}

func (s *Service) List(ctx context.Context, filter *models.BadgeTypeFilter) ([]*models.BadgeType, error) {
	badges, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list badge types")
	}
	return badges, nil
}

func (s *Service) getByID(ctx context.Context, badgeID id.BadgeTypeID) (*models.BadgeType, error) {
	if badgeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "badge type ID required")
	}
	badge, err := s.store.GetByID(ctx, badgeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read badge type")
	}
	return badge, nil
}
