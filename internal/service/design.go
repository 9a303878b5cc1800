// Package service contains the business logic layer.
//
// This file implements the design service: quota-gated creation, reads,
// edits, soft deletion, and render retry.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/metrics"
	"github.com/printforge/printforge/internal/repository"
	"github.com/printforge/printforge/internal/validator"
)

// =============================================================================
// Interface Definition
// =============================================================================

// DesignService defines operations on customizable product designs.
type DesignService interface {
	// Create validates the payload, reserves one unit of the owner's
	// monthly quota, persists the design, and enqueues its render job.
	// The quota reservation and the enqueue commit atomically with the
	// design row.
	Create(ctx context.Context, userID uuid.UUID, productType domain.ProductType, data domain.DesignData) (*domain.Design, error)

	// Get returns a non-deleted design owned by the given user.
	Get(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error)

	// List returns a page of the user's non-deleted designs, newest first.
	List(ctx context.Context, params domain.ListDesignsParams) (*domain.ListDesignsResult, error)

	// UpdateData replaces the design payload. Only draft and failed
	// designs are editable; editing a failed design returns it to draft.
	UpdateData(ctx context.Context, userID, designID uuid.UUID, data domain.DesignData) (*domain.Design, error)

	// Retry re-enqueues rendering for a failed design without changing
	// its payload.
	Retry(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error)

	// SoftDelete hides the design. Quota consumed by the design is not
	// returned.
	SoftDelete(ctx context.Context, userID, designID uuid.UUID) error

	// Restore un-hides a soft-deleted design.
	Restore(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error)
}

// =============================================================================
// Implementation
// =============================================================================

type designService struct {
	store    repository.Store
	registry *validator.Registry
	logger   *slog.Logger
}

// NewDesignService creates a new DesignService.
func NewDesignService(store repository.Store, registry *validator.Registry, logger *slog.Logger) DesignService {
	return &designService{
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Create creates a design inside a single transaction: the subscription row
// is locked for update so concurrent creates by the same user serialize on
// the quota counter, and the render job becomes visible to workers only when
// the design commits.
func (s *designService) Create(ctx context.Context, userID uuid.UUID, productType domain.ProductType, data domain.DesignData) (*domain.Design, error) {
	const op = "design.create"

	design, err := domain.NewDesign(userID, productType, data, s.registry)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		sub, err := tx.GetSubscriptionByUserForUpdate(ctx, userID)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				return err
			}
			return domain.Internal(err, op, "failed to load subscription")
		}

		if err := sub.ValidateCanCreateDesign(); err != nil {
			if domain.ErrorCode(err) == domain.EQUOTA {
				metrics.QuotaRejections.Inc()
				s.logger.Info("Design quota exceeded",
					"user_id", userID,
					"plan", sub.Plan,
					"used", sub.DesignsThisMonth,
				)
			}
			return err
		}

		if err := tx.CreateDesign(ctx, design); err != nil {
			return domain.Internal(err, op, "failed to create design")
		}

		if err := sub.IncrementUsage(); err != nil {
			return err
		}
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return domain.Internal(err, op, "failed to update subscription usage")
		}

		if err := tx.EnqueueRenderJob(ctx, design.ID); err != nil {
			return domain.Internal(err, op, "failed to enqueue render job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DesignsCreated.WithLabelValues(productType.String()).Inc()
	s.logger.Info("Design created",
		"design_id", design.ID,
		"user_id", userID,
		"product_type", productType,
	)
	return design, nil
}

// Get returns the design if it exists, is not deleted, and belongs to the user.
func (s *designService) Get(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error) {
	const op = "design.get"

	design, err := s.store.GetDesignByID(ctx, designID)
	if err != nil {
		return nil, err
	}
	if design.UserID != userID {
		// Ownership mismatches look like absence to the caller.
		return nil, domain.NotFound(op, "design", designID.String())
	}
	return design, nil
}

// List returns a page of the user's designs.
func (s *designService) List(ctx context.Context, params domain.ListDesignsParams) (*domain.ListDesignsResult, error) {
	return s.store.ListDesignsByUser(ctx, params)
}

// UpdateData replaces the design payload after re-validation.
func (s *designService) UpdateData(ctx context.Context, userID, designID uuid.UUID, data domain.DesignData) (*domain.Design, error) {
	const op = "design.update_data"

	design, err := s.Get(ctx, userID, designID)
	if err != nil {
		return nil, err
	}

	if err := design.UpdateData(data, s.registry); err != nil {
		return nil, err
	}

	if err := s.store.UpdateDesign(ctx, design); err != nil {
		return nil, domain.Internal(err, op, "failed to update design")
	}

	s.logger.Info("Design updated", "design_id", designID, "user_id", userID)
	return design, nil
}

// Retry returns a failed design to draft and enqueues a fresh render job.
// It does not consume quota: the design already counted at creation.
func (s *designService) Retry(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error) {
	const op = "design.retry"

	var design *domain.Design
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		design, err = tx.GetDesignByID(ctx, designID)
		if err != nil {
			return err
		}
		if design.UserID != userID {
			return domain.NotFound(op, "design", designID.String())
		}
		if design.Status != domain.DesignStatusFailed {
			return domain.InvalidTransition(op, design.Status.String(), domain.DesignStatusDraft.String())
		}

		// Re-validating the unchanged payload drops the design back to
		// draft and clears the embedded error.
		data := design.Data.Clone()
		delete(data, domain.DataFieldError)
		if err := design.UpdateData(data, s.registry); err != nil {
			return err
		}
		if err := tx.UpdateDesign(ctx, design); err != nil {
			return domain.Internal(err, op, "failed to update design")
		}
		if err := tx.EnqueueRenderJob(ctx, design.ID); err != nil {
			return domain.Internal(err, op, "failed to enqueue render job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Design render retried", "design_id", designID, "user_id", userID)
	return design, nil
}

// SoftDelete hides the design from reads and listings.
func (s *designService) SoftDelete(ctx context.Context, userID, designID uuid.UUID) error {
	const op = "design.soft_delete"

	design, err := s.Get(ctx, userID, designID)
	if err != nil {
		return err
	}

	design.SoftDelete()
	if err := s.store.UpdateDesign(ctx, design); err != nil {
		return domain.Internal(err, op, "failed to delete design")
	}

	s.logger.Info("Design deleted", "design_id", designID, "user_id", userID)
	return nil
}

// Restore un-hides a soft-deleted design.
func (s *designService) Restore(ctx context.Context, userID, designID uuid.UUID) (*domain.Design, error) {
	const op = "design.restore"

	design, err := s.store.GetDesignByIDAny(ctx, designID)
	if err != nil {
		return nil, err
	}
	if design.UserID != userID {
		return nil, domain.NotFound(op, "design", designID.String())
	}

	if err := design.Restore(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDesign(ctx, design); err != nil {
		return nil, domain.Internal(err, op, "failed to restore design")
	}

	s.logger.Info("Design restored", "design_id", designID, "user_id", userID)
	return design, nil
}
