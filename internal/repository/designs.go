package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/printforge/printforge/internal/domain"
)

const designColumns = `
	id, user_id, product_type, design_data, status,
	preview_url, thumbnail_url, is_deleted, created_at, updated_at`

// CreateDesign persists a new design.
func (q *Queries) CreateDesign(ctx context.Context, d *domain.Design) error {
	const op = "repository.create_design"

	_, err := q.db.Exec(ctx, `
		INSERT INTO designs (
			id, user_id, product_type, design_data, status,
			preview_url, thumbnail_url, is_deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.UserID, d.ProductType, d.Data, d.Status,
		d.PreviewURL, d.ThumbnailURL, d.IsDeleted, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to create design")
	}
	return nil
}

// GetDesignByID fetches a design, excluding soft-deleted ones.
func (q *Queries) GetDesignByID(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	return q.getDesign(ctx, id, false)
}

// GetDesignByIDAny fetches a design regardless of the soft-delete flag.
// Administrative access only.
func (q *Queries) GetDesignByIDAny(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	return q.getDesign(ctx, id, true)
}

func (q *Queries) getDesign(ctx context.Context, id uuid.UUID, includeDeleted bool) (*domain.Design, error) {
	const op = "repository.get_design"

	query := `SELECT ` + designColumns + ` FROM designs WHERE id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}

	var d domain.Design
	err := q.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.UserID, &d.ProductType, &d.Data, &d.Status,
		&d.PreviewURL, &d.ThumbnailURL, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "design", id.String())
		}
		return nil, domain.Internal(err, op, "failed to fetch design")
	}
	return &d, nil
}

// UpdateDesign persists entity state produced by the design state machine.
func (q *Queries) UpdateDesign(ctx context.Context, d *domain.Design) error {
	const op = "repository.update_design"

	tag, err := q.db.Exec(ctx, `
		UPDATE designs SET
			design_data = $2,
			status = $3,
			preview_url = $4,
			thumbnail_url = $5,
			is_deleted = $6,
			updated_at = $7
		WHERE id = $1`,
		d.ID, d.Data, d.Status, d.PreviewURL, d.ThumbnailURL, d.IsDeleted, d.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to update design")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "design", d.ID.String())
	}
	return nil
}

// ListDesignsByUser returns a page of a user's designs, newest first,
// excluding soft-deleted ones, together with the total count.
func (q *Queries) ListDesignsByUser(ctx context.Context, params domain.ListDesignsParams) (*domain.ListDesignsResult, error) {
	const op = "repository.list_designs"

	total, err := q.CountDesignsByUser(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(ctx, `
		SELECT `+designColumns+`
		FROM designs
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		params.UserID, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list designs")
	}
	defer rows.Close()

	var designs []domain.Design
	for rows.Next() {
		var d domain.Design
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.ProductType, &d.Data, &d.Status,
			&d.PreviewURL, &d.ThumbnailURL, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, domain.Internal(err, op, "failed to scan design")
		}
		designs = append(designs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read designs")
	}

	return &domain.ListDesignsResult{
		Designs: designs,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

// CountDesignsByUser counts a user's designs, excluding soft-deleted ones.
func (q *Queries) CountDesignsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "repository.count_designs"

	var count int64
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM designs
		WHERE user_id = $1 AND is_deleted = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to count designs")
	}
	return count, nil
}

// ClaimDesignForRender transitions a design from draft to rendering as a
// single conditional update. This is the rendering lease: a design already
// past draft is not claimed again, so duplicate or retried jobs observe
// (nil, nil) and no-op instead of re-rendering.
func (q *Queries) ClaimDesignForRender(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	const op = "repository.claim_design"

	var d domain.Design
	err := q.db.QueryRow(ctx, `
		UPDATE designs SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1 AND status = $3 AND is_deleted = FALSE
		RETURNING `+designColumns,
		id, domain.DesignStatusRendering, domain.DesignStatusDraft,
	).Scan(
		&d.ID, &d.UserID, &d.ProductType, &d.Data, &d.Status,
		&d.PreviewURL, &d.ThumbnailURL, &d.IsDeleted, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to claim design for render")
	}
	return &d, nil
}

// ReleaseStaleRenders returns designs stuck in rendering longer than the
// threshold to draft, so a recovered job can re-claim the lease. Covers
// workers that crashed before running compensation.
func (q *Queries) ReleaseStaleRenders(ctx context.Context, threshold time.Duration) (int64, error) {
	const op = "repository.release_stale_renders"

	tag, err := q.db.Exec(ctx, `
		UPDATE designs SET
			status = $1,
			updated_at = NOW()
		WHERE status = $2
		  AND updated_at < NOW() - make_interval(secs => $3)`,
		domain.DesignStatusDraft, domain.DesignStatusRendering, threshold.Seconds(),
	)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to release stale renders")
	}
	return tag.RowsAffected(), nil
}
