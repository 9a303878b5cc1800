package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/metrics"
	"github.com/printforge/printforge/internal/render"
	"github.com/printforge/printforge/internal/repository"
	"github.com/printforge/printforge/internal/storage"
	"github.com/printforge/printforge/internal/worker"
)

// DesignStore is the subset of repository operations the render handler needs.
type DesignStore interface {
	GetDesignByID(ctx context.Context, id uuid.UUID) (*domain.Design, error)
	ClaimDesignForRender(ctx context.Context, id uuid.UUID) (*domain.Design, error)
	UpdateDesign(ctx context.Context, d *domain.Design) error
}

// RenderDesignHandler processes jobs that rasterize a design's preview image,
// derive its thumbnail, upload both artifacts, and publish the design.
type RenderDesignHandler struct {
	store    DesignStore
	storage  storage.Storage
	renderer render.Renderer
	logger   *slog.Logger
}

// NewRenderDesignHandler creates a new handler for design render jobs.
func NewRenderDesignHandler(
	store DesignStore,
	st storage.Storage,
	renderer render.Renderer,
	logger *slog.Logger,
) *RenderDesignHandler {
	return &RenderDesignHandler{
		store:    store,
		storage:  st,
		renderer: renderer,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *RenderDesignHandler) Type() string {
	return repository.JobTypeRenderDesign
}

// Handle executes the render job. Missing designs fail permanently; designs
// that are no longer in draft (already claimed, published, or deleted) are
// treated as an idempotent no-op so redelivered jobs cannot double-render.
func (h *RenderDesignHandler) Handle(ctx context.Context, payload []byte) error {
	// 1. Unmarshal the payload
	var p repository.RenderDesignPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	// 2. Claim the render lease. The claim only succeeds while the design is
	// still in draft, which makes redelivery of the same job harmless.
	design, err := h.store.ClaimDesignForRender(ctx, p.DesignID)
	if err != nil {
		return fmt.Errorf("claim design for render: %w", err)
	}
	if design == nil {
		// Either the design no longer exists or it already moved past draft.
		existing, err := h.store.GetDesignByID(ctx, p.DesignID)
		if err != nil {
			if domain.ErrorCode(err) == domain.ENOTFOUND {
				return worker.NewPermanentError(fmt.Errorf("design not found: %s", p.DesignID))
			}
			return fmt.Errorf("fetch design: %w", err)
		}
		h.logger.Info("Design not claimable, skipping render",
			"design_id", p.DesignID,
			"status", existing.Status,
		)
		return nil
	}

	h.logger.Info("Rendering design",
		"design_id", design.ID,
		"product_type", design.ProductType,
	)

	if err := h.renderAndPublish(ctx, design); err != nil {
		metrics.RendersTotal.WithLabelValues("failed").Inc()
		h.compensate(ctx, design.ID, err)
		return err
	}

	metrics.RendersTotal.WithLabelValues("published").Inc()
	h.logger.Info("Design published",
		"design_id", design.ID,
		"preview_url", design.PreviewURL,
	)
	return nil
}

func (h *RenderDesignHandler) renderAndPublish(ctx context.Context, design *domain.Design) error {
	// 3. Rasterize the preview
	preview, err := h.renderer.RenderPreview(design.Data)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}

	// 4. Derive the thumbnail from the preview bytes
	thumbnail, err := h.renderer.Thumbnail(preview)
	if err != nil {
		return fmt.Errorf("generate thumbnail: %w", err)
	}

	// 5. Upload both artifacts
	previewKey := storage.PreviewKey(design.ID)
	if err := h.storage.Put(ctx, previewKey, bytes.NewReader(preview), storage.PutOptions{
		ContentType: "image/png",
		Overwrite:   true,
		Public:      true,
	}); err != nil {
		return fmt.Errorf("upload preview: %w", err)
	}

	thumbnailKey := storage.ThumbnailKey(design.ID)
	if err := h.storage.Put(ctx, thumbnailKey, bytes.NewReader(thumbnail), storage.PutOptions{
		ContentType: "image/png",
		Overwrite:   true,
		Public:      true,
	}); err != nil {
		return fmt.Errorf("upload thumbnail: %w", err)
	}

	// 6. Resolve artifact URLs
	previewURL, err := h.storage.URL(ctx, previewKey, 0)
	if err != nil {
		return fmt.Errorf("resolve preview url: %w", err)
	}
	thumbnailURL, err := h.storage.URL(ctx, thumbnailKey, 0)
	if err != nil {
		return fmt.Errorf("resolve thumbnail url: %w", err)
	}

	// 7. Publish
	if err := design.MarkPublished(previewURL, &thumbnailURL); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if err := h.store.UpdateDesign(ctx, design); err != nil {
		return fmt.Errorf("persist published design: %w", err)
	}
	return nil
}

// compensate moves a design that failed mid-render into the failed state so
// callers can see the error and retry via an edit. Compensation is best
// effort: if it fails the design stays in rendering and the stale sweep
// releases it back to draft.
func (h *RenderDesignHandler) compensate(ctx context.Context, designID uuid.UUID, cause error) {
	// The render failure may be the job deadline itself expiring, and the
	// store calls below would fail instantly on that context. Detach from
	// the cancellation with a fresh deadline so the failed state is recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	design, err := h.store.GetDesignByID(ctx, designID)
	if err != nil {
		h.logger.Error("Failed to reload design for failure compensation",
			"design_id", designID,
			"error", err,
		)
		return
	}
	if design.Status != domain.DesignStatusRendering {
		return
	}
	if err := design.MarkFailed(cause.Error()); err != nil {
		h.logger.Error("Failed to mark design failed",
			"design_id", designID,
			"error", err,
		)
		return
	}
	if err := h.store.UpdateDesign(ctx, design); err != nil {
		h.logger.Error("Failed to persist failed design",
			"design_id", designID,
			"error", err,
		)
	}
}
