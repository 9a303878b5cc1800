// Package domain contains core business types and interfaces.
//
// This file defines the Design domain type: a user's text customization
// request for a physical product, and the lifecycle state machine that
// the render pipeline drives it through.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Product Type
// =============================================================================

// ProductType identifies the physical product a design is printed on.
type ProductType string

const (
	ProductTypeTShirt  ProductType = "t-shirt"
	ProductTypeMug     ProductType = "mug"
	ProductTypePoster  ProductType = "poster"
	ProductTypeHoodie  ProductType = "hoodie"
	ProductTypeToteBag ProductType = "tote-bag"
)

// String returns the string representation of the product type.
func (p ProductType) String() string {
	return string(p)
}

// IsValid returns true if the product type is a recognized value.
func (p ProductType) IsValid() bool {
	switch p {
	case ProductTypeTShirt, ProductTypeMug, ProductTypePoster,
		ProductTypeHoodie, ProductTypeToteBag:
		return true
	}
	return false
}

// =============================================================================
// Design Status
// =============================================================================

// DesignStatus represents the lifecycle state of a design.
type DesignStatus string

const (
	// DesignStatusDraft indicates a design that has been created or edited
	// but not yet picked up by the render pipeline.
	DesignStatusDraft DesignStatus = "draft"

	// DesignStatusRendering indicates a render worker holds the lease on
	// this design and is producing the preview image.
	DesignStatusRendering DesignStatus = "rendering"

	// DesignStatusPublished indicates rendering succeeded and preview and
	// thumbnail URLs are available. Terminal.
	DesignStatusPublished DesignStatus = "published"

	// DesignStatusFailed indicates rendering failed after the queue's
	// retries were exhausted. Recoverable only through an owner edit.
	DesignStatusFailed DesignStatus = "failed"
)

// String returns the string representation of the status.
func (s DesignStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s DesignStatus) IsValid() bool {
	switch s {
	case DesignStatusDraft, DesignStatusRendering,
		DesignStatusPublished, DesignStatusFailed:
		return true
	}
	return false
}

// =============================================================================
// Design Data
// =============================================================================

// Design data field names. The payload is open-ended: unknown fields are
// carried through untouched so clients can attach extension data.
const (
	DataFieldText     = "text"
	DataFieldFont     = "font"
	DataFieldColor    = "color"
	DataFieldFontSize = "fontSize"

	// DataFieldError holds the last render error, written by MarkFailed
	// for owner-visible diagnostics.
	DataFieldError = "error_message"
)

// DesignData is the customization payload: text, font, color, optional
// fontSize plus free-form extension fields. Persisted as JSONB.
type DesignData map[string]interface{}

// Text returns the design text, or "" if absent.
func (d DesignData) Text() string {
	s, _ := d[DataFieldText].(string)
	return s
}

// Font returns the font name, or "" if absent.
func (d DesignData) Font() string {
	s, _ := d[DataFieldFont].(string)
	return s
}

// Color returns the background color, or "" if absent.
func (d DesignData) Color() string {
	s, _ := d[DataFieldColor].(string)
	return s
}

// FontSize returns the font size and whether one was provided.
// JSON decoding yields float64 for all numbers; int is accepted for
// payloads built in Go.
func (d DesignData) FontSize() (float64, bool) {
	switch v := d[DataFieldFontSize].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Clone returns a shallow copy of the payload.
func (d DesignData) Clone() DesignData {
	if d == nil {
		return nil
	}
	out := make(DesignData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// PayloadValidator validates a design payload for a product type.
// Implemented by the per-product strategies in the validator package.
type PayloadValidator interface {
	Validate(data DesignData, productType ProductType) error
}

// =============================================================================
// Design Domain Type
// =============================================================================

// Design represents a user's customization request for one product instance.
//
// Lifecycle: draft -> rendering -> published | failed. A failed design
// returns to draft through UpdateData. No transition may skip rendering or
// leave a terminal state any other way.
type Design struct {
	ID           uuid.UUID    // Unique identifier
	UserID       uuid.UUID    // Owner of the design
	ProductType  ProductType  // Product the design is printed on
	Data         DesignData   // Customization payload
	Status       DesignStatus // Current lifecycle state
	PreviewURL   *string      // Full preview image URL; non-nil iff published
	ThumbnailURL *string      // Thumbnail image URL
	IsDeleted    bool         // Soft-delete flag
	CreatedAt    time.Time    // When the design was created
	UpdatedAt    time.Time    // When the design was last modified
}

// NewDesign creates a design in draft status. The payload is validated
// against the product-type strategy before anything is returned; an invalid
// payload produces no design.
func NewDesign(userID uuid.UUID, productType ProductType, data DesignData, v PayloadValidator) (*Design, error) {
	const op = "design.create"

	if !productType.IsValid() {
		return nil, UnknownProductType(op, productType.String())
	}

	if err := v.Validate(data, productType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Design{
		ID:          uuid.New(),
		UserID:      userID,
		ProductType: productType,
		Data:        data.Clone(),
		Status:      DesignStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkRendering moves the design from draft to rendering. This is the
// render worker's lease: only draft designs may be claimed.
func (d *Design) MarkRendering() error {
	const op = "design.mark_rendering"

	if d.Status != DesignStatusDraft {
		return InvalidTransition(op, d.Status.String(), DesignStatusRendering.String())
	}

	d.Status = DesignStatusRendering
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPublished finalizes a successful render with the artifact URLs.
// Only valid from rendering; previewURL must be non-empty.
func (d *Design) MarkPublished(previewURL string, thumbnailURL *string) error {
	const op = "design.mark_published"

	if d.Status != DesignStatusRendering {
		return InvalidTransition(op, d.Status.String(), DesignStatusPublished.String())
	}
	if previewURL == "" {
		return Invalid(op, "preview_url cannot be empty")
	}

	d.Status = DesignStatusPublished
	d.PreviewURL = &previewURL
	d.ThumbnailURL = thumbnailURL
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a render failure. Only valid from rendering. The
// error message is embedded in the payload so the owner can see why the
// render failed; the rest of the payload is preserved for a retried edit.
func (d *Design) MarkFailed(errorMessage string) error {
	const op = "design.mark_failed"

	if d.Status != DesignStatusRendering {
		return InvalidTransition(op, d.Status.String(), DesignStatusFailed.String())
	}

	d.Status = DesignStatusFailed
	if errorMessage != "" {
		if d.Data == nil {
			d.Data = DesignData{}
		}
		d.Data[DataFieldError] = errorMessage
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateData replaces the payload. Allowed only in draft or failed status.
// The new payload is re-validated; on failure the prior payload is left
// untouched. A successful update on a failed design resets it to draft and
// clears the stale preview and thumbnail URLs.
func (d *Design) UpdateData(newData DesignData, v PayloadValidator) error {
	const op = "design.update_data"

	if d.Status != DesignStatusDraft && d.Status != DesignStatusFailed {
		return InvalidTransition(op, d.Status.String(), DesignStatusDraft.String())
	}

	if err := v.Validate(newData, d.ProductType); err != nil {
		return err
	}

	d.Data = newData.Clone()

	if d.Status == DesignStatusFailed {
		d.Status = DesignStatusDraft
		d.PreviewURL = nil
		d.ThumbnailURL = nil
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete hides the design from all lookups except direct
// administrative access.
func (d *Design) SoftDelete() {
	d.IsDeleted = true
	d.UpdatedAt = time.Now().UTC()
}

// Restore undoes a soft delete. Fails if the design is not deleted.
func (d *Design) Restore() error {
	const op = "design.restore"

	if !d.IsDeleted {
		return Conflict(op, "design is not deleted")
	}

	d.IsDeleted = false
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// IsEditable returns true if the owner may modify the payload.
func (d *Design) IsEditable() bool {
	return d.Status == DesignStatusDraft || d.Status == DesignStatusFailed
}

// =============================================================================
// List Result with Pagination
// =============================================================================

// ListDesignsParams contains parameters for listing a user's designs.
type ListDesignsParams struct {
	UserID uuid.UUID // Filter by owner
	Limit  int32     // Max results to return
	Offset int32     // Number of results to skip
}

// ListDesignsResult contains the result of a paginated design list query.
type ListDesignsResult struct {
	Designs []Design // The design results
	Total   int64    // Total number of designs (for pagination)
	Limit   int32    // Number of results requested
	Offset  int32    // Number of results skipped
}

// HasMore returns true if there are more results available.
func (r *ListDesignsResult) HasMore() bool {
	return int64(r.Offset+r.Limit) < r.Total
}
