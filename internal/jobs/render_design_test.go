package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/render"
	"github.com/printforge/printforge/internal/repository"
	"github.com/printforge/printforge/internal/storage"
	"github.com/printforge/printforge/internal/worker"
)

// fakeDesignStore keeps designs in memory and mimics the repository's
// claim semantics. Like pgx, every call fails once its context is done.
type fakeDesignStore struct {
	designs map[uuid.UUID]*domain.Design
}

func newFakeDesignStore(designs ...*domain.Design) *fakeDesignStore {
	s := &fakeDesignStore{designs: make(map[uuid.UUID]*domain.Design)}
	for _, d := range designs {
		s.designs[d.ID] = d
	}
	return s
}

func (s *fakeDesignStore) GetDesignByID(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := s.designs[id]
	if !ok || d.IsDeleted {
		return nil, domain.NotFound("fake.get_design", "design", id.String())
	}
	cp := *d
	return &cp, nil
}

func (s *fakeDesignStore) ClaimDesignForRender(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := s.designs[id]
	if !ok || d.IsDeleted || d.Status != domain.DesignStatusDraft {
		return nil, nil
	}
	d.Status = domain.DesignStatusRendering
	cp := *d
	return &cp, nil
}

func (s *fakeDesignStore) UpdateDesign(ctx context.Context, d *domain.Design) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.designs[d.ID]; !ok {
		return domain.NotFound("fake.update_design", "design", d.ID.String())
	}
	cp := *d
	s.designs[d.ID] = &cp
	return nil
}

// failingRenderer always fails, standing in for transient render errors.
type failingRenderer struct{}

func (failingRenderer) RenderPreview(data domain.DesignData) ([]byte, error) {
	return nil, errors.New("encode exploded")
}

func (failingRenderer) Thumbnail(preview []byte) ([]byte, error) {
	return nil, errors.New("encode exploded")
}

// deadlineRenderer stands in for a render that outlives the job's
// wall-clock cap: it cancels the job context and reports the timeout.
type deadlineRenderer struct {
	cancel context.CancelFunc
}

func (r deadlineRenderer) RenderPreview(data domain.DesignData) ([]byte, error) {
	r.cancel()
	return nil, context.DeadlineExceeded
}

func (r deadlineRenderer) Thumbnail(preview []byte) ([]byte, error) {
	return nil, context.DeadlineExceeded
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testStorage(t *testing.T) storage.Storage {
	t.Helper()
	st, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)
	return st
}

func draftDesign() *domain.Design {
	return &domain.Design{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Data: domain.DesignData{
			domain.DataFieldText:  "Hello",
			domain.DataFieldFont:  "Roboto-Regular",
			domain.DataFieldColor: "#FF5733",
		},
		ProductType: domain.ProductTypeTShirt,
		Status:      domain.DesignStatusDraft,
	}
}

func payloadFor(t *testing.T, designID uuid.UUID) []byte {
	t.Helper()
	b, err := json.Marshal(repository.RenderDesignPayload{DesignID: designID})
	require.NoError(t, err)
	return b
}

func TestRenderDesignHandler_Type(t *testing.T) {
	h := NewRenderDesignHandler(newFakeDesignStore(), testStorage(t), failingRenderer{}, testLogger())
	assert.Equal(t, repository.JobTypeRenderDesign, h.Type())
}

func TestRenderDesignHandler_Publish(t *testing.T) {
	renderer, err := render.NewImageRenderer()
	require.NoError(t, err)

	design := draftDesign()
	store := newFakeDesignStore(design)
	st := testStorage(t)
	h := NewRenderDesignHandler(store, st, renderer, testLogger())

	require.NoError(t, h.Handle(context.Background(), payloadFor(t, design.ID)))

	got := store.designs[design.ID]
	assert.Equal(t, domain.DesignStatusPublished, got.Status)
	require.NotNil(t, got.PreviewURL)
	require.NotNil(t, got.ThumbnailURL)

	// Both artifacts landed in storage
	for _, key := range []string{storage.PreviewKey(design.ID), storage.ThumbnailKey(design.ID)} {
		ok, err := st.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestRenderDesignHandler_MissingDesignIsPermanent(t *testing.T) {
	h := NewRenderDesignHandler(newFakeDesignStore(), testStorage(t), failingRenderer{}, testLogger())

	err := h.Handle(context.Background(), payloadFor(t, uuid.New()))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestRenderDesignHandler_BadPayloadIsPermanent(t *testing.T) {
	h := NewRenderDesignHandler(newFakeDesignStore(), testStorage(t), failingRenderer{}, testLogger())

	err := h.Handle(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}

func TestRenderDesignHandler_NonDraftIsNoOp(t *testing.T) {
	for _, status := range []domain.DesignStatus{
		domain.DesignStatusRendering,
		domain.DesignStatusPublished,
		domain.DesignStatusFailed,
	} {
		t.Run(status.String(), func(t *testing.T) {
			design := draftDesign()
			design.Status = status
			store := newFakeDesignStore(design)
			h := NewRenderDesignHandler(store, testStorage(t), failingRenderer{}, testLogger())

			// Redelivered job for an already-claimed design must not error
			assert.NoError(t, h.Handle(context.Background(), payloadFor(t, design.ID)))
			assert.Equal(t, status, store.designs[design.ID].Status)
		})
	}
}

func TestRenderDesignHandler_FailureCompensation(t *testing.T) {
	design := draftDesign()
	store := newFakeDesignStore(design)
	h := NewRenderDesignHandler(store, testStorage(t), failingRenderer{}, testLogger())

	err := h.Handle(context.Background(), payloadFor(t, design.ID))
	require.Error(t, err)
	// Transient render failures are retryable
	assert.False(t, worker.IsPermanent(err))

	got := store.designs[design.ID]
	assert.Equal(t, domain.DesignStatusFailed, got.Status)
	assert.Contains(t, got.Data[domain.DataFieldError], "encode exploded")
	assert.Nil(t, got.PreviewURL)
}

func TestRenderDesignHandler_CompensationOutlivesJobDeadline(t *testing.T) {
	// A render hitting the job's wall-clock cap leaves the job context
	// expired. Compensation must still mark the design failed instead of
	// stranding it in rendering, where a redelivered job would no-op.
	design := draftDesign()
	store := newFakeDesignStore(design)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewRenderDesignHandler(store, testStorage(t), deadlineRenderer{cancel: cancel}, testLogger())

	err := h.Handle(ctx, payloadFor(t, design.ID))
	require.Error(t, err)

	got := store.designs[design.ID]
	assert.Equal(t, domain.DesignStatusFailed, got.Status)
	assert.Contains(t, got.Data[domain.DataFieldError], "deadline exceeded")

	// A redelivery after compensation stays a no-op.
	assert.NoError(t, h.Handle(context.Background(), payloadFor(t, design.ID)))
	assert.Equal(t, domain.DesignStatusFailed, store.designs[design.ID].Status)
}
