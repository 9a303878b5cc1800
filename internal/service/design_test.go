package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/validator"
)

func validData() domain.DesignData {
	return domain.DesignData{
		domain.DataFieldText:  "Hello",
		domain.DataFieldFont:  "Roboto-Regular",
		domain.DataFieldColor: "#FF5733",
	}
}

func setupDesignService(t *testing.T) (*fakeStore, DesignService, uuid.UUID) {
	t.Helper()
	store := newFakeStore()
	userID := uuid.New()
	require.NoError(t, store.CreateSubscription(context.Background(), domain.NewSubscription(userID)))
	svc := NewDesignService(store, validator.NewRegistry(), testLogger())
	return store, svc, userID
}

func TestDesignService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft, consumes quota, enqueues render", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)

		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)
		assert.Equal(t, domain.DesignStatusDraft, d.Status)

		sub, err := store.GetSubscriptionByUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, sub.DesignsThisMonth)

		require.Len(t, store.jobs, 1)
		assert.Equal(t, d.ID, store.jobs[0])
	})

	t.Run("invalid payload creates nothing", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)

		_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, domain.DesignData{
			domain.DataFieldText:  "",
			domain.DataFieldFont:  "Roboto-Regular",
			domain.DataFieldColor: "#FF5733",
		})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

		sub, _ := store.GetSubscriptionByUser(ctx, userID)
		assert.Equal(t, 0, sub.DesignsThisMonth)
		assert.Empty(t, store.jobs)
		assert.Empty(t, store.designs)
	})

	t.Run("eleventh design on free plan is rejected", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)

		for i := 0; i < 10; i++ {
			_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
			require.NoError(t, err)
		}

		_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))

		sub, _ := store.GetSubscriptionByUser(ctx, userID)
		assert.Equal(t, 10, sub.DesignsThisMonth)
		assert.Len(t, store.jobs, 10)
		assert.Len(t, store.designs, 10)
	})

	t.Run("inactive subscription reported before quota", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)
		sub := store.subs[userID]
		sub.Status = domain.SubscriptionStatusCanceled
		sub.DesignsThisMonth = 10

		_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		assert.Equal(t, domain.EINACTIVE, domain.ErrorCode(err))
	})

	t.Run("no subscription", func(t *testing.T) {
		store := newFakeStore()
		svc := NewDesignService(store, validator.NewRegistry(), testLogger())

		_, err := svc.Create(ctx, uuid.New(), domain.ProductTypeTShirt, validData())
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("soft deleted designs still count against quota", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)

		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)
		require.NoError(t, svc.SoftDelete(ctx, userID, d.ID))

		sub, _ := store.GetSubscriptionByUser(ctx, userID)
		assert.Equal(t, 1, sub.DesignsThisMonth)
	})

	t.Run("enqueue failure surfaces as internal error", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)
		store.enqueueErr = errEnqueueDown

		_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	})

	t.Run("unknown product type", func(t *testing.T) {
		_, svc, userID := setupDesignService(t)

		_, err := svc.Create(ctx, userID, domain.ProductType("sticker"), validData())
		assert.Equal(t, domain.EUNKNOWNPRODUCT, domain.ErrorCode(err))
	})
}

func TestDesignService_Get(t *testing.T) {
	ctx := context.Background()
	_, svc, userID := setupDesignService(t)

	d, err := svc.Create(ctx, userID, domain.ProductTypeMug, validData())
	require.NoError(t, err)

	t.Run("owner reads design", func(t *testing.T) {
		got, err := svc.Get(ctx, userID, d.ID)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
	})

	t.Run("other users see not found", func(t *testing.T) {
		_, err := svc.Get(ctx, uuid.New(), d.ID)
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("missing design", func(t *testing.T) {
		_, err := svc.Get(ctx, userID, uuid.New())
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})
}

func TestDesignService_UpdateData(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces payload", func(t *testing.T) {
		_, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)

		newData := validData()
		newData[domain.DataFieldText] = "Updated"
		got, err := svc.UpdateData(ctx, userID, d.ID, newData)
		require.NoError(t, err)
		assert.Equal(t, "Updated", got.Data.Text())
	})

	t.Run("invalid payload keeps stored design intact", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)

		bad := validData()
		bad[domain.DataFieldColor] = "red"
		_, err = svc.UpdateData(ctx, userID, d.ID, bad)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		assert.Equal(t, "#FF5733", store.designs[d.ID].Data.Color())
	})

	t.Run("non-owner cannot edit", func(t *testing.T) {
		_, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)

		_, err = svc.UpdateData(ctx, uuid.New(), d.ID, validData())
		assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	})

	t.Run("rendering design is locked", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)
		store.designs[d.ID].Status = domain.DesignStatusRendering

		_, err = svc.UpdateData(ctx, userID, d.ID, validData())
		assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
	})
}

func TestDesignService_Retry(t *testing.T) {
	ctx := context.Background()

	t.Run("failed design returns to draft and re-enqueues", func(t *testing.T) {
		store, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)

		stored := store.designs[d.ID]
		stored.Status = domain.DesignStatusFailed
		stored.Data[domain.DataFieldError] = "render exploded"

		got, err := svc.Retry(ctx, userID, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DesignStatusDraft, got.Status)
		assert.NotContains(t, got.Data, domain.DataFieldError)
		assert.Len(t, store.jobs, 2)

		// Retry does not consume additional quota
		sub, _ := store.GetSubscriptionByUser(ctx, userID)
		assert.Equal(t, 1, sub.DesignsThisMonth)
	})

	t.Run("only failed designs can retry", func(t *testing.T) {
		_, svc, userID := setupDesignService(t)
		d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)

		_, err = svc.Retry(ctx, userID, d.ID)
		assert.Equal(t, domain.ETRANSITION, domain.ErrorCode(err))
	})
}

func TestDesignService_SoftDeleteRestore(t *testing.T) {
	ctx := context.Background()
	store, svc, userID := setupDesignService(t)

	d, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, userID, d.ID))
	assert.True(t, store.designs[d.ID].IsDeleted)

	// Deleted designs vanish from reads and listings
	_, err = svc.Get(ctx, userID, d.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	list, err := svc.List(ctx, domain.ListDesignsParams{UserID: userID, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, list.Designs)

	got, err := svc.Restore(ctx, userID, d.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)

	// Restoring a live design conflicts
	_, err = svc.Restore(ctx, userID, d.ID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	// Non-owner cannot restore
	require.NoError(t, svc.SoftDelete(ctx, userID, d.ID))
	_, err = svc.Restore(ctx, uuid.New(), d.ID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestDesignService_List(t *testing.T) {
	ctx := context.Background()
	_, svc, userID := setupDesignService(t)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, userID, domain.ProductTypeTShirt, validData())
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, domain.ListDesignsParams{UserID: userID, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Designs, 3)
	assert.Equal(t, int64(5), page.Total)
	assert.True(t, page.HasMore())

	page, err = svc.List(ctx, domain.ListDesignsParams{UserID: userID, Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, page.Designs, 2)
	assert.False(t, page.HasMore())
}
