package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/printforge/printforge/internal/domain"
	"github.com/printforge/printforge/internal/repository"
)

// fakeStore is an in-memory repository.Store. Reads hand out copies so
// entity mutations only land when written back, matching row semantics.
type fakeStore struct {
	users   map[uuid.UUID]*domain.User
	subs    map[uuid.UUID]*domain.Subscription // keyed by user ID
	designs map[uuid.UUID]*domain.Design
	jobs    []uuid.UUID // design IDs with enqueued render jobs

	enqueueErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[uuid.UUID]*domain.User),
		subs:    make(map[uuid.UUID]*domain.Subscription),
		designs: make(map[uuid.UUID]*domain.Design),
	}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return fn(s)
}

func (s *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("fake.get_user", "user", id.String())
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if _, ok := s.subs[sub.UserID]; ok {
		return domain.Conflict("fake.create_subscription", "subscription exists")
	}
	cp := *sub
	s.subs[sub.UserID] = &cp
	return nil
}

func (s *fakeStore) GetSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return nil, domain.NotFound("fake.get_subscription", "subscription", userID.String())
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) GetSubscriptionByUserForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return s.GetSubscriptionByUser(ctx, userID)
}

func (s *fakeStore) ListSubscriptionsDueReset(ctx context.Context, limit int32) ([]*domain.Subscription, error) {
	var due []*domain.Subscription
	for _, sub := range s.subs {
		if sub.Status != domain.SubscriptionStatusActive || sub.CurrentPeriodEnd == nil {
			continue
		}
		if sub.CurrentPeriodEnd.Before(time.Now().UTC()) {
			cp := *sub
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CurrentPeriodEnd.Before(*due[j].CurrentPeriodEnd)
	})
	if int32(len(due)) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *fakeStore) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if _, ok := s.subs[sub.UserID]; !ok {
		return domain.NotFound("fake.update_subscription", "subscription", sub.ID.String())
	}
	cp := *sub
	s.subs[sub.UserID] = &cp
	return nil
}

func (s *fakeStore) CreateDesign(ctx context.Context, d *domain.Design) error {
	cp := *d
	s.designs[d.ID] = &cp
	return nil
}

func (s *fakeStore) GetDesignByID(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	d, ok := s.designs[id]
	if !ok || d.IsDeleted {
		return nil, domain.NotFound("fake.get_design", "design", id.String())
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) GetDesignByIDAny(ctx context.Context, id uuid.UUID) (*domain.Design, error) {
	d, ok := s.designs[id]
	if !ok {
		return nil, domain.NotFound("fake.get_design", "design", id.String())
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) UpdateDesign(ctx context.Context, d *domain.Design) error {
	if _, ok := s.designs[d.ID]; !ok {
		return domain.NotFound("fake.update_design", "design", d.ID.String())
	}
	cp := *d
	s.designs[d.ID] = &cp
	return nil
}

func (s *fakeStore) ListDesignsByUser(ctx context.Context, params domain.ListDesignsParams) (*domain.ListDesignsResult, error) {
	var all []domain.Design
	for _, d := range s.designs {
		if d.UserID == params.UserID && !d.IsDeleted {
			all = append(all, *d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := int(params.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(params.Limit)
	if end > len(all) {
		end = len(all)
	}

	return &domain.ListDesignsResult{
		Designs: all[start:end],
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

func (s *fakeStore) CountDesignsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, d := range s.designs {
		if d.UserID == userID && !d.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) EnqueueRenderJob(ctx context.Context, designID uuid.UUID) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, designID)
	return nil
}

var errEnqueueDown = errors.New("queue unavailable")

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
