package service

import (
	"context"

	"novel-engine/internal/messaging"
	"novel-engine/internal/model"
	"novel-engine/internal/repository"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// --- Моки репозиториев и паблишера ---

type MockNovelRepository struct {
	mock.Mock
}

func (m *MockNovelRepository) Create(ctx context.Context, novel *model.NovelRecord) error {
	args := m.Called(ctx, novel)
	return args.Error(0)
}

func (m *MockNovelRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.NovelRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*model.NovelRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNovelRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *repository.ListCursor) ([]model.NovelSummary, error) {
	args := m.Called(ctx, userID, limit, cursor)
	if list, ok := args.Get(0).([]model.NovelSummary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNovelRepository) SetReady(ctx context.Context, id uuid.UUID, content *engine.Novel) error {
	args := m.Called(ctx, id, content)
	return args.Error(0)
}

func (m *MockNovelRepository) UpdateContent(ctx context.Context, id, userID uuid.UUID, title string, content *engine.Novel) error {
	args := m.Called(ctx, id, userID, title, content)
	return args.Error(0)
}

func (m *MockNovelRepository) SetError(ctx context.Context, id uuid.UUID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockNovelRepository) Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Save(ctx context.Context, userID, novelID uuid.UUID, snap *engine.Snapshot) error {
	args := m.Called(ctx, userID, novelID, snap)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx context.Context, userID, novelID uuid.UUID) (*engine.Snapshot, error) {
	args := m.Called(ctx, userID, novelID)
	if snap, ok := args.Get(0).(*engine.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, userID, novelID uuid.UUID) error {
	args := m.Called(ctx, userID, novelID)
	return args.Error(0)
}

type MockTaskPublisher struct {
	mock.Mock
}

func (m *MockTaskPublisher) PublishGenerationTask(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockTaskPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
