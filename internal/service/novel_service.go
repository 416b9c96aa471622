package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"novel-engine/internal/model"
	"novel-engine/internal/repository"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NovelService — операции над библиотекой новелл пользователя.
type NovelService interface {
	// Import валидирует готовый документ новеллы и сохраняет его в статусе ready.
	Import(ctx context.Context, userID uuid.UUID, document []byte) (*model.NovelRecord, error)
	// Update заменяет документ существующей новеллы новой валидной версией.
	Update(ctx context.Context, userID, novelID uuid.UUID, document []byte) (*model.NovelRecord, error)
	Get(ctx context.Context, userID, novelID uuid.UUID) (*model.NovelRecord, error)
	List(ctx context.Context, userID uuid.UUID, limit int, cursor *repository.ListCursor) ([]model.NovelSummary, error)
	Delete(ctx context.Context, userID, novelID uuid.UUID) error
}

type novelService struct {
	novels   repository.NovelRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
}

func NewNovelService(novels repository.NovelRepository, sessions repository.SessionRepository, logger *zap.Logger) NovelService {
	return &novelService{
		novels:   novels,
		sessions: sessions,
		logger:   logger.Named("NovelService"),
	}
}

// Import принимает документ новеллы целиком (авторский импорт, без генерации).
func (s *novelService) Import(ctx context.Context, userID uuid.UUID, document []byte) (*model.NovelRecord, error) {
	// Импорт строгий: ссылки сцен проверяются сразу, а не лениво в рантайме
	novel, err := engine.ParseNovel(document, engine.ValidateOptions{CheckSceneRefs: true})
	if err != nil {
		s.logger.Debug("Novel import rejected", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidNovel, err)
	}

	content, err := json.Marshal(novel)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации контента новеллы: %w", err)
	}

	// Запись вставляется сразу готовой, одним запросом: промежуточный
	// статус generating здесь оставлял бы сироту при сбое между шагами.
	rec := &model.NovelRecord{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   novel.Title,
		Status:  model.StatusReady,
		Content: content,
	}
	if err := s.novels.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update перезаписывает документ новеллы. Сохраненная игровая сессия
// сбрасывается: её история может ссылаться на удаленные сцены.
func (s *novelService) Update(ctx context.Context, userID, novelID uuid.UUID, document []byte) (*model.NovelRecord, error) {
	novel, err := engine.ParseNovel(document, engine.ValidateOptions{CheckSceneRefs: true})
	if err != nil {
		s.logger.Debug("Novel update rejected", zap.Error(err), zap.String("novelID", novelID.String()))
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidNovel, err)
	}

	if err := s.novels.UpdateContent(ctx, novelID, userID, novel.Title, novel); err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, userID, novelID); err != nil && !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("Failed to reset play session after novel update",
			zap.Error(err),
			zap.String("novelID", novelID.String()),
		)
	}

	return s.novels.GetByID(ctx, novelID)
}

// Get возвращает новеллу пользователя. Чужие записи неотличимы от отсутствующих.
func (s *novelService) Get(ctx context.Context, userID, novelID uuid.UUID) (*model.NovelRecord, error) {
	rec, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

func (s *novelService) List(ctx context.Context, userID uuid.UUID, limit int, cursor *repository.ListCursor) ([]model.NovelSummary, error) {
	return s.novels.ListByUser(ctx, userID, limit, cursor)
}

// Delete удаляет новеллу вместе с игровой сессией по ней.
func (s *novelService) Delete(ctx context.Context, userID, novelID uuid.UUID) error {
	if err := s.novels.Delete(ctx, novelID, userID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, userID, novelID); err != nil && !errors.Is(err, model.ErrNotFound) {
		// Новелла уже удалена; осиротевшая сессия истечет по TTL
		s.logger.Warn("Failed to delete play session after novel removal",
			zap.Error(err),
			zap.String("novelID", novelID.String()),
		)
	}
	return nil
}
