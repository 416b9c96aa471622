package service

import (
	"context"
	"fmt"
	"strings"

	"novel-engine/internal/messaging"
	"novel-engine/internal/model"
	"novel-engine/internal/repository"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerationRequest — пользовательский запрос на генерацию новеллы.
type GenerationRequest struct {
	Prompt     string
	Title      string
	SceneCount int
	Tags       []string
}

// GenerationService запускает генерацию новелл через очередь задач (API)
// и выполняет их (воркер).
type GenerationService interface {
	// StartGeneration создает запись в статусе generating и публикует задачу.
	StartGeneration(ctx context.Context, userID uuid.UUID, req GenerationRequest) (*model.NovelRecord, error)
	// ProcessTask выполняет задачу генерации; вызывается консьюмером воркера.
	ProcessTask(ctx context.Context, payload messaging.GenerationTaskPayload) error
}

type generationService struct {
	novels            repository.NovelRepository
	publisher         messaging.TaskPublisher
	sceneGenerator    engine.SceneGenerator
	defaultSceneCount int
	logger            *zap.Logger
}

// NewGenerationService собирает сервис генерации. На стороне API
// sceneGenerator может быть nil (генерацией занимается воркер);
// на стороне воркера nil может быть publisher.
func NewGenerationService(
	novels repository.NovelRepository,
	publisher messaging.TaskPublisher,
	sceneGenerator engine.SceneGenerator,
	defaultSceneCount int,
	logger *zap.Logger,
) GenerationService {
	if defaultSceneCount <= 0 {
		defaultSceneCount = 5
	}
	return &generationService{
		novels:            novels,
		publisher:         publisher,
		sceneGenerator:    sceneGenerator,
		defaultSceneCount: defaultSceneCount,
		logger:            logger.Named("GenerationService"),
	}
}

func (s *generationService) StartGeneration(ctx context.Context, userID uuid.UUID, req GenerationRequest) (*model.NovelRecord, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: пустой промпт", model.ErrInvalidNovel)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Generated Visual Novel"
	}

	rec := &model.NovelRecord{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
		Status: model.StatusGenerating,
	}
	if err := s.novels.Create(ctx, rec); err != nil {
		return nil, err
	}

	payload := messaging.GenerationTaskPayload{
		TaskID:     uuid.New(),
		NovelID:    rec.ID,
		UserID:     userID,
		Prompt:     prompt,
		Title:      title,
		SceneCount: req.SceneCount,
		Tags:       req.Tags,
	}
	if err := s.publisher.PublishGenerationTask(ctx, payload); err != nil {
		// Задача не ушла в очередь: помечаем запись ошибкой сразу,
		// чтобы она не зависла в generating навсегда.
		if markErr := s.novels.SetError(ctx, rec.ID, "не удалось поставить задачу в очередь"); markErr != nil {
			s.logger.Error("Failed to mark novel errored after publish failure",
				zap.Error(markErr),
				zap.String("novelID", rec.ID.String()),
			)
		}
		return nil, err
	}

	s.logger.Info("Generation started",
		zap.String("novelID", rec.ID.String()),
		zap.String("taskID", payload.TaskID.String()),
		zap.String("userID", userID.String()),
	)
	return rec, nil
}

// ProcessTask генерирует новеллу и переводит запись в ready либо error.
// Ошибка возвращается только при невозможности записать результат:
// неудача самой генерации фиксируется в записи и не требует повтора задачи.
func (s *generationService) ProcessTask(ctx context.Context, payload messaging.GenerationTaskPayload) error {
	logFields := []zap.Field{
		zap.String("taskID", payload.TaskID.String()),
		zap.String("novelID", payload.NovelID.String()),
	}

	sceneCount := payload.SceneCount
	if sceneCount <= 0 {
		sceneCount = s.defaultSceneCount
	}

	novel, err := engine.GenerateFromPrompt(ctx, payload.Prompt, s.sceneGenerator, engine.GenerateOptions{
		Title:      payload.Title,
		SceneCount: sceneCount,
		Tags:       payload.Tags,
	})
	if err != nil {
		s.logger.Error("Novel generation failed", append(logFields, zap.Error(err))...)
		if markErr := s.novels.SetError(ctx, payload.NovelID, err.Error()); markErr != nil {
			return fmt.Errorf("генерация провалилась и запись не обновлена: %w", markErr)
		}
		return nil
	}

	if err := s.novels.SetReady(ctx, payload.NovelID, novel); err != nil {
		return fmt.Errorf("не удалось сохранить сгенерированную новеллу: %w", err)
	}
	s.logger.Info("Novel generation completed", append(logFields, zap.Int("scenes", len(novel.Scenes)))...)
	return nil
}
