package service

import (
	"context"
	"errors"
	"fmt"

	"novel-engine/internal/model"
	"novel-engine/internal/repository"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlayState — состояние игровой сессии, возвращаемое клиенту после
// каждой операции.
type PlayState struct {
	NovelID      uuid.UUID      `json:"novelId"`
	CurrentScene *engine.Scene  `json:"currentScene"`
	History      []string       `json:"history"`
	Variables    map[string]any `json:"variables"`
}

// PlayService — прохождение новеллы. Движок живет в рамках одного запроса:
// состояние сессии восстанавливается из снимка и сохраняется обратно.
type PlayService interface {
	// Start открывает (или продолжает) сессию и возвращает текущее состояние.
	Start(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error)
	// Choose применяет выбор на текущей сцене.
	Choose(ctx context.Context, userID, novelID uuid.UUID, choiceIndex int) (*PlayState, error)
	// Advance выполняет линейный переход nextSceneId.
	Advance(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error)
	// Goto переходит к сцене по id.
	Goto(ctx context.Context, userID, novelID uuid.UUID, sceneID string) (*PlayState, error)
	// SetVariable выставляет переменную истории.
	SetVariable(ctx context.Context, userID, novelID uuid.UUID, name string, value any) (*PlayState, error)
	// Reset сбрасывает сессию к началу новеллы.
	Reset(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error)
}

type playService struct {
	novels   repository.NovelRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
}

func NewPlayService(novels repository.NovelRepository, sessions repository.SessionRepository, logger *zap.Logger) PlayService {
	return &playService{
		novels:   novels,
		sessions: sessions,
		logger:   logger.Named("PlayService"),
	}
}

// loadEngine восстанавливает движок по новелле пользователя и её сессии.
func (s *playService) loadEngine(ctx context.Context, userID, novelID uuid.UUID) (*engine.Engine, error) {
	rec, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, model.ErrNotFound
	}
	switch rec.Status {
	case model.StatusReady:
	case model.StatusGenerating:
		return nil, model.ErrNovelNotReady
	default:
		// Запись в статусе error: играть не во что
		return nil, model.ErrNovelNotReady
	}

	// Ссылки сцен не перепроверяем на каждый ход: контент валидирован
	// при импорте или генерации, промахи обрабатываются как ErrNoTransition
	novel, err := engine.ParseNovel(rec.Content, engine.ValidateOptions{})
	if err != nil {
		s.logger.Error("Stored novel failed validation",
			zap.Error(err),
			zap.String("novelID", novelID.String()),
		)
		return nil, fmt.Errorf("%w: сохраненный контент поврежден", model.ErrInvalidNovel)
	}

	eng, err := engine.NewEngine(novel)
	if err != nil {
		return nil, err
	}

	snap, err := s.sessions.Get(ctx, userID, novelID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return eng, nil
		}
		return nil, err
	}
	eng.RestoreSnapshot(*snap)
	return eng, nil
}

// persist сохраняет снимок и собирает PlayState для ответа.
func (s *playService) persist(ctx context.Context, userID, novelID uuid.UUID, eng *engine.Engine) (*PlayState, error) {
	snap := eng.Snapshot()
	if err := s.sessions.Save(ctx, userID, novelID, &snap); err != nil {
		return nil, err
	}
	return &PlayState{
		NovelID:      novelID,
		CurrentScene: eng.CurrentScene(),
		History:      snap.History,
		Variables:    snap.Variables,
	}, nil
}

func (s *playService) Start(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, userID, novelID, eng)
}

func (s *playService) Choose(ctx context.Context, userID, novelID uuid.UUID, choiceIndex int) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if eng.MakeChoice(choiceIndex) == nil {
		// Промах не сохраняем: история и переменные не изменились
		return nil, model.ErrNoTransition
	}
	return s.persist(ctx, userID, novelID, eng)
}

func (s *playService) Advance(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if eng.NextScene() == nil {
		return nil, model.ErrNoTransition
	}
	return s.persist(ctx, userID, novelID, eng)
}

func (s *playService) Goto(ctx context.Context, userID, novelID uuid.UUID, sceneID string) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	if eng.GoToScene(sceneID) == nil {
		return nil, model.ErrNoTransition
	}
	return s.persist(ctx, userID, novelID, eng)
}

func (s *playService) SetVariable(ctx context.Context, userID, novelID uuid.UUID, name string, value any) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	eng.SetVariable(name, value)
	return s.persist(ctx, userID, novelID, eng)
}

func (s *playService) Reset(ctx context.Context, userID, novelID uuid.UUID) (*PlayState, error) {
	eng, err := s.loadEngine(ctx, userID, novelID)
	if err != nil {
		return nil, err
	}
	eng.Reset()
	return s.persist(ctx, userID, novelID, eng)
}
