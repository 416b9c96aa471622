package service

import (
	"context"
	"encoding/json"
	"testing"

	"novel-engine/internal/model"
	"novel-engine/pkg/engine"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// playableNovel — маленькая новелла с ветвлением и условием.
func playableNovel(t *testing.T) json.RawMessage {
	t.Helper()
	novel := engine.Novel{
		ID:          "vn-test",
		Title:       "Тестовая история",
		Description: "граф из трех сцен",
		Author:      "tests",
		Tags:        []string{"test"},
		Variables:   map[string]any{"trust": float64(0)},
		Scenes: []engine.Scene{
			{
				ID:       "intro",
				Dialogue: &engine.Dialogue{Text: "Начало"},
				Choices: []engine.Choice{
					{Text: "В лес", NextSceneID: "forest"},
					{Text: "Тайная дверь", NextSceneID: "vault", Condition: "trust >= 1"},
				},
			},
			{ID: "forest", Dialogue: &engine.Dialogue{Text: "Лес"}, NextSceneID: "vault"},
			{ID: "vault", Dialogue: &engine.Dialogue{Text: "Хранилище"}},
		},
	}
	raw, err := json.Marshal(novel)
	require.NoError(t, err)
	return raw
}

func readyRecord(t *testing.T, userID uuid.UUID) *model.NovelRecord {
	t.Helper()
	return &model.NovelRecord{
		ID:      uuid.New(),
		UserID:  userID,
		Title:   "Тестовая история",
		Status:  model.StatusReady,
		Content: playableNovel(t),
	}
}

func TestPlayServiceStartFreshSession(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(nil, model.ErrNotFound)
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.Anything).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.Start(context.Background(), userID, rec.ID)

	require.NoError(t, err)
	require.NotNil(t, state.CurrentScene)
	assert.Equal(t, "intro", state.CurrentScene.ID)
	assert.Empty(t, state.History)
	assert.Equal(t, float64(0), state.Variables["trust"])
	novels.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestPlayServiceStartResumesSession(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)
	snap := &engine.Snapshot{
		History:   []string{"forest"},
		Variables: map[string]any{"trust": float64(2)},
	}

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(snap, nil)
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.Anything).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.Start(context.Background(), userID, rec.ID)

	require.NoError(t, err)
	assert.Equal(t, "forest", state.CurrentScene.ID)
	assert.Equal(t, []string{"forest"}, state.History)
	assert.Equal(t, float64(2), state.Variables["trust"])
}

func TestPlayServiceChooseAppendsHistory(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(nil, model.ErrNotFound)
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.MatchedBy(func(s *engine.Snapshot) bool {
		return len(s.History) == 1 && s.History[0] == "forest"
	})).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.Choose(context.Background(), userID, rec.ID, 0)

	require.NoError(t, err)
	assert.Equal(t, "forest", state.CurrentScene.ID)
	sessions.AssertExpectations(t)
}

func TestPlayServiceChooseGatedByCondition(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(nil, model.ErrNotFound)

	svc := NewPlayService(novels, sessions, zap.NewNop())

	// trust == 0: условие "trust >= 1" не выполнено
	_, err := svc.Choose(context.Background(), userID, rec.ID, 1)
	assert.ErrorIs(t, err, model.ErrNoTransition)

	// Промах не должен был сохранить сессию
	sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlayServiceChooseOutOfRange(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(nil, model.ErrNotFound)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	_, err := svc.Choose(context.Background(), userID, rec.ID, 99)
	assert.ErrorIs(t, err, model.ErrNoTransition)
}

func TestPlayServiceAdvanceLinear(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)
	snap := &engine.Snapshot{History: []string{"forest"}, Variables: map[string]any{}}

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(snap, nil)
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.Anything).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.Advance(context.Background(), userID, rec.ID)

	require.NoError(t, err)
	assert.Equal(t, "vault", state.CurrentScene.ID)
	assert.Equal(t, []string{"forest", "vault"}, state.History)
}

func TestPlayServiceAdvanceTerminalScene(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)
	snap := &engine.Snapshot{History: []string{"vault"}, Variables: map[string]any{}}

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(snap, nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	_, err := svc.Advance(context.Background(), userID, rec.ID)
	assert.ErrorIs(t, err, model.ErrNoTransition)
}

func TestPlayServiceSetVariableUnlocksChoice(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	// Первый вызов — сессии нет; дальше возвращаем последний сохраненный снимок
	var saved *engine.Snapshot
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(nil, model.ErrNotFound).Once()
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(3).(*engine.Snapshot)
	}).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.SetVariable(context.Background(), userID, rec.ID, "trust", float64(2))
	require.NoError(t, err)
	assert.Equal(t, float64(2), state.Variables["trust"])

	sessions.On("Get", mock.Anything, userID, rec.ID).Return(saved, nil)
	state, err = svc.Choose(context.Background(), userID, rec.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "vault", state.CurrentScene.ID)
}

func TestPlayServiceResetRestoresInitialVariables(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)
	snap := &engine.Snapshot{
		History:   []string{"forest", "vault"},
		Variables: map[string]any{"trust": float64(5)},
	}

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	sessions.On("Get", mock.Anything, userID, rec.ID).Return(snap, nil)
	sessions.On("Save", mock.Anything, userID, rec.ID, mock.Anything).Return(nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	state, err := svc.Reset(context.Background(), userID, rec.ID)

	require.NoError(t, err)
	assert.Equal(t, "intro", state.CurrentScene.ID)
	assert.Empty(t, state.History)
	assert.Equal(t, float64(0), state.Variables["trust"])
}

func TestPlayServiceRejectsForeignNovel(t *testing.T) {
	owner := uuid.New()
	rec := readyRecord(t, owner)

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	_, err := svc.Start(context.Background(), uuid.New(), rec.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPlayServiceRejectsGeneratingNovel(t *testing.T) {
	userID := uuid.New()
	rec := readyRecord(t, userID)
	rec.Status = model.StatusGenerating
	rec.Content = nil

	novels := new(MockNovelRepository)
	sessions := new(MockSessionRepository)
	novels.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	svc := NewPlayService(novels, sessions, zap.NewNop())
	_, err := svc.Start(context.Background(), userID, rec.ID)
	assert.ErrorIs(t, err, model.ErrNovelNotReady)
}
