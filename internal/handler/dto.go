package handler

import (
	"encoding/json"
	"time"

	"novel-engine/internal/model"

	"github.com/google/uuid"
)

// APIError — тело ответа при ошибке.
type APIError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// generateRequest — запрос на генерацию новеллы из промпта.
type generateRequest struct {
	Prompt     string   `json:"prompt" binding:"required"`
	Title      string   `json:"title"`
	SceneCount int      `json:"sceneCount"`
	Tags       []string `json:"tags"`
}

// chooseRequest — выбор игрока на текущей сцене.
type chooseRequest struct {
	ChoiceIndex *int `json:"choiceIndex" binding:"required"`
}

// gotoRequest — прямой переход к сцене.
type gotoRequest struct {
	SceneID string `json:"sceneId" binding:"required"`
}

// setVariableRequest — установка переменной истории.
type setVariableRequest struct {
	Name  string `json:"name" binding:"required"`
	Value any    `json:"value"`
}

// novelResponse — карточка новеллы в ответах API.
type novelResponse struct {
	ID        uuid.UUID         `json:"id"`
	Title     string            `json:"title"`
	Status    model.NovelStatus `json:"status"`
	Content   json.RawMessage   `json:"content,omitempty"`
	Error     *string           `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func toNovelResponse(rec *model.NovelRecord) novelResponse {
	return novelResponse{
		ID:        rec.ID,
		Title:     rec.Title,
		Status:    rec.Status,
		Content:   rec.Content,
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// listResponse — страница списка новелл с курсором следующей страницы.
// Курсор составной: created_at и id последнего элемента, иначе записи
// с одинаковым временем создания терялись бы между страницами.
type listResponse struct {
	Novels       []model.NovelSummary `json:"novels"`
	NextCursor   *time.Time           `json:"nextCursor,omitempty"`
	NextCursorID *uuid.UUID           `json:"nextCursorId,omitempty"`
}
