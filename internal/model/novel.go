package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NovelStatus — статус записи новеллы в хранилище.
type NovelStatus string

const (
	// StatusGenerating — задача генерации опубликована, контента еще нет.
	StatusGenerating NovelStatus = "generating"
	// StatusReady — контент сгенерирован или загружен и прошел валидацию.
	StatusReady NovelStatus = "ready"
	// StatusError — генерация завершилась ошибкой.
	StatusError NovelStatus = "error"
)

// NovelRecord — строка таблицы novels. Content хранит JSON-документ
// новеллы в формате pkg/engine; для записей в статусе generating он пуст.
type NovelRecord struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	Title     string          `db:"title" json:"title"`
	Status    NovelStatus     `db:"status" json:"status"`
	Content   json.RawMessage `db:"content" json:"content,omitempty"`
	Error     *string         `db:"error" json:"error,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// NovelSummary — сокращенная запись для списков.
type NovelSummary struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Title     string      `db:"title" json:"title"`
	Status    NovelStatus `db:"status" json:"status"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`
}
