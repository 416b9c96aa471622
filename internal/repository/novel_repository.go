package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"novel-engine/internal/model"
	"novel-engine/pkg/engine"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBTX — минимальный интерфейс соединения с БД (пул или транзакция).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListCursor — позиция keyset-пагинации: created_at и id последнего
// элемента предыдущей страницы. id разрешает ничью по одинаковому времени.
type ListCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NovelRepository — хранилище новелл.
type NovelRepository interface {
	Create(ctx context.Context, novel *model.NovelRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.NovelRecord, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *ListCursor) ([]model.NovelSummary, error)
	SetReady(ctx context.Context, id uuid.UUID, content *engine.Novel) error
	UpdateContent(ctx context.Context, id, userID uuid.UUID, title string, content *engine.Novel) error
	SetError(ctx context.Context, id uuid.UUID, message string) error
	Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ NovelRepository = (*pgNovelRepository)(nil)

type pgNovelRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgNovelRepository(db DBTX, logger *zap.Logger) NovelRepository {
	return &pgNovelRepository{
		db:     db,
		logger: logger.Named("PgNovelRepo"),
	}
}

const createNovelQuery = `
INSERT INTO novels (id, user_id, title, status, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const getNovelByIDQuery = `
SELECT id, user_id, title, status, content, error, created_at, updated_at
FROM novels
WHERE id = $1`

const listNovelsByUserQuery = `
SELECT id, title, status, created_at, updated_at
FROM novels
WHERE user_id = $1 AND (created_at, id) < ($2, $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`

const setNovelReadyQuery = `
UPDATE novels
SET status = $2, content = $3, error = NULL, updated_at = $4
WHERE id = $1`

const updateNovelContentQuery = `
UPDATE novels
SET title = $3, status = $4, content = $5, error = NULL, updated_at = $6
WHERE id = $1 AND user_id = $2`

const setNovelErrorQuery = `
UPDATE novels
SET status = $2, error = $3, updated_at = $4
WHERE id = $1`

const deleteNovelQuery = `
DELETE FROM novels
WHERE id = $1 AND user_id = $2`

// Create сохраняет новую запись новеллы (обычно в статусе generating).
func (r *pgNovelRepository) Create(ctx context.Context, novel *model.NovelRecord) error {
	if novel.ID == uuid.Nil {
		novel.ID = uuid.New()
	}
	now := time.Now().UTC()
	if novel.CreatedAt.IsZero() {
		novel.CreatedAt = now
	}
	novel.UpdatedAt = now

	_, err := r.db.Exec(ctx, createNovelQuery,
		novel.ID,
		novel.UserID,
		novel.Title,
		novel.Status,
		novel.Content,
		novel.CreatedAt,
		novel.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create novel", zap.Error(err), zap.String("novelID", novel.ID.String()))
		return fmt.Errorf("ошибка создания новеллы: %w", err)
	}
	r.logger.Info("Novel created", zap.String("novelID", novel.ID.String()), zap.String("userID", novel.UserID.String()))
	return nil
}

// GetByID возвращает новеллу по идентификатору.
func (r *pgNovelRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.NovelRecord, error) {
	var novel model.NovelRecord
	err := pgxscan.Get(ctx, r.db, &novel, getNovelByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Novel not found", zap.String("novelID", id.String()))
			return nil, model.ErrNotFound
		}
		r.logger.Error("Failed to get novel by ID", zap.Error(err), zap.String("novelID", id.String()))
		return nil, fmt.Errorf("ошибка получения новеллы %s: %w", id, err)
	}
	return &novel, nil
}

// Верхняя граница id для первой страницы: сравнение (created_at, id)
// должно пропустить любую реальную запись.
var maxCursorID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

// ListByUser возвращает страницу новелл пользователя (keyset-пагинация
// по паре created_at, id).
func (r *pgNovelRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *ListCursor) ([]model.NovelSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	before := ListCursor{CreatedAt: time.Now().UTC().Add(time.Minute), ID: maxCursorID}
	if cursor != nil {
		before = *cursor
	}

	var novels []model.NovelSummary
	err := pgxscan.Select(ctx, r.db, &novels, listNovelsByUserQuery, userID, before.CreatedAt, before.ID, limit)
	if err != nil {
		r.logger.Error("Failed to list novels", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("ошибка получения списка новелл: %w", err)
	}
	return novels, nil
}

// SetReady переводит новеллу в статус ready и сохраняет сгенерированный контент.
func (r *pgNovelRepository) SetReady(ctx context.Context, id uuid.UUID, content *engine.Novel) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("ошибка сериализации контента новеллы: %w", err)
	}

	tag, err := r.db.Exec(ctx, setNovelReadyQuery, id, model.StatusReady, raw, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to mark novel ready", zap.Error(err), zap.String("novelID", id.String()))
		return fmt.Errorf("ошибка обновления новеллы %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Novel marked ready", zap.String("novelID", id.String()))
	return nil
}

// UpdateContent заменяет документ новеллы пользователя. userID участвует в
// условии, поэтому чужая запись выглядит как отсутствующая.
func (r *pgNovelRepository) UpdateContent(ctx context.Context, id, userID uuid.UUID, title string, content *engine.Novel) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("ошибка сериализации контента новеллы: %w", err)
	}

	tag, err := r.db.Exec(ctx, updateNovelContentQuery, id, userID, title, model.StatusReady, raw, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update novel content", zap.Error(err), zap.String("novelID", id.String()))
		return fmt.Errorf("ошибка обновления новеллы %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Novel content updated", zap.String("novelID", id.String()))
	return nil
}

// SetError переводит новеллу в статус error с текстом причины.
func (r *pgNovelRepository) SetError(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.db.Exec(ctx, setNovelErrorQuery, id, model.StatusError, message, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to mark novel errored", zap.Error(err), zap.String("novelID", id.String()))
		return fmt.Errorf("ошибка обновления новеллы %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Warn("Novel generation failed", zap.String("novelID", id.String()), zap.String("reason", message))
	return nil
}

// Delete удаляет новеллу. userID участвует в условии, чтобы пользователь
// не мог удалить чужую новеллу.
func (r *pgNovelRepository) Delete(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, deleteNovelQuery, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete novel", zap.Error(err), zap.String("novelID", id.String()))
		return fmt.Errorf("ошибка удаления новеллы %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	r.logger.Info("Novel deleted", zap.String("novelID", id.String()))
	return nil
}
