package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"novel-engine/internal/middleware"
	"novel-engine/internal/repository"
	"novel-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Лимит размера импортируемого документа новеллы.
const maxNovelDocumentBytes = 4 << 20

// importNovel принимает готовый JSON-документ новеллы.
func (h *NovelHandler) importNovel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "Пользователь не определен"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNovelDocumentBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Не удалось прочитать тело запроса"})
		return
	}
	if len(body) > maxNovelDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, APIError{Message: "Документ новеллы слишком большой"})
		return
	}

	rec, err := h.novels.Import(c.Request.Context(), userID, body)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toNovelResponse(rec))
}

// updateNovel заменяет документ существующей новеллы.
func (h *NovelHandler) updateNovel(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNovelDocumentBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Не удалось прочитать тело запроса"})
		return
	}
	if len(body) > maxNovelDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, APIError{Message: "Документ новеллы слишком большой"})
		return
	}

	rec, err := h.novels.Update(c.Request.Context(), userID, novelID, body)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNovelResponse(rec))
}

// generateNovel ставит задачу генерации и сразу отвечает 202.
func (h *NovelHandler) generateNovel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "Пользователь не определен"})
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Некорректное тело запроса: " + err.Error()})
		return
	}

	rec, err := h.generation.StartGeneration(c.Request.Context(), userID, service.GenerationRequest{
		Prompt:     req.Prompt,
		Title:      req.Title,
		SceneCount: req.SceneCount,
		Tags:       req.Tags,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toNovelResponse(rec))
}

func (h *NovelHandler) getNovel(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	rec, err := h.novels.Get(c.Request.Context(), userID, novelID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNovelResponse(rec))
}

func (h *NovelHandler) listNovels(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "Пользователь не определен"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, APIError{Message: "Некорректный параметр 'limit'"})
			return
		}
		limit = parsed
	}

	var cursor *repository.ListCursor
	if raw := c.Query("cursor"); raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, APIError{Message: "Некорректный параметр 'cursor'"})
			return
		}
		cursorID, err := uuid.Parse(c.Query("cursorId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, APIError{Message: "Некорректный параметр 'cursorId'"})
			return
		}
		cursor = &repository.ListCursor{CreatedAt: createdAt, ID: cursorID}
	}

	novels, err := h.novels.List(c.Request.Context(), userID, limit, cursor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	resp := listResponse{Novels: novels}
	if len(novels) == limit {
		last := novels[len(novels)-1]
		resp.NextCursor = &last.CreatedAt
		resp.NextCursorID = &last.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *NovelHandler) deleteNovel(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	if err := h.novels.Delete(c.Request.Context(), userID, novelID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
