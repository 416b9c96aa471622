package handler

import (
	"errors"
	"net/http"
	"time"

	"novel-engine/internal/middleware"
	"novel-engine/internal/model"
	"novel-engine/internal/service"
	"novel-engine/pkg/engine"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NovelHandler — HTTP-слой API новелл и прохождения.
type NovelHandler struct {
	novels     service.NovelService
	play       service.PlayService
	generation service.GenerationService
	logger     *zap.Logger
}

func NewNovelHandler(
	novels service.NovelService,
	play service.PlayService,
	generation service.GenerationService,
	logger *zap.Logger,
) *NovelHandler {
	return &NovelHandler{
		novels:     novels,
		play:       play,
		generation: generation,
		logger:     logger.Named("NovelHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API. generateLimiter может быть nil
// (лимит отключен, например в тестах).
func (h *NovelHandler) RegisterRoutes(r *gin.Engine, generateLimiter gin.HandlerFunc) {
	api := r.Group("/api", middleware.RequireUserID())

	novels := api.Group("/novels")
	novels.GET("", h.listNovels)
	novels.POST("", h.importNovel)
	if generateLimiter != nil {
		novels.POST("/generate", generateLimiter, h.generateNovel)
	} else {
		novels.POST("/generate", h.generateNovel)
	}
	novels.GET("/:id", h.getNovel)
	novels.PUT("/:id", h.updateNovel)
	novels.DELETE("/:id", h.deleteNovel)

	play := novels.Group("/:id/play")
	play.POST("/start", h.startPlay)
	play.POST("/choose", h.choosePlay)
	play.POST("/advance", h.advancePlay)
	play.POST("/goto", h.gotoPlay)
	play.POST("/variables", h.setPlayVariable)
	play.POST("/reset", h.resetPlay)
}

// NewGenerateRateLimiter собирает лимитер на запуск генераций поверх Redis:
// limit запросов в минуту на пользователя.
func NewGenerateRateLimiter(redisClient *redis.Client, limit int64) gin.HandlerFunc {
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: redisClient,
		Rate:        time.Minute,
		Limit:       uint(limit),
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.JSON(http.StatusTooManyRequests, APIError{
				Message: "Слишком много запросов генерации, попробуйте позже",
			})
		},
		KeyFunc: func(c *gin.Context) string {
			// Лимит считается на пользователя, а не на IP
			if id, ok := middleware.UserID(c); ok {
				return id.String()
			}
			return c.ClientIP()
		},
	})
}

// handleServiceError сопоставляет доменные ошибки с HTTP-статусами.
func (h *NovelHandler) handleServiceError(c *gin.Context, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: "Новелла не найдена"})
	case errors.Is(err, model.ErrNovelNotReady):
		c.JSON(http.StatusConflict, APIError{Message: "Новелла еще не готова"})
	case errors.Is(err, model.ErrNoTransition):
		// Ожидаемый навигационный промах, состояние сессии не изменилось
		c.JSON(http.StatusConflict, APIError{Message: "Переход сейчас недоступен"})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, APIError{Message: "Документ новеллы не прошел валидацию", Details: verr.Error()})
	case errors.Is(err, model.ErrInvalidNovel):
		c.JSON(http.StatusUnprocessableEntity, APIError{Message: "Документ новеллы не прошел валидацию", Details: err.Error()})
	default:
		h.logger.Error("Unhandled service error", zap.Error(err), zap.String("path", c.FullPath()))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, APIError{Message: "Внутренняя ошибка сервера"})
	}
}

func (h *NovelHandler) userAndNovelID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIError{Message: "Пользователь не определен"})
		return uuid.Nil, uuid.Nil, false
	}
	novelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Некорректный ID новеллы"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, novelID, true
}
