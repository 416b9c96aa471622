package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *NovelHandler) startPlay(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	state, err := h.play.Start(c.Request.Context(), userID, novelID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *NovelHandler) choosePlay(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	var req chooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Некорректное тело запроса: " + err.Error()})
		return
	}
	state, err := h.play.Choose(c.Request.Context(), userID, novelID, *req.ChoiceIndex)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *NovelHandler) advancePlay(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	state, err := h.play.Advance(c.Request.Context(), userID, novelID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *NovelHandler) gotoPlay(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	var req gotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Некорректное тело запроса: " + err.Error()})
		return
	}
	state, err := h.play.Goto(c.Request.Context(), userID, novelID, req.SceneID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *NovelHandler) setPlayVariable(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	var req setVariableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "Некорректное тело запроса: " + err.Error()})
		return
	}
	state, err := h.play.SetVariable(c.Request.Context(), userID, novelID, req.Name, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *NovelHandler) resetPlay(c *gin.Context) {
	userID, novelID, ok := h.userAndNovelID(c)
	if !ok {
		return
	}
	state, err := h.play.Reset(c.Request.Context(), userID, novelID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
