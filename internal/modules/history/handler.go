// Package history serves the read and delete side of stored quizzes.
package history

import (
	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/modules/quiz"
	"github.com/wikiquiz/server/internal/pkg/pagination"
	"github.com/wikiquiz/server/internal/pkg/response"
)

type Handler struct {
	svc *quiz.Service
}

func NewHandler(svc *quiz.Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/history")

	g.GET("", h.list)
	g.GET("/stats/summary", h.stats)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

// GET /history?page=N&limit=N
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// GET /history/:id
func (h *Handler) get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// DELETE /history/:id
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Quiz deleted successfully")
}

// GET /history/stats/summary
func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
