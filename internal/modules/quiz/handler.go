package quiz

import (
	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// RegisterRoutes mounts the quiz routes. generateMW wraps only the generate
// endpoint, which is the one that calls out to Wikipedia and the model.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, generateMW ...gin.HandlerFunc) {
	g := rg.Group("/quiz")

	g.POST("/generate", append(generateMW, h.generate)...)
	g.POST("/validate-url", h.validateURL)
	g.GET("/:id", h.get)
}

// POST /quiz/generate
func (h *Handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	record, err := h.svc.Generate(c.Request.Context(), req.URL)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// POST /quiz/validate-url
func (h *Handler) validateURL(c *gin.Context) {
	var req ValidateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	response.OK(c, h.svc.ValidateURL(req.URL))
}

// GET /quiz/:id
func (h *Handler) get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}
