package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/models"
	"github.com/gogotex/todo-api/internal/todos"
	"github.com/gogotex/todo-api/pkg/middleware"
)

type createTodoRequest struct {
	Description string          `json:"description" binding:"required"`
	Priority    models.Priority `json:"priority" binding:"required,oneof=low medium high"`
}

func (r *createTodoRequest) normalize() {
	r.Description = strings.TrimSpace(r.Description)
	r.Priority = models.Priority(strings.TrimSpace(string(r.Priority)))
}

// TodoHandler serves the /to-do routes. Every route requires a caller.
type TodoHandler struct {
	svc *todos.Service
}

func NewTodoHandler(svc *todos.Service) *TodoHandler {
	return &TodoHandler{svc: svc}
}

func (h *TodoHandler) Register(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/to-do", authMW)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/export", h.Export)
	g.PATCH("/:id", h.Complete)
	g.DELETE("/:id", h.Delete)
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req createTodoRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	uid := middleware.UID(c)
	id, err := h.svc.Create(c.Request.Context(), uid, todos.NewItem{Description: req.Description, Priority: req.Priority})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "uid": uid})
}

func (h *TodoHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), middleware.UID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *TodoHandler) Complete(c *gin.Context) {
	if err := h.svc.Complete(c.Request.Context(), middleware.UID(c), pathID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"description": "Task marked as complete!"})
}

func (h *TodoHandler) Delete(c *gin.Context) {
	id := pathID(c)
	if err := h.svc.Delete(c.Request.Context(), middleware.UID(c), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *TodoHandler) Export(c *gin.Context) {
	exp, err := h.svc.Export(c.Request.Context(), middleware.UID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}
