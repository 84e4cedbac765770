package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sentinella/internal/logger"
	"sentinella/internal/store"
	"sentinella/pkg/errors"
	"sentinella/pkg/models"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// Handler exposes filter and message administration over HTTP. The in-chat
// command interpreter covers quick edits; this API is the full management
// surface.
type Handler struct {
	BaseHandler
	filters  store.FilterRepository
	messages store.MessageRepository
	refresh  func()
}

// NewHandler wires the API over the repositories. refresh is invoked after
// every filter mutation so the rule cache picks the change up immediately;
// nil is allowed in tests.
func NewHandler(filters store.FilterRepository, messages store.MessageRepository, refresh func(), log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		filters:     filters,
		messages:    messages,
		refresh:     refresh,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		filters := v1.Group("/filters")
		{
			filters.GET("", h.ListFilters)
			filters.POST("", h.CreateFilter)
			filters.GET("/:id", h.GetFilter)
			filters.PUT("/:id", h.UpdateFilter)
			filters.DELETE("/:id", h.DeleteFilter)
			filters.POST("/:id/toggle", h.ToggleFilter)
		}

		messages := v1.Group("/messages")
		{
			messages.GET("", h.ListMessages)
			messages.GET("/:id", h.GetMessage)
			messages.PATCH("/:id/metadata", h.UpdateMessageMetadata)
			messages.DELETE("/:id", h.DeleteMessage)
		}
	}
}

func (h *Handler) ListFilters(c *gin.Context) {
	filters, err := h.filters.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, filters)
}

func (h *Handler) CreateFilter(c *gin.Context) {
	var filter models.Filter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := models.ValidateFilter(&filter); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.filters.Create(c.Request.Context(), &filter); err != nil {
		h.HandleError(c, err)
		return
	}

	h.refreshCache()
	c.JSON(http.StatusCreated, filter)
}

func (h *Handler) GetFilter(c *gin.Context) {
	filter, err := h.filters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, filter)
}

func (h *Handler) UpdateFilter(c *gin.Context) {
	existing, err := h.filters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var filter models.Filter
	if err := c.ShouldBindJSON(&filter); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	filter.ID = existing.ID
	filter.Stats = existing.Stats
	filter.CreatedAt = existing.CreatedAt

	if err := models.ValidateFilter(&filter); err != nil {
		h.HandleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	if err := h.filters.Save(c.Request.Context(), &filter); err != nil {
		h.HandleError(c, err)
		return
	}

	h.refreshCache()
	c.JSON(http.StatusOK, filter)
}

func (h *Handler) DeleteFilter(c *gin.Context) {
	if err := h.filters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.refreshCache()
	c.Status(http.StatusNoContent)
}

// ToggleFilter flips the enabled flag, the soft-delete mechanism for
// filters that should stop matching but keep their stats.
func (h *Handler) ToggleFilter(c *gin.Context) {
	ctx := c.Request.Context()
	filter, err := h.filters.Get(ctx, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.filters.UpdateFields(ctx, filter.ID, map[string]interface{}{
		"enabled": !filter.Enabled,
	}); err != nil {
		h.HandleError(c, err)
		return
	}
	filter.Enabled = !filter.Enabled

	h.refreshCache()
	c.JSON(http.StatusOK, filter)
}

func (h *Handler) ListMessages(c *gin.Context) {
	q := store.MessageQuery{
		Status:   models.MessageStatus(c.Query("status")),
		Priority: c.Query("priority"),
		Author:   c.Query("author"),
		Type:     models.ContentType(c.Query("type")),
		Search:   c.Query("search"),
	}

	if v := c.Query("important"); v != "" {
		important := v == "true"
		q.Important = &important
	}
	if tags := c.QueryArray("tag"); len(tags) > 0 {
		q.Tags = tags
	}
	if v := c.Query("date_from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			q.DateFrom = &ts
		}
	}
	if v := c.Query("date_to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			q.DateTo = &ts
		}
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, total, err := h.messages.List(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"total":    total,
		"page":     q.Page,
		"limit":    q.Limit,
	})
}

func (h *Handler) GetMessage(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

type updateMetadataRequest struct {
	IsImportant *bool    `json:"is_important"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	Notes       *string  `json:"notes"`
}

func (h *Handler) UpdateMessageMetadata(c *gin.Context) {
	var req updateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	fields := make(map[string]interface{})
	if req.IsImportant != nil {
		fields["metadata.is_important"] = *req.IsImportant
	}
	if req.Priority != nil {
		if !models.ValidPriority(*req.Priority) {
			h.HandleError(c, errors.ErrValidation.WithDetail("priority", *req.Priority))
			return
		}
		fields["metadata.priority"] = *req.Priority
	}
	if req.Tags != nil {
		fields["metadata.tags"] = req.Tags
	}
	if req.Notes != nil {
		fields["metadata.notes"] = *req.Notes
	}
	if len(fields) == 0 {
		h.HandleError(c, errors.ErrValidation.WithDetail("message", "no updatable fields provided"))
		return
	}

	msg, err := h.messages.UpdateMetadata(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.messages.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) refreshCache() {
	if h.refresh != nil {
		h.refresh()
	}
}
