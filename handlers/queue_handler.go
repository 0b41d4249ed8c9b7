package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"fila-zero/models"
	"fila-zero/security"
	"fila-zero/services"
)

// QueueHandler is thin HTTP glue over the queue engine: bind, call, map the
// result or typed failure to a status code.
type QueueHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
	rateLimiter  *security.RateLimiter
}

func NewQueueHandler(app *pocketbase.PocketBase, queueService *services.QueueService, rateLimiter *security.RateLimiter) *QueueHandler {
	return &QueueHandler{
		app:          app,
		queueService: queueService,
		rateLimiter:  rateLimiter,
	}
}

// JoinQueue - POST /api/queue
func (h *QueueHandler) JoinQueue(e *core.RequestEvent) error {
	var req struct {
		EstablishmentID string `json:"establishmentId"`
		Name            string `json:"name"`
		Phone           string `json:"phone"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	if !h.rateLimiter.AllowJoin(ctx, req.Phone) {
		return apis.NewApiError(http.StatusTooManyRequests, "Too many join attempts, try again later", nil)
	}

	entry, err := h.queueService.Enqueue(ctx, req.EstablishmentID, req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return apis.NewBadRequestError("establishmentId, name and phone are required", err)
		}
		return apis.NewInternalServerError("Failed to join queue", err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"data":    entry,
		"message": "You joined the queue",
	})
}

// GetQueue - GET /api/queue/{establishmentId}
func (h *QueueHandler) GetQueue(e *core.RequestEvent) error {
	establishmentID := e.Request.PathValue("establishmentId")
	if establishmentID == "" {
		return apis.NewBadRequestError("establishmentId is required", nil)
	}

	ctx := e.Request.Context()

	queue, err := h.queueService.GetWaitingQueue(ctx, establishmentID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load queue", err)
	}
	stats, err := h.queueService.GetStats(ctx, establishmentID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load stats", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"queue": queue,
			"stats": stats,
		},
	})
}

// GetAllEntries - GET /api/queue/{establishmentId}/all (admin view)
func (h *QueueHandler) GetAllEntries(e *core.RequestEvent) error {
	establishmentID := e.Request.PathValue("establishmentId")
	if establishmentID == "" {
		return apis.NewBadRequestError("establishmentId is required", nil)
	}

	ctx := e.Request.Context()

	entries, err := h.queueService.GetAllEntries(ctx, establishmentID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load entries", err)
	}
	stats, err := h.queueService.GetStats(ctx, establishmentID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load stats", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"entries": entries,
			"stats":   stats,
		},
	})
}

// CallNext - POST /api/queue/{establishmentId}/call
func (h *QueueHandler) CallNext(e *core.RequestEvent) error {
	establishmentID := e.Request.PathValue("establishmentId")
	if establishmentID == "" {
		return apis.NewBadRequestError("establishmentId is required", nil)
	}

	entry, err := h.queueService.CallNext(e.Request.Context(), establishmentID)
	if err != nil {
		return apis.NewInternalServerError("Failed to call next client", err)
	}
	if entry == nil {
		return apis.NewNotFoundError("Nobody is waiting in this queue", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    entry,
		"message": entry.Name + " was called",
	})
}

// ServeEntry - POST /api/queue/{establishmentId}/serve/{entryId}
func (h *QueueHandler) ServeEntry(e *core.RequestEvent) error {
	establishmentID := e.Request.PathValue("establishmentId")
	entryID := e.Request.PathValue("entryId")
	if establishmentID == "" || entryID == "" {
		return apis.NewBadRequestError("establishmentId and entryId are required", nil)
	}

	entry, err := h.queueService.MarkServed(e.Request.Context(), establishmentID, entryID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return apis.NewBadRequestError("Entry is not currently called", err)
		}
		return apis.NewInternalServerError("Failed to finish service", err)
	}
	if entry == nil {
		return apis.NewNotFoundError("Entry not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    entry,
		"message": "Service finished",
	})
}
