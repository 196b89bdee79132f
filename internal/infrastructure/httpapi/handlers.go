package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

type handler struct {
	store      ports.Store
	controller Controller
	logger     *slog.Logger
}

func (h *handler) health(c *gin.Context) {
	status := gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)}
	if h.store == nil {
		status["status"] = "degraded"
		status["storage"] = "not configured"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		status["status"] = "degraded"
		status["storage"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}

	status["status"] = "ok"
	status["storage"] = "ok"
	c.JSON(http.StatusOK, status)
}

func (h *handler) stats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
		return
	}

	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handler) thread(c *gin.Context) {
	link := c.Query("link")
	if link == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link query parameter is required"})
		return
	}

	thread, err := h.store.FindThread(c.Request.Context(), link)
	if err != nil {
		h.fail(c, "find_thread", err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *handler) comment(c *gin.Context) {
	comment, err := h.store.FindComment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "find_comment", err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *handler) reload(c *gin.Context) {
	if h.controller == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload is not available"})
		return
	}

	if err := h.controller.Reload(c.Request.Context()); err != nil {
		h.logger.Error("reload failed", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (h *handler) poll(c *gin.Context) {
	if h.controller == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "polling is not available"})
		return
	}

	h.controller.TriggerPoll()
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func (h *handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.logger.Error("admin query failed", "operation", op, "error", err)
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrStorageUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
