package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/rss-mosaic/app/aggregator"
	"github.com/lysyi3m/rss-mosaic/app/cfg"
	"github.com/lysyi3m/rss-mosaic/app/pager"
	"github.com/lysyi3m/rss-mosaic/app/registry"
)

func NewHandler(reg registry.Registry, agg AggregatorInterface, sessions *SessionStore) *Handler {
	return &Handler{
		registry:   reg,
		aggregator: agg,
		sessions:   sessions,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   len(h.registry.ListSources()),
		"sessions":  h.sessions.Len(),
		"version":   cfg.GetVersion(),
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources := h.registry.ListSources()

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) CreateSession(c *gin.Context) {
	mode, err := aggregator.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pageSize := pager.DefaultPageSize
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
	}

	var day time.Time
	if raw := c.Query("day"); raw != "" {
		day, err = time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be formatted as YYYY-MM-DD"})
			return
		}
	}

	session := newSession(mode, pageSize, c.Query("category"), day)
	tagged := h.aggregator.AggregateTagged(c.Request.Context(), &session.gens, mode, session.options()...)
	if tagged.Err != nil {
		h.aggregationError(c, tagged.Err)
		return
	}

	page, _ := session.apply(tagged)
	h.sessions.Add(session)

	slog.Info("Session created", "session", session.ID, "mode", mode, "articles", len(tagged.Result.Articles))

	c.JSON(http.StatusCreated, session.response(page))
}

func (h *Handler) RefreshSession(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	mode := session.Mode()
	if raw := c.Query("mode"); raw != "" {
		var err error
		if mode, err = aggregator.ParseMode(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	tagged := h.aggregator.AggregateTagged(c.Request.Context(), &session.gens, mode, session.options()...)
	if !session.gens.IsLatest(tagged.Generation) {
		slog.Debug("Discarding superseded aggregation", "session", session.ID, "generation", tagged.Generation)
		c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
		return
	}
	if tagged.Err != nil {
		h.aggregationError(c, tagged.Err)
		return
	}

	page, applied := session.apply(tagged)
	if !applied {
		c.JSON(http.StatusConflict, gin.H{"error": "superseded"})
		return
	}

	c.JSON(http.StatusOK, session.response(page))
}

func (h *Handler) NextPage(c *gin.Context) {
	session, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	page, ok := session.pager.Next()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "page in flight"})
		return
	}
	defer session.pager.Consumed()

	c.JSON(http.StatusOK, session.response(page))
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) aggregationError(c *gin.Context, err error) {
	if errors.Is(err, aggregator.ErrNoArticles) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	slog.Error("Aggregation failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
}
