package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
