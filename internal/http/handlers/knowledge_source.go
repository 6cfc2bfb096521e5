package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/http/response"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
	"github.com/ejwhite7/zendesk-academy/internal/services"
)

const maxWebhookBody = 1 << 20

type KnowledgeSourceHandler struct {
	log *logger.Logger
	svc services.CourseGenerationService
}

func NewKnowledgeSourceHandler(log *logger.Logger, svc services.CourseGenerationService) *KnowledgeSourceHandler {
	return &KnowledgeSourceHandler{log: log.With("handler", "KnowledgeSourceHandler"), svc: svc}
}

// POST /api/knowledge-sources/:id/sync
func (h *KnowledgeSourceHandler) Sync(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_knowledge_source_id", err)
		return
	}
	res, err := h.svc.SyncKnowledgeSource(c.Request.Context(), sourceID)
	if err != nil {
		h.log.Warn("Sync failed", "knowledge_source_id", sourceID, "error", err)
	}
	response.RespondOK(c, res)
}

// POST /api/knowledge-sources/:id/webhook
func (h *KnowledgeSourceHandler) Webhook(c *gin.Context) {
	sourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_knowledge_source_id", err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.svc.ApplyWebhook(c.Request.Context(), sourceID, body)
	if errors.Is(err, apperr.ErrInvalidArgument) {
		response.RespondError(c, http.StatusBadRequest, "invalid_webhook", err)
		return
	}
	if err != nil {
		h.log.Warn("Webhook apply failed", "knowledge_source_id", sourceID, "error", err)
	}
	response.RespondOK(c, res)
}
