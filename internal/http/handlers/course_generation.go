package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/http/response"
	"github.com/ejwhite7/zendesk-academy/internal/learning/assembler"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
	"github.com/ejwhite7/zendesk-academy/internal/services"
)

type CourseGenerationHandler struct {
	log *logger.Logger
	svc services.CourseGenerationService
}

func NewCourseGenerationHandler(log *logger.Logger, svc services.CourseGenerationService) *CourseGenerationHandler {
	return &CourseGenerationHandler{log: log.With("handler", "CourseGenerationHandler"), svc: svc}
}

// POST /api/courses/generate
//
// Generation outcomes, including failures, are returned as a 200 result object.
// Only undecodable requests get an error envelope.
func (h *CourseGenerationHandler) Generate(c *gin.Context) {
	var req assembler.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.TenantID == uuid.Nil || req.KnowledgeSourceID == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("tenantId and knowledgeSourceId are required"))
		return
	}
	res, err := h.svc.GenerateCourse(c.Request.Context(), req)
	if err != nil {
		h.log.Warn("Generate course failed", "knowledge_source_id", req.KnowledgeSourceID, "error", err)
	}
	response.RespondOK(c, res)
}

// POST /api/courses/:id/regenerate
func (h *CourseGenerationHandler) Regenerate(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	res, err := h.svc.RegenerateCourse(c.Request.Context(), courseID)
	if err != nil {
		h.log.Warn("Regenerate course failed", "course_id", courseID, "error", err)
	}
	response.RespondOK(c, res)
}

// GET /api/courses/:id/generation-runs
func (h *CourseGenerationHandler) ListRuns(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	runs, err := h.svc.ListRuns(c.Request.Context(), courseID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "list_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// POST /api/generation-runs/:id/approve
func (h *CourseGenerationHandler) ApproveRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.svc.ApproveRun(c.Request.Context(), runID)
	if err != nil {
		status := response.StatusFor(err)
		if status == http.StatusBadRequest {
			status = http.StatusConflict
		}
		response.RespondError(c, status, "approve_run_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/lessons/:id/content-update?preserve_edits=true&apply=false
func (h *CourseGenerationHandler) RefreshLesson(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	preserve := queryBool(c, "preserve_edits", true)
	apply := queryBool(c, "apply", false)
	update, err := h.svc.RefreshLessonContent(c.Request.Context(), lessonID, preserve, apply)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "content_update_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"update": update, "applied": apply})
}

func queryBool(c *gin.Context, key string, def bool) bool {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
