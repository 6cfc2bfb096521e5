package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/learning/assembler"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/learning/reconciler"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type fakeService struct {
	generated   []assembler.Request
	regenerated []uuid.UUID
	genResult   assembler.Result
	genErr      error
	syncResult  reconciler.SyncResult
	syncErr     error
	webhookErr  error
	approveErr  error
	refreshErr  error
	refreshed   []bool
}

func (f *fakeService) GenerateCourse(_ context.Context, req assembler.Request) (assembler.Result, error) {
	f.generated = append(f.generated, req)
	return f.genResult, f.genErr
}

func (f *fakeService) RegenerateCourse(_ context.Context, courseID uuid.UUID) (assembler.Result, error) {
	f.regenerated = append(f.regenerated, courseID)
	return f.genResult, f.genErr
}

func (f *fakeService) SyncKnowledgeSource(context.Context, uuid.UUID) (reconciler.SyncResult, error) {
	return f.syncResult, f.syncErr
}

func (f *fakeService) ApplyWebhook(context.Context, uuid.UUID, []byte) (reconciler.SyncResult, error) {
	if f.webhookErr != nil {
		return reconciler.SyncResult{Error: f.webhookErr.Error()}, f.webhookErr
	}
	return reconciler.SyncResult{Success: true, ArticlesProcessed: 1, CoursesAffected: []string{}}, nil
}

func (f *fakeService) RefreshLessonContent(_ context.Context, _ uuid.UUID, preserve, apply bool) (*generator.ContentUpdate, error) {
	f.refreshed = []bool{preserve, apply}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &generator.ContentUpdate{UpdatedContent: "new", ChangeSummary: "changed"}, nil
}

func (f *fakeService) ListRuns(context.Context, uuid.UUID) ([]*types.GenerationRun, error) {
	return []*types.GenerationRun{{ID: uuid.New(), Kind: types.RunKindRegenerate, Status: types.RunStatusPending}}, nil
}

func (f *fakeService) ApproveRun(_ context.Context, runID uuid.UUID) (*types.GenerationRun, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	return &types.GenerationRun{ID: runID, Status: types.RunStatusQueued}, nil
}

func (f *fakeService) ExecuteRun(context.Context, *types.GenerationRun) error { return nil }

func newEngine(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	gen := NewCourseGenerationHandler(log, svc)
	ks := NewKnowledgeSourceHandler(log, svc)
	r := gin.New()
	r.POST("/api/courses/generate", gen.Generate)
	r.POST("/api/courses/:id/regenerate", gen.Regenerate)
	r.GET("/api/courses/:id/generation-runs", gen.ListRuns)
	r.POST("/api/generation-runs/:id/approve", gen.ApproveRun)
	r.POST("/api/lessons/:id/content-update", gen.RefreshLesson)
	r.POST("/api/knowledge-sources/:id/sync", ks.Sync)
	r.POST("/api/knowledge-sources/:id/webhook", ks.Webhook)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGenerateReturnsResultObject(t *testing.T) {
	courseID := uuid.New().String()
	svc := &fakeService{genResult: assembler.Result{
		CourseID: courseID,
		Success:  true,
		Stats:    assembler.Stats{ModulesCreated: 2, LessonsCreated: 3},
	}}
	r := newEngine(svc)

	tenant, source := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"tenantId":%q,"knowledgeSourceId":%q,"articleIds":["1","2"],"options":{"maxModules":2}}`, tenant, source)
	rec := do(r, http.MethodPost, "/api/courses/generate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got assembler.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Success)
	assert.Equal(t, courseID, got.CourseID)
	assert.Equal(t, 2, got.Stats.ModulesCreated)

	require.Len(t, svc.generated, 1)
	assert.Equal(t, []string{"1", "2"}, svc.generated[0].ArticleIDs)
	assert.Equal(t, 2, svc.generated[0].Options.MaxModules)
}

func TestGenerateFailureIsStillOK(t *testing.T) {
	err := fmt.Errorf("no articles: %w", apperr.ErrNoArticles)
	svc := &fakeService{genResult: assembler.Result{Success: false, Error: err.Error()}, genErr: err}
	r := newEngine(svc)

	body := fmt.Sprintf(`{"tenantId":%q,"knowledgeSourceId":%q}`, uuid.New(), uuid.New())
	rec := do(r, http.MethodPost, "/api/courses/generate", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), "no articles")
}

func TestGenerateRejectsMalformedRequest(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc)

	rec := do(r, http.MethodPost, "/api/courses/generate", `{"tenantId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/api/courses/generate", `{"articleIds":["1"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_request"`)
	assert.Empty(t, svc.generated)
}

func TestRegenerate(t *testing.T) {
	svc := &fakeService{genResult: assembler.Result{Success: true}}
	r := newEngine(svc)

	rec := do(r, http.MethodPost, "/api/courses/not-a-uuid/regenerate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := uuid.New()
	rec = do(r, http.MethodPost, "/api/courses/"+id.String()+"/regenerate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []uuid.UUID{id}, svc.regenerated)
}

func TestApproveRunConflict(t *testing.T) {
	svc := &fakeService{approveErr: fmt.Errorf("run is running, not pending: %w", apperr.ErrInvalidArgument)}
	r := newEngine(svc)
	rec := do(r, http.MethodPost, "/api/generation-runs/"+uuid.New().String()+"/approve", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.approveErr = fmt.Errorf("run: %w", apperr.ErrNotFound)
	rec = do(r, http.MethodPost, "/api/generation-runs/"+uuid.New().String()+"/approve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.approveErr = nil
	rec = do(r, http.MethodPost, "/api/generation-runs/"+uuid.New().String()+"/approve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
}

func TestListRuns(t *testing.T) {
	r := newEngine(&fakeService{})
	rec := do(r, http.MethodGet, "/api/courses/"+uuid.New().String()+"/generation-runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"regenerate"`)
}

func TestRefreshLessonFlags(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(svc)
	rec := do(r, http.MethodPost, "/api/lessons/"+uuid.New().String()+"/content-update?apply=true&preserve_edits=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []bool{false, true}, svc.refreshed)

	svc.refreshErr = fmt.Errorf("lesson cites no articles: %w", apperr.ErrNoArticles)
	rec = do(r, http.MethodPost, "/api/lessons/"+uuid.New().String()+"/content-update", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []bool{true, false}, svc.refreshed)
}

func TestSyncAndWebhook(t *testing.T) {
	svc := &fakeService{syncResult: reconciler.SyncResult{Success: true, ArticlesProcessed: 4, CoursesAffected: []string{"c1"}}}
	r := newEngine(svc)

	rec := do(r, http.MethodPost, "/api/knowledge-sources/"+uuid.New().String()+"/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got reconciler.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.ArticlesProcessed)
	assert.Equal(t, []string{"c1"}, got.CoursesAffected)

	rec = do(r, http.MethodPost, "/api/knowledge-sources/"+uuid.New().String()+"/webhook", `{"type":"zen:event-type:article.published"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.webhookErr = fmt.Errorf("bad payload: %w", apperr.ErrInvalidArgument)
	rec = do(r, http.MethodPost, "/api/knowledge-sources/"+uuid.New().String()+"/webhook", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
