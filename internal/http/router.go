package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/ejwhite7/zendesk-academy/internal/http/handlers"
	httpMW "github.com/ejwhite7/zendesk-academy/internal/http/middleware"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	TracingEnabled bool
	CORSOrigins    []string
	Metrics        *observability.Metrics

	HealthHandler           *httpH.HealthHandler
	CourseGenerationHandler *httpH.CourseGenerationHandler
	KnowledgeSourceHandler  *httpH.KnowledgeSourceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "zendesk-academy"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	{
		// Course generation
		if cfg.CourseGenerationHandler != nil {
			api.POST("/courses/generate", cfg.CourseGenerationHandler.Generate)
			api.POST("/courses/:id/regenerate", cfg.CourseGenerationHandler.Regenerate)
			api.GET("/courses/:id/generation-runs", cfg.CourseGenerationHandler.ListRuns)
			api.POST("/generation-runs/:id/approve", cfg.CourseGenerationHandler.ApproveRun)
			api.POST("/lessons/:id/content-update", cfg.CourseGenerationHandler.RefreshLesson)
		}

		// Knowledge sources
		if cfg.KnowledgeSourceHandler != nil {
			api.POST("/knowledge-sources/:id/sync", cfg.KnowledgeSourceHandler.Sync)
			api.POST("/knowledge-sources/:id/webhook", cfg.KnowledgeSourceHandler.Webhook)
		}
	}

	return r
}
