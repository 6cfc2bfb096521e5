package app

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/ejwhite7/zendesk-academy/internal/http"
	httpH "github.com/ejwhite7/zendesk-academy/internal/http/handlers"
	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type Handlers struct {
	Health           *httpH.HealthHandler
	CourseGeneration *httpH.CourseGenerationHandler
	KnowledgeSource  *httpH.KnowledgeSourceHandler
}

func wireHandlers(log *logger.Logger, services Services, db httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:           httpH.NewHealthHandler(db),
		CourseGeneration: httpH.NewCourseGenerationHandler(log, services.CourseGeneration),
		KnowledgeSource:  httpH.NewKnowledgeSourceHandler(log, services.CourseGeneration),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:                     log,
		ServiceName:             cfg.Otel.ServiceName,
		TracingEnabled:          cfg.Otel.Enabled,
		CORSOrigins:             cfg.CORSOrigins,
		Metrics:                 metrics,
		HealthHandler:           handlers.Health,
		CourseGenerationHandler: handlers.CourseGeneration,
		KnowledgeSourceHandler:  handlers.KnowledgeSource,
	})
}
