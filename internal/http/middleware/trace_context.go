package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
	// Zendesk webhooks carry their own delivery id; reuse it so retried
	// deliveries correlate in the logs.
	headerZendeskWebhookID = "X-Zendesk-Webhook-Invocation-Id"
)

// AttachTraceContext stamps every API request with trace/request ids and
// marks the work it starts as operator-triggered.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := firstHeader(c, headerRequestID, headerZendeskWebhookID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := firstHeader(c, headerTraceID)
		if traceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
			Trigger:   types.RunTriggerOperator,
		}))
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

func firstHeader(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.GetHeader(k)); v != "" {
			return v
		}
	}
	return ""
}
