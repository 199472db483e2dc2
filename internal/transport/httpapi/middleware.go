package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// HeaderRequestID идентификатор запроса, сквозной для логов.
	HeaderRequestID = "X-Request-Id"
	// HeaderActorID инициатор изменения, проставляется шлюзом.
	HeaderActorID = "X-Actor-Id"

	ctxRequestID = "request_id"
	ctxActor     = "actor"
)

// RequestID пробрасывает X-Request-Id или выдаёт новый.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog пишет строку лога на каждый запрос.
func AccessLog(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
			"request_id":  requestIDFrom(c),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("http request")
			return
		}
		entry.Info("http request")
	}
}

// RequireActor отклоняет мутации без X-Actor-Id.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if actor == "" {
			respondProblem(c, problemUnauthorized.WithDetail(HeaderActorID+" header is required"))
			return
		}
		c.Set(ctxActor, actor)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func actorFrom(c *gin.Context) string {
	return c.GetString(ctxActor)
}
