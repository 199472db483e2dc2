package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// RouterOptions зависимости HTTP-роутера.
type RouterOptions struct {
	Handler *Handler
	Health  *health.Handler
	Logger  *log.Entry
}

// NewRouter собирает gin-роутер API заказов.
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(logger))
	router.NoRoute(func(c *gin.Context) {
		respondProblem(c, ProblemDetail{
			Type:   "/problems/route-not-found",
			Title:  "Route Not Found",
			Status: http.StatusNotFound,
		})
	})

	router.GET("/livez", gin.WrapF(health.LivenessHandler))
	if opts.Health != nil {
		router.GET("/healthz", gin.WrapH(opts.Health))
		router.GET("/readyz", gin.WrapF(opts.Health.ReadinessHandler))
	}
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Build())
	})

	h := opts.Handler
	if h == nil {
		return router
	}

	v1 := router.Group("/v1/orders")
	v1.GET("", h.listOrders)
	v1.GET("/:orderId", h.getOrder)
	v1.GET("/:orderId/statuses", h.listStatuses)
	v1.GET("/:orderId/notes", h.listNotes)

	mutations := v1.Group("", RequireActor())
	mutations.POST("", h.createOrder)
	mutations.PUT("/:orderId", h.updateOrder)
	mutations.DELETE("/:orderId", h.deleteOrder)
	mutations.POST("/:orderId/cancel", h.cancelOrder)
	mutations.POST("/:orderId/statuses", h.appendStatus)
	mutations.POST("/:orderId/notes", h.addNote)
	mutations.POST("/batch", h.createBatch)
	mutations.PUT("/batch", h.updateBatch)
	mutations.POST("/batch/cancel", h.cancelBatch)

	return router
}
