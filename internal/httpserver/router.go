package httpserver

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JuliaRakitina/ai-email-sorter/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	categoryHandler *handler.CategoryHandler,
	messageHandler *handler.MessageHandler,
	webhookHandler *handler.WebhookHandler,
	eventsHandler *handler.EventsHandler,
	jwtSecret string,
) *Router {
	r := gin.Default()
	r.Use(MetricsMiddleware())

	// Public
	r.GET("/auth/login", authHandler.Login)
	r.GET("/auth/callback", authHandler.Callback)
	r.POST("/webhooks/pubsub", webhookHandler.HandlePush)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/accounts", accountHandler.List)
		auth.DELETE("/accounts/:id", accountHandler.Disconnect)
		auth.POST("/accounts/:id/sync", accountHandler.Sync)
		auth.POST("/accounts/:id/watch", accountHandler.RenewWatch)
		auth.GET("/accounts/:id/categories", categoryHandler.List)

		auth.POST("/categories", categoryHandler.Create)
		auth.DELETE("/categories/:id", categoryHandler.Delete)
		auth.GET("/categories/:id/messages", categoryHandler.Messages)
		auth.POST("/categories/:id/bulk", categoryHandler.Bulk)
		auth.GET("/categories/:id/unsubscribe-status", categoryHandler.UnsubscribeStatus)

		auth.GET("/messages/:id", messageHandler.Get)
		auth.GET("/events", eventsHandler.Stream)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(":" + port)
}
