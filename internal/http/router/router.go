package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/copilot-survey/internal/http/handler/webhook"
)

type RouterConfig struct {
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router *gin.Engine, githubHandler *webhook.GitHubWebhookHandler, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	WebhookRouter(router.Group("/webhooks"), githubHandler)
}
