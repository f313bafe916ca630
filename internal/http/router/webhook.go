package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/copilot-survey/internal/http/handler/webhook"
)

func WebhookRouter(rg *gin.RouterGroup, h *webhook.GitHubWebhookHandler) {
	rg.POST("/github", h.HandleEvent)
}
