package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/copilot-survey/common/logger"
	"basegraph.app/copilot-survey/internal/http/dto"
	"basegraph.app/copilot-survey/internal/mapper"
	"basegraph.app/copilot-survey/internal/queue"
	"basegraph.app/copilot-survey/internal/service"
	"basegraph.app/copilot-survey/internal/survey"
	"basegraph.app/copilot-survey/internal/telemetry"
)

const MaxPayloadBytes = 1 << 20

type GitHubWebhookConfig struct {
	Secret      string
	TraceHeader string
}

type GitHubWebhookHandler struct {
	mapper   mapper.EventMapper
	surveys  service.SurveyService
	producer queue.Producer // nil handles events inline
	dedupe   queue.Deduplicator
	metrics  *telemetry.Metrics
	cfg      GitHubWebhookConfig
}

func NewGitHubWebhookHandler(
	m mapper.EventMapper,
	surveys service.SurveyService,
	producer queue.Producer,
	dedupe queue.Deduplicator,
	metrics *telemetry.Metrics,
	cfg GitHubWebhookConfig,
) *GitHubWebhookHandler {
	if dedupe == nil {
		dedupe = queue.NewNoopDeduplicator()
	}
	return &GitHubWebhookHandler{
		mapper:   m,
		surveys:  surveys,
		producer: producer,
		dedupe:   dedupe,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()
	eventType := github.WebHookType(c.Request)
	deliveryID := github.DeliveryID(c.Request)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if h.cfg.Secret != "" {
		signature := c.GetHeader(github.SHA256SignatureHeader)
		if signature == "" {
			signature = c.GetHeader(github.SHA1SignatureHeader)
		}
		if err := github.ValidateSignature(signature, body, []byte(h.cfg.Secret)); err != nil {
			slog.WarnContext(ctx, "invalid webhook signature", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	event, err := h.mapper.Map(ctx, eventType, deliveryID, body)
	if err != nil {
		if errors.Is(err, mapper.ErrEventIgnored) {
			slog.DebugContext(ctx, "github webhook ignored", "reason", err.Error())
			c.JSON(http.StatusOK, dto.WebhookResponse{Status: dto.StatusIgnored, Reason: err.Error()})
			return
		}
		slog.WarnContext(ctx, "invalid github webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	fields := logger.LogFields{
		EventID:    &event.ID,
		Repository: logger.Ptr(event.Repo.String()),
	}
	if event.Issue != nil {
		fields.IssueID = &event.Issue.ID
		fields.IssueNumber = &event.Issue.Number
	}
	ctx = logger.WithLogFields(ctx, fields)
	h.metrics.EventReceived(string(event.Kind))

	first, err := h.dedupe.FirstSeen(ctx, deliveryID)
	if err != nil {
		slog.WarnContext(ctx, "delivery dedupe unavailable, processing anyway", "error", err)
		first = true
	}
	if !first {
		slog.InfoContext(ctx, "duplicate github delivery dropped")
		c.JSON(http.StatusOK, dto.WebhookResponse{Status: dto.StatusDuplicate, EventID: event.ID, Kind: string(event.Kind)})
		return
	}

	if h.producer != nil {
		msg := queue.EventMessage{Event: event, TraceID: h.traceID(c)}
		if err := h.producer.Enqueue(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue survey event", "error", err)
			h.forget(ctx, deliveryID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue event"})
			return
		}
		c.JSON(http.StatusAccepted, dto.WebhookResponse{Status: dto.StatusQueued, EventID: event.ID, Kind: string(event.Kind)})
		return
	}

	if err := h.surveys.Handle(ctx, event); err != nil {
		if errors.Is(err, survey.ErrMalformedSurvey) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed survey"})
			return
		}
		slog.ErrorContext(ctx, "failed to process survey event", "error", err)
		h.forget(ctx, deliveryID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{Status: dto.StatusOK, EventID: event.ID, Kind: string(event.Kind)})
}

// forget releases a delivery whose processing failed so GitHub's redelivery is
// handled instead of dropped as a duplicate.
func (h *GitHubWebhookHandler) forget(ctx context.Context, deliveryID string) {
	if err := h.dedupe.Forget(ctx, deliveryID); err != nil {
		slog.WarnContext(ctx, "failed to clear delivery marker", "error", err)
	}
}

func (h *GitHubWebhookHandler) traceID(c *gin.Context) string {
	if h.cfg.TraceHeader != "" {
		if traceID := c.GetHeader(h.cfg.TraceHeader); traceID != "" {
			return traceID
		}
	}
	if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
