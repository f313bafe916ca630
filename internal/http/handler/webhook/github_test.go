package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/http/dto"
	"basegraph.app/copilot-survey/internal/http/handler/webhook"
	"basegraph.app/copilot-survey/internal/mapper"
	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/queue"
	"basegraph.app/copilot-survey/internal/service"
	"basegraph.app/copilot-survey/internal/survey"
)

type fakeSurveyService struct {
	handled  []*model.SurveyEvent
	handleFn func(ctx context.Context, event *model.SurveyEvent) error
}

func (f *fakeSurveyService) Handle(ctx context.Context, event *model.SurveyEvent) error {
	f.handled = append(f.handled, event)
	if f.handleFn != nil {
		return f.handleFn(ctx, event)
	}
	return nil
}

func (f *fakeSurveyService) OpenSurvey(ctx context.Context, event *model.SurveyEvent) (*model.SurveyIssue, error) {
	return nil, errors.New("not used")
}

func (f *fakeSurveyService) RecordResponse(ctx context.Context, event *model.SurveyEvent) (*service.RecordResult, error) {
	return nil, errors.New("not used")
}

type fakeProducer struct {
	messages []queue.EventMessage
	err      error
}

func (p *fakeProducer) Enqueue(ctx context.Context, msg queue.EventMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type memoryDedupe struct {
	seen map[string]bool
}

func (d *memoryDedupe) FirstSeen(ctx context.Context, deliveryID string) (bool, error) {
	if d.seen[deliveryID] {
		return false, nil
	}
	d.seen[deliveryID] = true
	return true, nil
}

func (d *memoryDedupe) Forget(ctx context.Context, deliveryID string) error {
	delete(d.seen, deliveryID)
	return nil
}

const editedSurvey = `{
  "action": "edited",
  "issue": {"id": 9001, "number": 7, "title": "Copilot Usage - PR#44", "body": "survey"},
  "repository": {"name": "web", "owner": {"login": "acme"}}
}`

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("GitHubWebhookHandler", func() {
	var (
		surveys  *fakeSurveyService
		producer *fakeProducer
		dedupe   *memoryDedupe
		cfg      webhook.GitHubWebhookConfig
		queued   bool
	)

	BeforeEach(func() {
		surveys = &fakeSurveyService{}
		producer = &fakeProducer{}
		dedupe = &memoryDedupe{seen: map[string]bool{}}
		cfg = webhook.GitHubWebhookConfig{}
		queued = false
	})

	send := func(eventType, delivery, body string, headers map[string]string) *httptest.ResponseRecorder {
		var p queue.Producer
		if queued {
			p = producer
		}
		next := int64(0)
		m := mapper.NewGitHubEventMapperWithIDs(func() int64 {
			next++
			return next
		})
		h := webhook.NewGitHubWebhookHandler(m, surveys, p, dedupe, nil, cfg)

		router := gin.New()
		router.POST("/webhooks/github", h.HandleEvent)

		req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", eventType)
		req.Header.Set("X-GitHub-Delivery", delivery)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) dto.WebhookResponse {
		var resp dto.WebhookResponse
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	It("handles survey events inline", func() {
		w := send("issues", "d-1", editedSurvey, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)).To(Equal(dto.WebhookResponse{Status: dto.StatusOK, EventID: 1, Kind: "survey_edited"}))
		Expect(surveys.handled).To(HaveLen(1))
		Expect(surveys.handled[0].Issue.Number).To(Equal(7))
		Expect(surveys.handled[0].DeliveryID).To(Equal("d-1"))
	})

	It("enqueues in queue mode", func() {
		queued = true
		w := send("issues", "d-1", editedSurvey, nil)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(decode(w).Status).To(Equal(dto.StatusQueued))
		Expect(producer.messages).To(HaveLen(1))
		Expect(producer.messages[0].Event.Kind).To(Equal(model.SurveyEventEdited))
		Expect(surveys.handled).To(BeEmpty())
	})

	It("propagates the trace header when enqueuing", func() {
		queued = true
		cfg.TraceHeader = "X-Trace-Id"
		send("issues", "d-1", editedSurvey, map[string]string{"X-Trace-Id": "4bf92f3577b34da6a3ce929d0e0e4736"})

		Expect(producer.messages).To(HaveLen(1))
		Expect(producer.messages[0].TraceID).To(Equal("4bf92f3577b34da6a3ce929d0e0e4736"))
	})

	It("fails when the queue is unavailable", func() {
		queued = true
		producer.err = errors.New("redis down")
		w := send("issues", "d-1", editedSurvey, nil)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("acknowledges ignored events", func() {
		w := send("ping", "d-1", `{"zen":"hi"}`, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w).Status).To(Equal(dto.StatusIgnored))
		Expect(surveys.handled).To(BeEmpty())
	})

	It("rejects malformed payloads", func() {
		w := send("issues", "d-1", `{`, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("drops duplicate deliveries", func() {
		Expect(send("issues", "d-1", editedSurvey, nil).Code).To(Equal(http.StatusOK))
		w := send("issues", "d-1", editedSurvey, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w).Status).To(Equal(dto.StatusDuplicate))
		Expect(surveys.handled).To(HaveLen(1))
	})

	It("processes a redelivery after a failed attempt", func() {
		calls := 0
		surveys.handleFn = func(context.Context, *model.SurveyEvent) error {
			calls++
			if calls == 1 {
				return errors.New("store down")
			}
			return nil
		}

		Expect(send("issues", "d-1", editedSurvey, nil).Code).To(Equal(http.StatusInternalServerError))
		w := send("issues", "d-1", editedSurvey, nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w).Status).To(Equal(dto.StatusOK))
		Expect(surveys.handled).To(HaveLen(2))
	})

	It("accepts a redelivery after the queue was unavailable", func() {
		queued = true
		producer.err = errors.New("redis down")
		Expect(send("issues", "d-1", editedSurvey, nil).Code).To(Equal(http.StatusInternalServerError))

		producer.err = nil
		w := send("issues", "d-1", editedSurvey, nil)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(producer.messages).To(HaveLen(1))
	})

	It("reports malformed surveys as unprocessable", func() {
		surveys.handleFn = func(context.Context, *model.SurveyEvent) error {
			return fmt.Errorf("evaluating: %w", survey.ErrMalformedSurvey)
		}
		w := send("issues", "d-1", editedSurvey, nil)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("reports processing failures", func() {
		surveys.handleFn = func(context.Context, *model.SurveyEvent) error {
			return errors.New("store down")
		}
		w := send("issues", "d-1", editedSurvey, nil)
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})

	It("rejects oversized payloads", func() {
		body := `{"pad":"` + string(bytes.Repeat([]byte("x"), webhook.MaxPayloadBytes)) + `"}`
		w := send("issues", "d-1", body, nil)
		Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
	})

	Context("with a webhook secret", func() {
		BeforeEach(func() {
			cfg.Secret = "s3cret"
		})

		It("accepts a valid signature", func() {
			w := send("issues", "d-1", editedSurvey, map[string]string{
				"X-Hub-Signature-256": sign("s3cret", editedSurvey),
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(surveys.handled).To(HaveLen(1))
		})

		It("rejects a bad signature", func() {
			w := send("issues", "d-1", editedSurvey, map[string]string{
				"X-Hub-Signature-256": sign("wrong", editedSurvey),
			})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(surveys.handled).To(BeEmpty())
		})

		It("rejects a missing signature", func() {
			w := send("issues", "d-1", editedSurvey, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
