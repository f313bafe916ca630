package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/common/llm"
)

type language struct {
	Code string `json:"code"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
	}
}

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		calls  atomic.Int32
	)

	AfterEach(func() {
		server.Close()
	})

	newClient := func(retries uint64) llm.Client {
		c, err := llm.New(llm.Config{APIKey: "test", BaseURL: server.URL, MaxRetries: retries})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("decodes the structured reply", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(completion(`{"code":"pt"}`))
		}))

		var out language
		resp, err := newClient(0).Chat(context.Background(), llm.Request{
			SystemPrompt: "detect",
			UserPrompt:   "Olá",
			SchemaName:   "language",
			Schema:       llm.GenerateSchema[language](),
		}, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Code).To(Equal("pt"))
		Expect(resp.PromptTokens).To(Equal(12))
	})

	It("retries server errors", func() {
		calls.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(completion(`{"code":"fr"}`))
		}))

		var out language
		_, err := newClient(2).Chat(context.Background(), llm.Request{SchemaName: "language", Schema: llm.GenerateSchema[language]()}, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Code).To(Equal("fr"))
		Expect(calls.Load()).To(BeEquivalentTo(2))
	})

	It("does not retry client errors", func() {
		calls.Store(0)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))

		var out language
		_, err := newClient(3).Chat(context.Background(), llm.Request{SchemaName: "language", Schema: llm.GenerateSchema[language]()}, &out)
		Expect(err).To(HaveOccurred())
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})

	It("requires an API key", func() {
		server = httptest.NewServer(http.NotFoundHandler())
		_, err := llm.New(llm.Config{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("IsRetryable", func() {
	It("stops on cancellation", func() {
		Expect(llm.IsRetryable(context.Background(), context.Canceled)).To(BeFalse())
		Expect(llm.IsRetryable(context.Background(), nil)).To(BeFalse())
	})

	It("retries network failures", func() {
		Expect(llm.IsRetryable(context.Background(), errors.New("connection reset"))).To(BeTrue())
	})
})
