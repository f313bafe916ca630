package language_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/common/llm"
	"basegraph.app/copilot-survey/internal/language"
)

type mockLLM struct {
	chatFn func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	return m.chatFn(ctx, req, result)
}

func (m *mockLLM) Model() string { return "mock" }

func replying(code string) *mockLLM {
	return &mockLLM{chatFn: func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
		return &llm.Response{}, json.Unmarshal([]byte(`{"code":"`+code+`"}`), result)
	}}
}

var _ = Describe("Resolve", func() {
	ctx := context.Background()

	DescribeTable("maps detections to template locales",
		func(detected, want string) {
			d := language.NewLLMDetector(replying(detected))
			Expect(language.Resolve(ctx, d, "Corrige el error de inicio de sesión", "en")).To(Equal(want))
		},
		Entry("spanish", "es", "es"),
		Entry("uppercase code", "PT", "pt"),
		Entry("french", "fr", "fr"),
		Entry("unsupported language", "de", "en"),
		Entry("undetermined", "und", "en"),
	)

	It("falls back when the LLM fails", func() {
		d := language.NewLLMDetector(&mockLLM{chatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("boom")
		}})
		Expect(language.Resolve(ctx, d, "hello", "es")).To(Equal("es"))
	})

	It("falls back on empty text without calling the LLM", func() {
		called := false
		d := language.NewLLMDetector(&mockLLM{chatFn: func(context.Context, llm.Request, any) (*llm.Response, error) {
			called = true
			return &llm.Response{}, nil
		}})
		Expect(language.Resolve(ctx, d, "   ", "en")).To(Equal("en"))
		Expect(called).To(BeFalse())
	})

	It("uses the static locale", func() {
		Expect(language.Resolve(ctx, language.NewStaticDetector("fr"), "anything", "en")).To(Equal("fr"))
	})
})
