package survey_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/survey"
)

var _ = Describe("Tokenize", func() {
	It("attributes options to the nearest preceding header", func() {
		tokens := survey.Tokenize("1. First\n- [x] Yes\n- [ ] No\n2. Second\n- [X] > 21% but < 30%\n")

		Expect(tokens.Questions).To(HaveKey(1))
		Expect(tokens.Questions).To(HaveKey(2))
		Expect(tokens.Options).To(Equal([]survey.Option{
			{Question: 1, Text: "Yes", Checked: true},
			{Question: 1, Text: "No", Checked: false},
			{Question: 2, Text: "> 21% but < 30%", Checked: true},
		}))
	})

	It("recognises markdown headings and bold numbering", func() {
		tokens := survey.Tokenize("### 3. Heading style\n**4.** Bold style\n")
		Expect(tokens.Questions).To(HaveKey(3))
		Expect(tokens.Questions).To(HaveKey(4))
	})

	It("accepts every list bullet and bare boxes", func() {
		tokens := survey.Tokenize("1. Q\n* [x] a\n+ [x] b\n[x] c\n  - [x] d\n")
		texts := []string{}
		for _, o := range tokens.Options {
			texts = append(texts, o.Text)
		}
		Expect(texts).To(Equal([]string{"a", "b", "c", "d"}))
	})

	It("handles CRLF line endings", func() {
		tokens := survey.Tokenize("1. Q\r\n- [x] Yes\r\n")
		Expect(tokens.Options).To(ConsistOf(survey.Option{Question: 1, Text: "Yes", Checked: true}))
	})

	It("ignores checked boxes without text", func() {
		tokens := survey.Tokenize("1. Q\n- [x]\n- [x]   \n")
		Expect(tokens.Options).To(BeEmpty())
	})

	It("puts options before any header under question 0", func() {
		tokens := survey.Tokenize("- [x] stray\n1. Q\n")
		Expect(tokens.Options).To(ConsistOf(survey.Option{Question: 0, Text: "stray", Checked: true}))
	})

	It("does not treat a checkbox line as a header", func() {
		tokens := survey.Tokenize("- [x] 1. not a header\n")
		Expect(tokens.Questions).To(BeEmpty())
	})
})

var _ = Describe("Extract", func() {
	var doc model.QuestionnaireDocument

	BeforeEach(func() {
		doc = model.QuestionnaireDocument{Body: questionnaire(map[int][]string{
			1: {"Yes"},
			2: {"> 21% but < 30%"},
			4: {"All or most of the time", "Some of the time"},
		})}
	})

	It("returns answers in spec order", func() {
		answers := survey.Extract(doc,
			survey.QuestionSpec{Start: 4, End: 5},
			survey.QuestionSpec{Start: 1, End: 2},
		)
		Expect(answers).To(HaveLen(2))
		Expect(answers[0].Options).To(Equal([]string{"All or most of the time", "Some of the time"}))
		Expect(answers[1].Options).To(Equal([]string{"Yes"}))
	})

	It("distinguishes asked-but-unanswered from not present", func() {
		answers := survey.Extract(doc,
			survey.QuestionSpec{Start: 6},
			survey.QuestionSpec{Start: 9, End: 10},
		)
		Expect(answers[0].Present).To(BeTrue())
		Expect(answers[0].Options).To(BeNil())
		Expect(answers[0].Answered()).To(BeFalse())

		Expect(answers[1].Present).To(BeFalse())
		Expect(answers[1].Options).To(BeNil())
	})

	It("runs an open-ended spec to the end of the document", func() {
		doc.Body = questionnaire(map[int][]string{6: {"Resolve vulnerabilities", "Technical debt and refactoring"}})
		answers := survey.Extract(doc, survey.QuestionSpec{Start: 6})
		Expect(answers[0].Options).To(Equal([]string{"Resolve vulnerabilities", "Technical debt and refactoring"}))
	})

	It("keeps duplicate selections in document order", func() {
		doc.Body = "1. Q\n- [x] Yes\n- [x] Yes\n"
		answers := survey.Extract(doc, survey.QuestionSpec{Start: 1, End: 2})
		Expect(answers[0].Options).To(Equal([]string{"Yes", "Yes"}))
	})

	It("does not leak a later question into an earlier one when a header is missing", func() {
		// question 3 header removed; question 4 options must not appear under 2
		doc.Body = "1. Q\n- [x] Yes\n2. Q\n- [x] 0%\n4. Q\n- [x] Some of the time\n"
		answers := survey.Extract(doc,
			survey.QuestionSpec{Start: 2, End: 3},
			survey.QuestionSpec{Start: 4, End: 5},
		)
		Expect(answers[0].Options).To(Equal([]string{"0%"}))
		Expect(answers[1].Options).To(Equal([]string{"Some of the time"}))
	})

	It("ignores the comment text", func() {
		doc = model.QuestionnaireDocument{Body: "1. Q\n- [ ] Yes\n", Comment: "- [x] Yes"}
		answers := survey.Extract(doc, survey.QuestionSpec{Start: 1, End: 2})
		Expect(answers[0].Answered()).To(BeFalse())
	})
})
