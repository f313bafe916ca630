package survey_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/survey"
)

var _ = Describe("Classify", func() {
	DescribeTable("usage answers",
		func(options []string, used, negative bool) {
			c := survey.Classify(model.Answer{Present: true, Options: options})
			Expect(c.Used).To(Equal(used))
			Expect(c.Negative).To(Equal(negative))
			Expect(c.Answered).To(Equal(len(options) > 0))
		},
		Entry("english yes", []string{"Yes"}, true, false),
		Entry("portuguese sim", []string{"Sim"}, true, false),
		Entry("spanish si", []string{"Si"}, true, false),
		Entry("french oui", []string{"Oui"}, true, false),
		Entry("english no", []string{"No"}, false, true),
		Entry("portuguese não", []string{"Não"}, false, true),
		Entry("french non", []string{"Non"}, false, true),
		Entry("substring with markdown", []string{"**Yes**, a lot"}, true, false),
		Entry("both checked", []string{"Yes", "No"}, true, true),
		Entry("case sensitive", []string{"yes"}, false, false),
		Entry("unanswered", nil, false, false),
	)
})
