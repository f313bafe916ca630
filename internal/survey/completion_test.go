package survey_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/copilot-survey/internal/model"
	"basegraph.app/copilot-survey/internal/survey"
)

var _ = Describe("IsComplete", func() {
	answered := model.SurveyRecord{
		CopilotUsed:      true,
		SavingPercentage: "> 21% but < 30%",
		UsageFrequency:   "All or most of the time",
	}

	It("closes on the affirmative path when every rating is answered", func() {
		Expect(survey.IsComplete(answered, survey.Signals{})).To(BeTrue())
	})

	It("requires savings invested when the questionnaire asks for it", func() {
		signals := survey.Signals{SavingsInvestedAsked: true}
		Expect(survey.IsComplete(answered, signals)).To(BeFalse())

		withSavings := answered
		withSavings.SavingsInvested = "Resolve vulnerabilities"
		Expect(survey.IsComplete(withSavings, signals)).To(BeTrue())
	})

	It("stays open on partial affirmative answers", func() {
		partial := answered
		partial.UsageFrequency = ""
		Expect(survey.IsComplete(partial, survey.Signals{})).To(BeFalse())
	})

	It("waits for a justification comment on the negative path", func() {
		signals := survey.Signals{Usage: survey.Classification{Answered: true, Negative: true}}
		Expect(survey.IsComplete(model.SurveyRecord{}, signals)).To(BeFalse())

		signals.CommentSupplied = true
		Expect(survey.IsComplete(model.SurveyRecord{}, signals)).To(BeTrue())
	})

	It("does not close on a comment alone", func() {
		Expect(survey.IsComplete(model.SurveyRecord{Comment: "hi"}, survey.Signals{CommentSupplied: true})).To(BeFalse())
	})
})
