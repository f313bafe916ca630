package survey

import (
	"strings"

	"basegraph.app/copilot-survey/internal/model"
)

// Keywords are matched as case-sensitive substrings so that trailing
// punctuation or markdown in option text still matches.
var (
	AffirmativeKeywords = []string{"Yes", "Sim", "Si", "Oui"}
	NegativeKeywords    = []string{"No", "Não", "Non"}
)

type Classification struct {
	Answered bool
	Used     bool
	Negative bool
}

// Classify maps the answer to the usage question onto used / not used.
// Affirmative and negative detection are independent; an unanswered
// question yields neither.
func Classify(answer model.Answer) Classification {
	return Classification{
		Answered: answer.Answered(),
		Used:     containsAny(answer.Options, AffirmativeKeywords),
		Negative: containsAny(answer.Options, NegativeKeywords),
	}
}

func containsAny(options, keywords []string) bool {
	for _, opt := range options {
		for _, kw := range keywords {
			if strings.Contains(opt, kw) {
				return true
			}
		}
	}
	return false
}
