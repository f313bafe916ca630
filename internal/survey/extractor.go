package survey

import (
	"regexp"
	"strconv"
	"strings"

	"basegraph.app/copilot-survey/internal/model"
)

var (
	// "1. Did you use Copilot?", "### 2. ...", "**4.** ..."
	headerPattern = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*(\d+)\.(?:\*\*|__)?(?:\s|$)`)
	// "- [x] Yes", "* [ ] No", "[X] Oui"
	optionPattern = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\[([ xX])\](.*)$`)
)

// QuestionSpec selects the options that belong to questions Start up to,
// but not including, End. End <= 0 means the range runs to the end of the document.
type QuestionSpec struct {
	Start int
	End   int
}

func (q QuestionSpec) contains(question int) bool {
	if question < q.Start {
		return false
	}
	return q.End <= 0 || question < q.End
}

// Option is one checkbox line, attributed to the nearest preceding question header.
// Options that appear before any header belong to question 0.
type Option struct {
	Question int
	Text     string
	Checked  bool
}

// Tokens is the structured form of a questionnaire.
type Tokens struct {
	Options   []Option
	Questions map[int]bool
}

// Tokenize splits text into ordered option triples grouped by question header.
//
// Grouping follows headers, not the text between two markers, so a missing
// header can only merge its options into the previous question. It can never
// pull options from a later question into an earlier range.
func Tokenize(text string) Tokens {
	tokens := Tokens{Questions: make(map[int]bool)}
	current := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if m := optionPattern.FindStringSubmatch(line); m != nil {
			optionText := strings.TrimSpace(m[2])
			if optionText == "" {
				continue
			}
			tokens.Options = append(tokens.Options, Option{
				Question: current,
				Text:     optionText,
				Checked:  m[1] == "x" || m[1] == "X",
			})
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				current = n
				tokens.Questions[n] = true
			}
		}
	}

	return tokens
}

// Extract returns one Answer per spec, in spec order.
func Extract(doc model.QuestionnaireDocument, specs ...QuestionSpec) model.AnswerSet {
	return ExtractTokens(Tokenize(doc.Body), specs...)
}

func ExtractTokens(tokens Tokens, specs ...QuestionSpec) model.AnswerSet {
	answers := make(model.AnswerSet, len(specs))
	for i, spec := range specs {
		var answer model.Answer
		for q := range tokens.Questions {
			if spec.contains(q) {
				answer.Present = true
				break
			}
		}
		for _, opt := range tokens.Options {
			if opt.Checked && spec.contains(opt.Question) {
				answer.Options = append(answer.Options, opt.Text)
			}
		}
		answers[i] = answer
	}
	return answers
}
