package survey

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"basegraph.app/copilot-survey/internal/model"
)

// SurveyTitlePrefix marks issues opened by the bot.
const SurveyTitlePrefix = "Copilot Usage - PR#"

// ErrMalformedSurvey is returned when a survey issue cannot be parsed.
// It aborts processing of that event only.
var ErrMalformedSurvey = errors.New("malformed survey")

var (
	titlePRPattern = regexp.MustCompile(`PR#(\d+)`)
	bodyRefPattern = regexp.MustCompile(`#(\d+)`)
	numberPattern  = regexp.MustCompile(`\d+`)
)

// Schema places each survey question in the questionnaire.
type Schema struct {
	Usage            QuestionSpec
	SavingPercentage QuestionSpec
	UsageFrequency   QuestionSpec
	SavingsInvested  QuestionSpec
}

// DefaultSchema matches the bundled issue templates.
var DefaultSchema = Schema{
	Usage:            QuestionSpec{Start: 1, End: 2},
	SavingPercentage: QuestionSpec{Start: 2, End: 3},
	UsageFrequency:   QuestionSpec{Start: 4, End: 5},
	SavingsInvested:  QuestionSpec{Start: 6},
}

func SurveyTitle(prNumber int) string {
	return SurveyTitlePrefix + strconv.Itoa(prNumber)
}

func IsSurveyTitle(title string) bool {
	return strings.HasPrefix(title, SurveyTitlePrefix)
}

// Evaluation is everything derived from one questionnaire snapshot.
type Evaluation struct {
	PRNumber         int
	Usage            model.Answer
	SavingPercentage model.Answer
	UsageFrequency   model.Answer
	SavingsInvested  model.Answer
	Classification   Classification
	Comment          string
}

// Evaluate extracts and classifies the answers of a survey issue.
func Evaluate(title string, doc model.QuestionnaireDocument, schema Schema) (*Evaluation, error) {
	prNumber, err := ParsePRNumber(title, doc.Body)
	if err != nil {
		return nil, err
	}

	answers := Extract(doc, schema.Usage, schema.SavingPercentage, schema.UsageFrequency, schema.SavingsInvested)
	if !answers[0].Present {
		return nil, fmt.Errorf("%w: usage question not found", ErrMalformedSurvey)
	}

	return &Evaluation{
		PRNumber:         prNumber,
		Usage:            answers[0],
		SavingPercentage: answers[1],
		UsageFrequency:   answers[2],
		SavingsInvested:  answers[3],
		Classification:   Classify(answers[0]),
		Comment:          FlattenComment(doc.Comment),
	}, nil
}

// Response returns the answer-derived fields of the incoming record.
// Issue metadata is filled in by the caller.
func (e *Evaluation) Response() model.SurveyResponse {
	resp := model.SurveyResponse{
		PRNumber:         e.PRNumber,
		SavingPercentage: JoinSelections(e.SavingPercentage.Options),
		UsageFrequency:   JoinSelections(e.UsageFrequency.Options),
		SavingsInvested:  JoinSelections(e.SavingsInvested.Options),
	}
	if e.Classification.Answered {
		used := e.Classification.Used
		resp.CopilotUsed = &used
	}
	return resp
}

func (e *Evaluation) Signals() Signals {
	return Signals{
		Usage:                e.Classification,
		CommentSupplied:      e.Comment != "",
		SavingsInvestedAsked: e.SavingsInvested.Present,
	}
}

// ParsePRNumber reads the pull request number from the survey title,
// falling back to the first reference in the body.
func ParsePRNumber(title, body string) (int, error) {
	if m := titlePRPattern.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, nil
		}
	}
	if m := bodyRefPattern.FindStringSubmatch(body); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, nil
		}
	}
	if m := numberPattern.FindString(body); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: no pull request number", ErrMalformedSurvey)
}
