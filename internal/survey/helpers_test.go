package survey_test

import (
	"strings"
)

// questionnaire builds a survey body with the given boxes checked.
// checked maps question number to the option texts to tick.
func questionnaire(checked map[int][]string) string {
	questions := []struct {
		n       int
		title   string
		options []string
	}{
		{1, "Did you use Copilot in this pull request?", []string{"Yes", "No"}},
		{2, "How much less time did the coding take?", []string{"0%", "> 0% but < 10%", "> 11% but < 20%", "> 21% but < 30%", "> 31% but < 40%", "> 41%"}},
		{3, "Describe your thought process. Please answer in a comment.", nil},
		{4, "How often did you use Copilot?", []string{"All or most of the time", "About half of the time", "Some of the time", "Not very much"}},
		{5, "What else can you share? Please answer in a comment.", nil},
		{6, "Where did you invest the time you saved?", []string{"Resolve vulnerabilities", "Technical debt and refactoring", "Other (please explain in a comment)"}},
	}

	var b strings.Builder
	b.WriteString("## Copilot Usage Survey\n\nWe'd love to hear about pull request #44.\n\n")
	for _, q := range questions {
		b.WriteString(itoa(q.n) + ". " + q.title + "\n")
		for _, opt := range q.options {
			box := "[ ]"
			for _, c := range checked[q.n] {
				if c == opt {
					box = "[x]"
				}
			}
			b.WriteString("- " + box + " " + opt + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func itoa(n int) string {
	return string(rune('0' + n))
}

// checkOption ticks the first unchecked box whose text is exactly option.
func checkOption(body, option string) string {
	return strings.Replace(body, "- [ ] "+option+"\n", "- [x] "+option+"\n", 1)
}
