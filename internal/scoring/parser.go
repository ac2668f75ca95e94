package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"horse.fit/leadscout/internal/leads"
)

// Placeholders stored when the model leaves a section out.
const (
	SummaryPlaceholder     = "Summary not available"
	OpportunityPlaceholder = "Opportunity analysis not available"
	ReplyPlaceholder       = "Reply not available"
)

// ResponseParser turns model output into an assessment. It never fails:
// anything it cannot read falls back to documented defaults.
type ResponseParser interface {
	Parse(text string) leads.Assessment
}

// LabeledParser reads the SUMMARY / SCORE / OPPORTUNITY / REPLY format.
// Each section runs to the next label or the end of the text. Labels are
// upper case, as the format directive asks, and may be wrapped in markdown
// bold. Lower-case words such as "credit score:" inside a section do not end it.
type LabeledParser struct{}

var (
	summaryPattern     = sectionPattern("SUMMARY", "SCORE")
	opportunityPattern = sectionPattern("OPPORTUNITY", "REPLY")
	replyPattern       = sectionPattern("REPLY", "")
	scorePattern       = regexp.MustCompile(`SCORE\s*\*{0,2}\s*:\s*\*{0,2}\s*(\d{1,9})`)
)

func sectionPattern(label, next string) *regexp.Regexp {
	tail := `$`
	if next != "" {
		tail = `(?:\*{0,2}\s*` + next + `\s*\*{0,2}\s*:|$)`
	}
	return regexp.MustCompile(`(?s)` + label + `\s*\*{0,2}\s*:(.*?)` + tail)
}

func (LabeledParser) Parse(text string) leads.Assessment {
	return leads.Assessment{
		Summary:     captureSection(summaryPattern, text, SummaryPlaceholder),
		Score:       parseScore(text),
		Opportunity: captureSection(opportunityPattern, text, OpportunityPlaceholder),
		DraftReply:  captureSection(replyPattern, text, ReplyPlaceholder),
	}
}

func captureSection(pattern *regexp.Regexp, text, placeholder string) string {
	match := pattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return placeholder
	}
	value := strings.Trim(strings.TrimSpace(match[1]), "*")
	value = strings.TrimSpace(value)
	if value == "" {
		return placeholder
	}
	return value
}

// parseScore reads the first SCORE value and clamps it to the valid range.
// A missing or unreadable score yields leads.DefaultScore.
func parseScore(text string) int {
	match := scorePattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return leads.DefaultScore
	}
	score, err := strconv.Atoi(match[1])
	if err != nil {
		return leads.DefaultScore
	}
	return leads.ClampScore(score)
}
