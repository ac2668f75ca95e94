package scoring

import (
	"fmt"
	"strings"

	"horse.fit/leadscout/internal/leads"
)

// DefaultInstructionTemplate is the system message used when a run does not
// supply its own.
const DefaultInstructionTemplate = `You are an expert at identifying Reddit posts where people are asking for financial advice and would benefit from professional financial advisory services. Focus on posts where someone is:
- Seeking guidance on complex financial decisions (retirement planning, investments, tax strategy)
- Facing major life financial transitions (inheritance, divorce, career change)
- Confused about financial products or strategies
- Looking for personalized financial planning
- Dealing with significant assets or income that requires professional management`

// FormatDirective fixes the four labelled sections the parser expects.
const FormatDirective = `Format your response as:
SUMMARY: [your summary]
SCORE: [number]
OPPORTUNITY: [opportunity explanation for Ascott Lloyd advisers]
REPLY: [your reply]`

const scoringRubric = `Provide:
1. A brief summary focusing on their financial situation and what advice they're seeking (2-3 sentences)
2. A lead score from 1-10 where:
   - 9-10: Clear need for professional adviser (complex situation, significant assets, major life decision)
   - 7-8: Strong candidate (multiple financial concerns, seeking comprehensive guidance)
   - 5-6: Moderate fit (specific question but could benefit from professional input)
   - 3-4: Low priority (simple question, DIY approach preferred)
   - 1-2: Not a good fit (not seeking advice or very basic question)
3. An opportunity explanation (2-3 sentences) specifically for Ascott Lloyd advisers explaining:
   - Why this person would benefit from professional financial advisory services
   - What specific value an Ascott Lloyd adviser could provide
   - The potential for a long-term advisory relationship
4. A helpful, professional reply that:
   - Addresses their specific concern with genuine value
   - Positions you as a knowledgeable financial adviser
   - Offers to discuss their situation further if appropriate
   - Maintains a consultative, not salesy tone`

// ResolveTemplate returns template, or the default when it is blank.
func ResolveTemplate(template string) string {
	if strings.TrimSpace(template) == "" {
		return DefaultInstructionTemplate
	}
	return template
}

// BuildUserPrompt renders the per-post user message.
func BuildUserPrompt(c leads.Candidate) string {
	body := strings.TrimSpace(c.Body)
	if body == "" {
		body = "No content"
	}

	var b strings.Builder
	b.WriteString("Analyze this Reddit post to determine if this person needs professional financial advice:\n\n")
	fmt.Fprintf(&b, "Subreddit: r/%s\n", c.Subreddit)
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Content: %s\n\n", body)
	b.WriteString(scoringRubric)
	b.WriteString("\n\n")
	b.WriteString(FormatDirective)
	return b.String()
}

const refineSystemPrompt = `You are an expert at refining AI prompts based on user feedback. Your job is to analyze the current prompt and user feedback, then suggest specific improvements to the prompt.

You must respond with valid JSON in this exact format:
{
  "analysis": "Brief analysis of the feedback (2-3 sentences)",
  "suggestedChanges": "Specific changes to make to the prompt (bullet points or paragraphs)",
  "improvedPrompt": "The complete improved version of the prompt (full text)"
}

Be specific and actionable. Focus on addressing the exact issues mentioned in the feedback. The improvedPrompt field should contain the complete, ready-to-use prompt text.`

func buildRefineUserPrompt(currentPrompt, feedback string) string {
	return fmt.Sprintf("Current Prompt:\n%s\n\nUser Feedback:\n%s\n\nPlease analyze this feedback and suggest improvements to the prompt. Respond with valid JSON only.",
		currentPrompt, feedback)
}
