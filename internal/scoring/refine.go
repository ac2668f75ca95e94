package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrFeedbackRequired is returned by RefinePrompt for blank feedback.
var ErrFeedbackRequired = errors.New("feedback is required")

const refineMaxTokens = 2000

// Refinement is the model's suggestion for an improved instruction template.
type Refinement struct {
	Analysis         string `json:"analysis"`
	SuggestedChanges string `json:"suggestedChanges"`
	ImprovedPrompt   string `json:"improvedPrompt"`
}

// RefinePrompt asks the model to rework currentPrompt according to feedback.
// A response that is not the expected JSON object is returned verbatim as
// the improved prompt.
func (c *Client) RefinePrompt(ctx context.Context, currentPrompt, feedback string) (*Refinement, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, ErrFeedbackRequired
	}

	text, err := c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: refineSystemPrompt},
			{Role: "user", Content: buildRefineUserPrompt(ResolveTemplate(currentPrompt), feedback)},
		},
		Temperature:    c.temperature,
		MaxTokens:      refineMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("refine prompt: %w", err)
	}

	return parseRefinement(text), nil
}

func parseRefinement(text string) *Refinement {
	var refinement Refinement
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &refinement); err != nil {
		return &Refinement{
			Analysis:         "AI response received",
			SuggestedChanges: "See improved prompt below",
			ImprovedPrompt:   text,
		}
	}
	return &refinement
}
