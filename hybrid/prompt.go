package hybrid

import (
	"strings"

	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/message"
)

// groundedPrompt drives answer generation when retrieval ran. The math
// delimiters and citation labels are part of the published output
// contract for downstream renderers.
const groundedPrompt = `You are a patient educational tutor helping a student learn.

Guidelines:
- Explain concepts step by step in a clear, encouraging tone suited to the student's level.
- Write all mathematics with $...$ for inline math and $$...$$ for block math. Never use any other math delimiter.
- Ground your answer in the provided context. Cite textbook sources with their labels (1)...(n) and web sources with (W1)...(Wn) whenever you use them.
- If the context section below is empty, begin your answer by stating that no information was found in the available sources, then help as best you can from general knowledge.

Context:
%CONTEXT%`

// conversationalPrompt drives small-talk turns where no retrieval ran.
const conversationalPrompt = `You are a friendly educational tutor. The student is making small talk.
Respond warmly in one or two sentences and invite them to ask a study question.
Write any mathematics with $...$ delimiters.`

// buildRequest assembles the generation request: system prompt, trimmed
// history, and the new user message.
func buildRequest(route Route, context string, history []*message.Message, query string, temperature float64) *llm.Request {
	var system string
	if route == RouteNone {
		system = conversationalPrompt
	} else {
		system = strings.Replace(groundedPrompt, "%CONTEXT%", context, 1)
	}

	msgs := make([]*message.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, message.NewMessage(message.RoleUser, query))

	return &llm.Request{
		System:      system,
		Messages:    msgs,
		Temperature: temperature,
	}
}
