// Package prompt renders the system prompt that grounds a completion request:
// fixed formatting directives, optional user personalization, and the
// serialized retrieval context with citation instructions.
package prompt

import (
	"fmt"
	"strings"

	"github.com/quillchat/quill/internal/retrieval"
)

// basePrompt carries the assistant identity and formatting directives. It is
// always present, with or without retrieval context.
const basePrompt = `You are Quill, an advanced general AI assistant.

GOAL: Provide a helpful, accurate, and well-formatted response to the user.

STRICT FORMATTING GUIDELINES:
1. **Structure**: Organize your response logically.
   - Use **Markdown Headers** (### or ####) to separate distinct sections.
   - Use **Bullet Points** for lists.

2. **Emphasis**:
   - Use **bold** for key terms.
   - Use ` + "`code blocks`" + ` for technical terms or code snippets.

3. **Tone**:
   - Professional, objective, and precise.`

// contextHeader precedes the serialized context items and tells the model how
// to cite them.
const contextHeader = `CONTEXTUAL INFORMATION:
Use the following context to answer the user's question. Cite sources explicitly using [Source: Title] syntax inline where relevant.`

// Build renders the system prompt. It is a pure function of its inputs.
//
// The personalization block is appended only when customInstructions is
// non-blank after trimming. The context section is appended only when items
// is non-empty — an empty retrieval result produces a prompt with no context
// header at all.
func Build(items []retrieval.ContextItem, customInstructions string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if instructions := strings.TrimSpace(customInstructions); instructions != "" {
		b.WriteString("\n\nUSER PERSONALIZATION / CUSTOM INSTRUCTIONS:\n")
		b.WriteString(instructions)
	}

	if len(items) > 0 {
		b.WriteString("\n\n")
		b.WriteString(contextHeader)
		b.WriteString("\n\n")
		b.WriteString(renderContext(items))
	}

	return b.String()
}

// renderContext serializes context items, one block per item, joined by blank
// lines. Web items carry their URL so the model can cite the page.
func renderContext(items []retrieval.ContextItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = "Unknown"
		}
		if item.Type == retrieval.TypeWeb && item.URL != "" {
			parts = append(parts, fmt.Sprintf("[Web: %s]\nURL: %s\n%s", title, item.URL, item.Content))
		} else {
			parts = append(parts, fmt.Sprintf("[Document: %s]\n%s", title, item.Content))
		}
	}
	return strings.Join(parts, "\n\n")
}
