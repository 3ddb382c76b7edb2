package service

import (
	"fmt"
	"strings"

	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/security"
)

const (
	maxContextSectionLength = 2000
	maxMessageLength        = 1000
)

// ContextSection is a named block of reference material for the prompt
// (recalled memories, page context).
type ContextSection struct {
	Name    string
	Content string
}

// BuildSafePrompt assembles a prompt with hard section delimiters so
// injected content cannot escape its context. Every message and context
// section is sanitized before inclusion.
func BuildSafePrompt(systemPrompt string, sections []ContextSection, conversation []*models.Message, responderName string) string {
	var b strings.Builder
	b.Grow(8000)

	b.WriteString("=== SYSTEM INSTRUCTIONS (IMMUTABLE) ===\n")
	b.WriteString(systemPrompt)
	b.WriteString("\n=== END SYSTEM ===\n\n")

	for _, section := range sections {
		if section.Content == "" {
			continue
		}
		sanitized := security.SanitizeExternalContent(section.Content, maxContextSectionLength)
		fmt.Fprintf(&b, "--- %s (reference only) ---\n", section.Name)
		b.WriteString(sanitized)
		b.WriteString("\n--- end ---\n\n")
	}

	b.WriteString("=== CONVERSATION ===\n")
	for _, msg := range conversation {
		role := "User"
		if msg.Role == models.RoleAssistant {
			role = responderName
		}
		sanitized := security.SanitizeUserInput(msg.Content, maxMessageLength)
		fmt.Fprintf(&b, "[%s]: %s\n", role, sanitized.Sanitized)
	}
	fmt.Fprintf(&b, "[%s]: ", responderName)

	return b.String()
}
