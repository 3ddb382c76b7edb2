// Package models contains the core data structures persisted by PersonaForge.
package models

import (
	"strings"
	"time"
)

// Persona is a configurable bot identity. A persona answers with its
// DisplayName (falling back to the configured default bot name when unset)
// and can be activated by any of its trigger keywords appearing in a message.
type Persona struct {
	ID           string
	Name         string
	SystemPrompt string
	// DisplayName is the name the persona responds to in conversation.
	// Nil means the caller should fall back to the system-wide bot name.
	DisplayName *string
	// Triggers is a comma-separated keyword list. Nil means the persona has
	// no keyword-based activation.
	Triggers  *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResponderName returns the name this persona answers with, using
// defaultName when no display name is set.
func (p *Persona) ResponderName(defaultName string) string {
	if p.DisplayName != nil && *p.DisplayName != "" {
		return *p.DisplayName
	}
	return defaultName
}

// TriggerList splits the comma-separated triggers column into trimmed,
// lowercased keywords. Empty entries are dropped.
func (p *Persona) TriggerList() []string {
	if p.Triggers == nil {
		return nil
	}
	var out []string
	for _, t := range strings.Split(*p.Triggers, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Reply modes for ChatSettings.
const (
	ReplyToAll     = "all"
	ReplyToMention = "mention"
)

// ChatSettings holds per-chat model parameters and reply behaviour.
type ChatSettings struct {
	ChatID          int64
	Model           string
	Temperature     float64
	MaxTokens       int
	MemoryDepth     int
	RAGEnabled      bool
	AutoReply       bool
	ReplyMode       string // "all" or "mention"
	ReplyCooldown   time.Duration
	ActivePersonaID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation history for a chat.
type Message struct {
	ID      string
	ChatID  int64
	Role    string
	Content string
	// PersonaID records which persona produced an assistant message.
	PersonaID *string
	// Embedded is set once the background worker has indexed this message
	// into long-term memory.
	Embedded  bool
	CreatedAt time.Time
}

// Memory is an embedded long-term memory entry used for RAG recall.
type Memory struct {
	ID        string
	ChatID    int64
	Content   string
	Embedding []float64
	CreatedAt time.Time
}
