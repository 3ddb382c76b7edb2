package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/personaforge/personaforge/internal/models"
)

func createTestMessages(t *testing.T, repos *Repositories, chatID int64, n int) []*models.Message {
	t.Helper()

	msgs := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := &models.Message{
			ChatID:  chatID,
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", i),
		}
		if err := repos.Message.Create(context.Background(), msg); err != nil {
			t.Fatalf("failed to create message %d: %v", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestMessageRepository_Create(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	persona := createTestPersona(t, repos, "speaker")

	msg := &models.Message{
		ChatID:    1,
		Role:      models.RoleAssistant,
		Content:   "Hello there.",
		PersonaID: &persona.ID,
	}
	if err := repos.Message.Create(ctx, msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected ID to be generated")
	}

	history, err := repos.Message.GetByChatID(ctx, 1)
	if err != nil {
		t.Fatalf("failed to fetch history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
	if history[0].Content != "Hello there." {
		t.Errorf("Content = %q, want %q", history[0].Content, "Hello there.")
	}
	if history[0].PersonaID == nil || *history[0].PersonaID != persona.ID {
		t.Errorf("PersonaID = %v, want %q", history[0].PersonaID, persona.ID)
	}
	if history[0].Embedded {
		t.Error("expected new message to be unembedded")
	}
}

func TestMessageRepository_GetRecent(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	createTestMessages(t, repos, 5, 10)
	createTestMessages(t, repos, 6, 3) // another chat, must not leak in

	recent, err := repos.Message.GetRecent(ctx, 5, 4)
	if err != nil {
		t.Fatalf("failed to fetch recent messages: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(recent))
	}
	// Most recent window, chronological order.
	want := []string{"message 6", "message 7", "message 8", "message 9"}
	for i, m := range recent {
		if m.Content != want[i] {
			t.Errorf("recent[%d].Content = %q, want %q", i, m.Content, want[i])
		}
		if m.ChatID != 5 {
			t.Errorf("recent[%d].ChatID = %d, want 5", i, m.ChatID)
		}
	}
}

func TestMessageRepository_GetUnembedded_And_MarkEmbedded(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	msgs := createTestMessages(t, repos, 7, 3)

	unembedded, err := repos.Message.GetUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("failed to fetch unembedded messages: %v", err)
	}
	if len(unembedded) != 3 {
		t.Fatalf("expected 3 unembedded messages, got %d", len(unembedded))
	}

	if err := repos.Message.MarkEmbedded(ctx, []string{msgs[0].ID, msgs[1].ID}); err != nil {
		t.Fatalf("failed to mark messages embedded: %v", err)
	}

	unembedded, err = repos.Message.GetUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("failed to re-fetch unembedded messages: %v", err)
	}
	if len(unembedded) != 1 {
		t.Fatalf("expected 1 unembedded message, got %d", len(unembedded))
	}
	if unembedded[0].ID != msgs[2].ID {
		t.Errorf("unembedded ID = %q, want %q", unembedded[0].ID, msgs[2].ID)
	}
}

func TestMessageRepository_MarkEmbedded_Empty(t *testing.T) {
	repos := setupTestRepos(t)

	if err := repos.Message.MarkEmbedded(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error for empty ID list: %v", err)
	}
}

func TestMessageRepository_DeleteOlderThan(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	old := &models.Message{
		ChatID:    8,
		Role:      models.RoleUser,
		Content:   "stale",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := repos.Message.Create(ctx, old); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	fresh := &models.Message{
		ChatID:  8,
		Role:    models.RoleUser,
		Content: "fresh",
	}
	if err := repos.Message.Create(ctx, fresh); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	deleted, err := repos.Message.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("failed to delete old messages: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	history, err := repos.Message.GetByChatID(ctx, 8)
	if err != nil {
		t.Fatalf("failed to fetch history: %v", err)
	}
	if len(history) != 1 || history[0].Content != "fresh" {
		t.Errorf("unexpected surviving history: %+v", history)
	}
}
