package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/personaforge/personaforge/internal/llm"
	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/repository"
)

// MemoryService indexes conversation history into embeddings and recalls
// the most relevant memories for a query.
type MemoryService struct {
	repos          *repository.Repositories
	ollama         *llm.OllamaClient
	embeddingModel string
	logger         *slog.Logger
}

// NewMemoryService creates a new memory service.
func NewMemoryService(repos *repository.Repositories, ollama *llm.OllamaClient, embeddingModel string, logger *slog.Logger) *MemoryService {
	return &MemoryService{
		repos:          repos,
		ollama:         ollama,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// IndexPending embeds up to batchSize unprocessed messages into
// long-term memory. Returns the number of messages indexed.
func (s *MemoryService) IndexPending(ctx context.Context, batchSize int) (int, error) {
	messages, err := s.repos.Message.GetUnembedded(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetching unembedded messages: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	indexed := make([]string, 0, len(messages))
	for _, msg := range messages {
		// Short messages carry no recall value.
		if len(strings.TrimSpace(msg.Content)) < 10 {
			indexed = append(indexed, msg.ID)
			continue
		}

		embedding, err := s.ollama.Embeddings(ctx, s.embeddingModel, msg.Content)
		if err != nil {
			if llm.IsRetryable(err) {
				// Leave remaining messages for the next cycle.
				break
			}
			s.logger.Warn("skipping message that failed to embed",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
			indexed = append(indexed, msg.ID)
			continue
		}

		memory := &models.Memory{
			ChatID:    msg.ChatID,
			Content:   msg.Content,
			Embedding: embedding,
		}
		if err := s.repos.Memory.Create(ctx, memory); err != nil {
			return 0, fmt.Errorf("storing memory: %w", err)
		}
		indexed = append(indexed, msg.ID)
	}

	if len(indexed) > 0 {
		if err := s.repos.Message.MarkEmbedded(ctx, indexed); err != nil {
			return 0, fmt.Errorf("marking messages embedded: %w", err)
		}
	}
	return len(indexed), nil
}

// Recall returns up to limit memories for the chat ranked by cosine
// similarity to the query.
func (s *MemoryService) Recall(ctx context.Context, chatID int64, query string, limit int) ([]*models.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryEmbedding, err := s.ollama.Embeddings(ctx, s.embeddingModel, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	memories, err := s.repos.Memory.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("fetching memories: %w", err)
	}

	type scored struct {
		memory *models.Memory
		score  float64
	}
	ranked := make([]scored, 0, len(memories))
	for _, m := range memories {
		ranked = append(ranked, scored{memory: m, score: cosineSimilarity(queryEmbedding, m.Embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	result := make([]*models.Memory, len(ranked))
	for i, r := range ranked {
		result[i] = r.memory
	}
	return result, nil
}

// Forget removes all memories for a chat.
func (s *MemoryService) Forget(ctx context.Context, chatID int64) error {
	return s.repos.Memory.DeleteByChatID(ctx, chatID)
}

// cosineSimilarity returns 0 for mismatched or zero vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
