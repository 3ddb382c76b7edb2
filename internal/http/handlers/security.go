package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/personaforge/personaforge/internal/security"
)

// SecurityHandler exposes sender moderation endpoints.
type SecurityHandler struct {
	tracker *security.Tracker
}

// NewSecurityHandler creates a new security handler.
func NewSecurityHandler(tracker *security.Tracker) *SecurityHandler {
	return &SecurityHandler{tracker: tracker}
}

// SenderStatsInput represents a sender stats request.
type SenderStatsInput struct {
	SenderID int64 `path:"sender_id" doc:"Sender ID"`
}

// SenderStatsOutput represents a sender's security state.
type SenderStatsOutput struct {
	Body security.SenderStats
}

// GetSenderStats returns the tracked security state for a sender.
func (h *SecurityHandler) GetSenderStats(ctx context.Context, input *SenderStatsInput) (*SenderStatsOutput, error) {
	stats := h.tracker.Stats(input.SenderID)
	if stats == nil {
		return nil, huma.Error404NotFound("no security record for sender")
	}
	return &SenderStatsOutput{Body: *stats}, nil
}

// BlockSenderInput represents a manual block request.
type BlockSenderInput struct {
	SenderID int64 `path:"sender_id" doc:"Sender ID"`
	Body     struct {
		DurationSecs int64 `json:"duration_seconds" minimum:"1" maximum:"86400" doc:"Block duration in seconds"`
	}
}

// BlockSenderOutput represents a manual block response.
type BlockSenderOutput struct {
	Body struct {
		Blocked bool `json:"blocked"`
	}
}

// BlockSender manually blocks a sender.
func (h *SecurityHandler) BlockSender(ctx context.Context, input *BlockSenderInput) (*BlockSenderOutput, error) {
	h.tracker.Block(input.SenderID, time.Duration(input.Body.DurationSecs)*time.Second)
	output := &BlockSenderOutput{}
	output.Body.Blocked = true
	return output, nil
}

// UnblockSenderInput represents a manual unblock request.
type UnblockSenderInput struct {
	SenderID int64 `path:"sender_id" doc:"Sender ID"`
}

// UnblockSenderOutput represents a manual unblock response.
type UnblockSenderOutput struct {
	Body struct {
		Unblocked bool `json:"unblocked"`
	}
}

// UnblockSender lifts a sender's block and clears their strikes.
func (h *SecurityHandler) UnblockSender(ctx context.Context, input *UnblockSenderInput) (*UnblockSenderOutput, error) {
	h.tracker.Unblock(input.SenderID)
	output := &UnblockSenderOutput{}
	output.Body.Unblocked = true
	return output, nil
}
