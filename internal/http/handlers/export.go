package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/personaforge/personaforge/internal/service"
)

// ExportHandler handles transcript and persona export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler creates a new export handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportTranscriptInput represents a transcript export request.
type ExportTranscriptInput struct {
	ChatID int64 `path:"chat_id" doc:"Chat ID"`
}

// ExportOutput represents the location of a written export.
type ExportOutput struct {
	Body struct {
		Key string `json:"key" doc:"Object key of the stored export"`
	}
}

// ExportTranscript writes a chat's full history to object storage.
func (h *ExportHandler) ExportTranscript(ctx context.Context, input *ExportTranscriptInput) (*ExportOutput, error) {
	key, err := h.exports.ExportTranscript(ctx, input.ChatID)
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			return nil, huma.Error503ServiceUnavailable("export storage not configured")
		}
		return nil, huma.Error500InternalServerError("failed to export transcript: " + err.Error())
	}

	output := &ExportOutput{}
	output.Body.Key = key
	return output, nil
}

// ExportPersonas writes all persona definitions to object storage.
func (h *ExportHandler) ExportPersonas(ctx context.Context, input *struct{}) (*ExportOutput, error) {
	key, err := h.exports.ExportPersonas(ctx)
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			return nil, huma.Error503ServiceUnavailable("export storage not configured")
		}
		return nil, huma.Error500InternalServerError("failed to export personas: " + err.Error())
	}

	output := &ExportOutput{}
	output.Body.Key = key
	return output, nil
}

// GetExportInput represents an export retrieval request.
type GetExportInput struct {
	Key string `query:"key" required:"true" doc:"Object key returned by an export operation"`
}

// GetExportOutput represents a retrieved export document.
type GetExportOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetExport fetches a previously written export.
func (h *ExportHandler) GetExport(ctx context.Context, input *GetExportInput) (*GetExportOutput, error) {
	data, err := h.exports.GetExport(ctx, input.Key)
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			return nil, huma.Error503ServiceUnavailable("export storage not configured")
		}
		return nil, huma.Error404NotFound("export not found: " + err.Error())
	}

	return &GetExportOutput{
		ContentType: "application/json",
		Body:        data,
	}, nil
}
