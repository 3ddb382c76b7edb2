package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/personaforge/personaforge/internal/config"
	"github.com/personaforge/personaforge/internal/models"
	"github.com/personaforge/personaforge/internal/repository"
)

// ErrExportDisabled indicates no object storage bucket is configured.
var ErrExportDisabled = errors.New("export storage not configured")

// ExportService writes chat transcripts and persona definitions to
// S3-compatible object storage.
type ExportService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	repos   *repository.Repositories
	logger  *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(cfg *appconfig.Config, repos *repository.Repositories, logger *slog.Logger) (*ExportService, error) {
	if !cfg.StorageEnabled {
		logger.Info("export service disabled - no bucket configured")
		return &ExportService{
			enabled: false,
			repos:   repos,
			logger:  logger,
		}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.StorageRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true // Required for some S3-compatible services
	})

	logger.Info("export service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &ExportService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		repos:   repos,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether export storage is configured.
func (s *ExportService) IsEnabled() bool {
	return s.enabled
}

// TranscriptExport is the stored form of a chat transcript.
type TranscriptExport struct {
	ChatID     int64             `json:"chat_id"`
	Messages   []*models.Message `json:"messages"`
	ExportedAt time.Time         `json:"exported_at"`
}

// PersonaExport is the stored form of the persona catalogue.
type PersonaExport struct {
	Personas   []*models.Persona `json:"personas"`
	ExportedAt time.Time         `json:"exported_at"`
}

// ExportTranscript writes the full history of a chat to object storage
// and returns the object key.
func (s *ExportService) ExportTranscript(ctx context.Context, chatID int64) (string, error) {
	if !s.enabled {
		return "", ErrExportDisabled
	}

	messages, err := s.repos.Message.GetByChatID(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("fetching transcript: %w", err)
	}

	export := TranscriptExport{
		ChatID:     chatID,
		Messages:   messages,
		ExportedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("transcripts/%d/%s.json", chatID, export.ExportedAt.Format("20060102-150405"))

	if err := s.put(ctx, key, export); err != nil {
		return "", err
	}

	s.logger.Info("exported transcript",
		"chat_id", chatID,
		"key", key,
		"messages", len(messages),
	)
	return key, nil
}

// ExportPersonas writes all persona definitions to object storage and
// returns the object key.
func (s *ExportService) ExportPersonas(ctx context.Context) (string, error) {
	if !s.enabled {
		return "", ErrExportDisabled
	}

	personas, err := s.repos.Persona.List(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching personas: %w", err)
	}

	export := PersonaExport{
		Personas:   personas,
		ExportedAt: time.Now().UTC(),
	}
	key := fmt.Sprintf("personas/%s.json", export.ExportedAt.Format("20060102-150405"))

	if err := s.put(ctx, key, export); err != nil {
		return "", err
	}

	s.logger.Info("exported personas",
		"key", key,
		"personas", len(personas),
	)
	return key, nil
}

// GetExport retrieves a previously written export by key.
func (s *ExportService) GetExport(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, ErrExportDisabled
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	return io.ReadAll(output.Body)
}

func (s *ExportService) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to store export: %w", err)
	}
	return nil
}
