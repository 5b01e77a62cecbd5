package message

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"chatboard/internal/metrics"
	"chatboard/internal/store"

	"github.com/google/uuid"
)

var ErrMissingFields = errors.New("username and message are required")

// Producer interface for messaging (NATS)
type Producer interface {
	SendMessage(ctx context.Context, value interface{}) error
	Close() error
}

type Service struct {
	store    store.Store
	producer Producer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates the ingestion service. producer may be nil, in which
// case ingested messages are stored but no event is published.
func NewService(st store.Store, producer Producer, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    st,
		producer: producer,
		logger:   logger,
		metrics:  m,
	}
}

// Ingest validates the input, stores the message together with the sender's
// aggregate update, and publishes an IngestedEvent. A failed publish is
// logged but never fails the ingestion: the database is the system of
// record and the write already committed.
func (s *Service) Ingest(ctx context.Context, username, body, sourceAddress string) (*store.Message, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(body) == "" {
		return nil, ErrMissingFields
	}

	msg, err := s.store.IngestMessage(ctx, username, body, sourceAddress)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to ingest message", "username", username, "error", err)
		return nil, err
	}

	if s.producer != nil {
		event := IngestedEvent{
			EventID:   uuid.NewString(),
			MessageID: msg.ID,
			Username:  msg.Username,
			CreatedAt: msg.CreatedAt,
		}
		if err := s.producer.SendMessage(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish ingested event", "message_id", msg.ID, "error", err)
			s.metrics.RecordEventPublishError(ctx)
		} else {
			s.metrics.RecordEventPublished(ctx)
		}
	}

	return msg, nil
}

// List returns one page of messages, newest first.
func (s *Service) List(ctx context.Context, page, limit int) ([]store.Message, error) {
	return s.store.ListMessages(ctx, page, limit)
}
