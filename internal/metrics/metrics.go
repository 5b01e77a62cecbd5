package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database *DatabaseMetrics

	messagesIngested   metric.Int64Counter
	messagesListViewed metric.Int64Counter
	statsViewed        metric.Int64Counter
	eventsPublished    metric.Int64Counter
	eventPublishErrors metric.Int64Counter
}

func New(ctx context.Context, serviceName string, logger *slog.Logger) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	m := &Metrics{}

	database, err := NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}
	m.Database = database

	m.messagesIngested, err = meter.Int64Counter(
		"chatboard.messages.ingested",
		metric.WithDescription("Total number of chat messages ingested via the webhook"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	m.messagesListViewed, err = meter.Int64Counter(
		"chatboard.messages.list_viewed",
		metric.WithDescription("Total number of times the message list was fetched"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.statsViewed, err = meter.Int64Counter(
		"chatboard.stats.viewed",
		metric.WithDescription("Total number of times the stats overview was fetched"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventsPublished, err = meter.Int64Counter(
		"chatboard.events.published",
		metric.WithDescription("Total number of message-ingested events published to NATS"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventPublishErrors, err = meter.Int64Counter(
		"chatboard.events.publish_errors",
		metric.WithDescription("Total number of failed event publishes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("metrics collectors initialized successfully")

	return m, nil
}

func (m *Metrics) RecordMessageIngested(ctx context.Context) {
	if m != nil && m.messagesIngested != nil {
		m.messagesIngested.Add(ctx, 1)
	}
}

func (m *Metrics) RecordMessagesListViewed(ctx context.Context) {
	if m != nil && m.messagesListViewed != nil {
		m.messagesListViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStatsViewed(ctx context.Context) {
	if m != nil && m.statsViewed != nil {
		m.statsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublished(ctx context.Context) {
	if m != nil && m.eventsPublished != nil {
		m.eventsPublished.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublishError(ctx context.Context) {
	if m != nil && m.eventPublishErrors != nil {
		m.eventPublishErrors.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{
		Database: &DatabaseMetrics{},
	}
}
