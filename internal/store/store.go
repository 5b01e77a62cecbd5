package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatboard/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrUserNotFound = errors.New("user not found")

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	DefaultDays     = 30
	DefaultTopUsers = 10
)

type Store interface {
	IngestMessage(ctx context.Context, username, body, sourceAddress string) (*Message, error)
	ListMessages(ctx context.Context, page, limit int) ([]Message, error)
	CountMessages(ctx context.Context) (int64, error)
	CountSenders(ctx context.Context) (int64, error)
	MessagesPerDay(ctx context.Context, limitDays int) ([]DayCount, error)
	TopUsers(ctx context.Context, limit int) ([]UserStats, error)
	UserByName(ctx context.Context, username string) (*UserStats, error)
}

type store struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func New(db *bun.DB, m *metrics.Metrics) Store {
	return &store{
		db:      db,
		metrics: m,
	}
}

// IngestMessage inserts the message and bumps the sender's aggregate row in
// one transaction, so message_count can never diverge from the number of
// stored messages for a username. The stats write is a single conditional
// insert-or-update statement; two concurrent ingestions for the same
// username both land (no lost update).
func (s *store) IngestMessage(ctx context.Context, username, body, sourceAddress string) (*Message, error) {
	msg := &Message{
		Username:      username,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
		SourceAddress: sourceAddress,
	}

	start := time.Now()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(msg).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		stats := &UserStats{
			Username:     username,
			MessageCount: 1,
			FirstSeen:    msg.CreatedAt,
			LastSeen:     msg.CreatedAt,
		}
		if _, err := tx.NewInsert().Model(stats).
			On("CONFLICT (username) DO UPDATE").
			Set("message_count = user_stats.message_count + 1").
			Set("last_seen = EXCLUDED.last_seen").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to upsert user stats: %w", err)
		}

		return nil
	})

	s.metrics.Database.RecordQuery(ctx, "insert", "messages", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns one page of messages, newest first. id breaks
// created_at ties so pages never overlap.
func (s *store) ListMessages(ctx context.Context, page, limit int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	start := time.Now()
	messages := make([]Message, 0, limit)
	err := s.db.NewSelect().
		Model(&messages).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(ctx)

	s.metrics.Database.RecordQuery(ctx, "select", "messages", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (s *store) CountMessages(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := s.db.NewSelect().Model((*Message)(nil)).Count(ctx)

	s.metrics.Database.RecordQuery(ctx, "select", "messages", time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int64(count), nil
}

func (s *store) CountSenders(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := s.db.NewSelect().
		Model((*Message)(nil)).
		ColumnExpr("count(DISTINCT username)").
		Scan(ctx, &count)

	s.metrics.Database.RecordQuery(ctx, "select", "messages", time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("failed to count senders: %w", err)
	}
	return count, nil
}

// MessagesPerDay groups messages by calendar date, most recent dates first.
func (s *store) MessagesPerDay(ctx context.Context, limitDays int) ([]DayCount, error) {
	if limitDays < 1 {
		limitDays = DefaultDays
	}

	start := time.Now()
	rows := make([]DayCount, 0, limitDays)
	err := s.db.NewSelect().
		Model((*Message)(nil)).
		ColumnExpr("created_at::date AS date").
		ColumnExpr("count(*) AS count").
		GroupExpr("created_at::date").
		OrderExpr("date DESC").
		Limit(limitDays).
		Scan(ctx, &rows)

	s.metrics.Database.RecordQuery(ctx, "select", "messages", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages per day: %w", err)
	}
	return rows, nil
}

// TopUsers orders by message_count descending; username ascending breaks ties.
func (s *store) TopUsers(ctx context.Context, limit int) ([]UserStats, error) {
	if limit < 1 {
		limit = DefaultTopUsers
	}

	start := time.Now()
	users := make([]UserStats, 0, limit)
	err := s.db.NewSelect().
		Model(&users).
		OrderExpr("message_count DESC, username ASC").
		Limit(limit).
		Scan(ctx)

	s.metrics.Database.RecordQuery(ctx, "select", "user_stats", time.Since(start), err)

	if err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	return users, nil
}

func (s *store) UserByName(ctx context.Context, username string) (*UserStats, error) {
	start := time.Now()
	stats := new(UserStats)
	err := s.db.NewSelect().
		Model(stats).
		Where("username = ?", username).
		Scan(ctx)

	s.metrics.Database.RecordQuery(ctx, "select", "user_stats", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}
