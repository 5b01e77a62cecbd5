package stats

import (
	"context"
	"time"

	"chatboard/internal/store"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Overview is the dashboard summary: totals plus the two leaderboard-style
// aggregates. The four sub-reads are independent; the snapshot is
// point-in-time "good enough" for analytics, not transactionally consistent.
type Overview struct {
	TotalMessages  int64      `json:"totalMessages"`
	TotalUsers     int64      `json:"totalUsers"`
	MessagesPerDay []DayCount `json:"messagesPerDay"`
	TopUsers       []TopUser  `json:"topUsers"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type TopUser struct {
	Username string    `json:"username"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Overview runs the four aggregate reads concurrently and merges the results.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var (
		totalMessages int64
		totalUsers    int64
		perDay        []store.DayCount
		topUsers      []store.UserStats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totalMessages, err = s.store.CountMessages(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		totalUsers, err = s.store.CountSenders(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		perDay, err = s.store.MessagesPerDay(ctx, store.DefaultDays)
		return err
	})
	g.Go(func() error {
		var err error
		topUsers, err = s.store.TopUsers(ctx, store.DefaultTopUsers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Overview{
		TotalMessages: totalMessages,
		TotalUsers:    totalUsers,
		MessagesPerDay: lo.Map(perDay, func(d store.DayCount, _ int) DayCount {
			return DayCount{
				Date:  d.Date.Format("2006-01-02"),
				Count: d.Count,
			}
		}),
		TopUsers: lo.Map(topUsers, func(u store.UserStats, _ int) TopUser {
			return TopUser{
				Username: u.Username,
				Count:    u.MessageCount,
				LastSeen: u.LastSeen,
			}
		}),
	}, nil
}

// UserStats returns the aggregate row for one username.
func (s *Service) UserStats(ctx context.Context, username string) (*store.UserStats, error) {
	return s.store.UserByName(ctx, username)
}
