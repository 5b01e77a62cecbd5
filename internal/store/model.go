package store

import (
	"time"

	"github.com/uptrace/bun"
)

// Message is a single ingested chat message. Rows are immutable: id and
// created_at are assigned at insert and never change.
type Message struct {
	bun.BaseModel `bun:"table:messages"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Username      string    `bun:"username,notnull" json:"username"`
	Body          string    `bun:"body,notnull" json:"body"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"timestamp"`
	SourceAddress string    `bun:"source_address,nullzero" json:"source_address,omitempty"`
}

// UserStats is the per-sender aggregate, one row per distinct username.
// first_seen is set on the first message and never touched again;
// message_count and last_seen move on every ingest.
type UserStats struct {
	bun.BaseModel `bun:"table:user_stats"`

	ID           int64     `bun:"id,pk,autoincrement" json:"-"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	MessageCount int64     `bun:"message_count,notnull" json:"message_count"`
	FirstSeen    time.Time `bun:"first_seen,notnull" json:"first_seen"`
	LastSeen     time.Time `bun:"last_seen,notnull" json:"last_seen"`
}

// DayCount is one row of the messages-per-day aggregate.
type DayCount struct {
	Date  time.Time `bun:"date"`
	Count int64     `bun:"count"`
}
