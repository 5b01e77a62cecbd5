package message_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"chatboard/internal/message"
	"chatboard/internal/metrics"
	"chatboard/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore lets service tests run without a database.
type fakeStore struct {
	store.Store

	ingested  []store.Message
	ingestErr error
}

func (f *fakeStore) IngestMessage(ctx context.Context, username, body, sourceAddress string) (*store.Message, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	msg := store.Message{
		ID:            int64(len(f.ingested) + 1),
		Username:      username,
		Body:          body,
		CreatedAt:     time.Now().UTC(),
		SourceAddress: sourceAddress,
	}
	f.ingested = append(f.ingested, msg)
	return &msg, nil
}

type failingProducer struct {
	calls int
}

func (p *failingProducer) SendMessage(ctx context.Context, value interface{}) error {
	p.calls++
	return errors.New("nats unavailable")
}

func (p *failingProducer) Close() error { return nil }

func TestService_Ingest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	t.Run("RejectsEmptyInput", func(t *testing.T) {
		fs := &fakeStore{}
		service := message.NewService(fs, nil, logger, metrics.NewMock())

		for _, input := range [][2]string{
			{"", "hello"},
			{"alice", ""},
			{"   ", "hello"},
			{"alice", "\t\n"},
			{"", ""},
		} {
			_, err := service.Ingest(ctx, input[0], input[1], "")
			assert.ErrorIs(t, err, message.ErrMissingFields)
		}

		assert.Empty(t, fs.ingested, "invalid input must never reach the store")
	})

	t.Run("PublishFailureDoesNotFailIngestion", func(t *testing.T) {
		fs := &fakeStore{}
		producer := &failingProducer{}
		service := message.NewService(fs, producer, logger, metrics.NewMock())

		msg, err := service.Ingest(ctx, "alice", "hello", "10.0.0.1:9")
		require.NoError(t, err)
		assert.Equal(t, "alice", msg.Username)
		assert.Equal(t, 1, producer.calls)
		assert.Len(t, fs.ingested, 1)
	})

	t.Run("NilProducerSkipsPublishing", func(t *testing.T) {
		fs := &fakeStore{}
		service := message.NewService(fs, nil, logger, metrics.NewMock())

		_, err := service.Ingest(ctx, "alice", "hello", "")
		require.NoError(t, err)
		assert.Len(t, fs.ingested, 1)
	})

	t.Run("StoreFailureSurfaces", func(t *testing.T) {
		fs := &fakeStore{ingestErr: errors.New("connection refused")}
		service := message.NewService(fs, nil, logger, metrics.NewMock())

		_, err := service.Ingest(ctx, "alice", "hello", "")
		assert.Error(t, err)
	})
}
