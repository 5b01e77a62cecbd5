package message_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"chatboard/internal/message"
	"chatboard/internal/messaging"
	"chatboard/internal/metrics"
	"chatboard/internal/store"
	"chatboard/internal/testdb"
	"chatboard/internal/testnats"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)
	natsContainer := testnats.SetupSharedNATS(t)
	defer natsContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*store.Message)(nil), (*store.UserStats)(nil))

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mockMetrics := metrics.NewMock()

	const subject = "chatboard.test.messages.ingested"

	producer, err := messaging.NewProducer(natsContainer.URL, subject, logger)
	require.NoError(t, err)
	defer producer.Close()

	st := store.New(pgContainer.DB, mockMetrics)
	service := message.NewService(st, producer, logger, mockMetrics)
	handler := message.NewHandler(service, logger, mockMetrics)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	postWebhook := func(t *testing.T, payload interface{}) *httptest.ResponseRecorder {
		t.Helper()
		body, err := json.Marshal(payload)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Webhook_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		nc := natsContainer.Connect(t)
		received := make(chan *nats.Msg, 1)
		_, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			received <- msg
		})
		require.NoError(t, err)
		require.NoError(t, nc.Flush())

		w := postWebhook(t, message.WebhookRequest{Username: "alice", Message: "hello"})

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]bool
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.True(t, response["success"])

		count, err := st.CountMessages(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		stats, err := st.UserByName(ctx, "alice")
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.MessageCount)

		select {
		case msg := <-received:
			var event message.IngestedEvent
			require.NoError(t, json.Unmarshal(msg.Data, &event))
			assert.Equal(t, "alice", event.Username)
			assert.NotEmpty(t, event.EventID)
			assert.NotZero(t, event.MessageID)
		case <-time.After(2 * time.Second):
			t.Fatal("ingested event not received on NATS within timeout")
		}
	})

	t.Run("Webhook_MissingFields", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		cases := []interface{}{
			map[string]string{"message": "hello"},
			map[string]string{"username": "alice"},
			map[string]string{"username": "", "message": "hello"},
			map[string]string{"username": "   ", "message": "hello"},
			map[string]string{},
		}

		for _, payload := range cases {
			w := postWebhook(t, payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, "Username and message are required", response["error"])
		}

		// rejected requests must not create rows
		count, err := st.CountMessages(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		_, err = st.UserByName(ctx, "alice")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("Webhook_MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Webhook_RecordsSourceAddress", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		body, _ := json.Marshal(message.WebhookRequest{Username: "bob", Message: "hey"})
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		messages, err := st.ListMessages(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "203.0.113.7", messages[0].SourceAddress)
	})

	t.Run("ListMessages_NewestFirstWithDefaults", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		for _, body := range []string{"first", "second", "third"} {
			w := postWebhook(t, message.WebhookRequest{Username: "alice", Message: body})
			require.Equal(t, http.StatusOK, w.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var messages []store.Message
		require.NoError(t, json.NewDecoder(w.Body).Decode(&messages))
		require.Len(t, messages, 3)
		assert.Equal(t, "third", messages[0].Body)
		assert.Equal(t, "first", messages[2].Body)
	})

	t.Run("ListMessages_PaginationParams", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		for _, body := range []string{"m1", "m2", "m3", "m4", "m5"} {
			w := postWebhook(t, message.WebhookRequest{Username: "alice", Message: body})
			require.Equal(t, http.StatusOK, w.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/messages?page=2&limit=2", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var messages []store.Message
		require.NoError(t, json.NewDecoder(w.Body).Decode(&messages))
		require.Len(t, messages, 2)
		assert.Equal(t, "m3", messages[0].Body)
		assert.Equal(t, "m2", messages[1].Body)
	})

	t.Run("ListMessages_InvalidParamsFallBackToDefaults", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		w := postWebhook(t, message.WebhookRequest{Username: "alice", Message: "hi"})
		require.Equal(t, http.StatusOK, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/api/messages?page=abc&limit=-5", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var messages []store.Message
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
		assert.Len(t, messages, 1)
	})
}
