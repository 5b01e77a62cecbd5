package stats_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"chatboard/internal/metrics"
	"chatboard/internal/stats"
	"chatboard/internal/store"
	"chatboard/internal/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*store.Message)(nil), (*store.UserStats)(nil))

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mockMetrics := metrics.NewMock()

	st := store.New(pgContainer.DB, mockMetrics)
	service := stats.NewService(st)
	handler := stats.NewHandler(service, logger, mockMetrics)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	get := func(t *testing.T, path string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("GetStats_Scenario", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		for _, m := range [][2]string{
			{"alice", "hi"},
			{"alice", "yo"},
			{"bob", "hey"},
		} {
			_, err := st.IngestMessage(ctx, m[0], m[1], "")
			require.NoError(t, err)
		}

		w := get(t, "/api/stats")
		require.Equal(t, http.StatusOK, w.Code)

		var overview stats.Overview
		require.NoError(t, json.NewDecoder(w.Body).Decode(&overview))

		assert.EqualValues(t, 3, overview.TotalMessages)
		assert.EqualValues(t, 2, overview.TotalUsers)

		require.Len(t, overview.TopUsers, 2)
		assert.Equal(t, "alice", overview.TopUsers[0].Username)
		assert.EqualValues(t, 2, overview.TopUsers[0].Count)
		assert.Equal(t, "bob", overview.TopUsers[1].Username)
		assert.EqualValues(t, 1, overview.TopUsers[1].Count)

		require.Len(t, overview.MessagesPerDay, 1)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), overview.MessagesPerDay[0].Date)
		assert.EqualValues(t, 3, overview.MessagesPerDay[0].Count)
	})

	t.Run("GetStats_EmptyStore", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		w := get(t, "/api/stats")
		require.Equal(t, http.StatusOK, w.Code)

		var overview stats.Overview
		require.NoError(t, json.NewDecoder(w.Body).Decode(&overview))

		assert.Zero(t, overview.TotalMessages)
		assert.Zero(t, overview.TotalUsers)
		assert.Empty(t, overview.MessagesPerDay)
		assert.Empty(t, overview.TopUsers)
	})

	t.Run("GetUserStats_Found", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		_, err := st.IngestMessage(ctx, "alice", "hi", "")
		require.NoError(t, err)
		_, err = st.IngestMessage(ctx, "alice", "yo", "")
		require.NoError(t, err)

		w := get(t, "/api/users/alice/stats")
		require.Equal(t, http.StatusOK, w.Code)

		var userStats store.UserStats
		require.NoError(t, json.NewDecoder(w.Body).Decode(&userStats))
		assert.Equal(t, "alice", userStats.Username)
		assert.EqualValues(t, 2, userStats.MessageCount)
	})

	t.Run("GetUserStats_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "messages", "user_stats")

		w := get(t, "/api/users/nobody/stats")
		assert.Equal(t, http.StatusNotFound, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "User not found", response["error"])
	})
}
