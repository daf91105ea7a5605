package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wendleyw/boardsync/internal/board"
	"github.com/wendleyw/boardsync/internal/cache"
	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/internal/tracker"
)

type webhookFixture struct {
	router   chi.Router
	mappings *store.TaskMappingRepository
	logs     *store.CommunicationLogRepository
	events   *store.WebhookEventRepository
	ticket   *store.Ticket
	mapping  *store.TaskMapping
}

// newWebhookFixture wires a handler over an in-memory store. Both platform
// clients are unconfigured, so the engine applies local writes and skips
// propagation, which is what webhook assertions care about.
func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	logger := zap.NewNop()
	tickets := store.NewTicketRepository(db)
	mappings := store.NewTaskMappingRepository(db)
	logs := store.NewCommunicationLogRepository(db)
	events := store.NewWebhookEventRepository(db)

	boardClient := board.NewClient(board.Config{}, logger)
	trackerClient, err := tracker.NewClient(tracker.Config{}, logger)
	require.NoError(t, err)

	dedup, err := cache.NewDeliveryStore(cache.Config{}, time.Hour, logger)
	require.NoError(t, err)

	engine := sync.NewEngine(mappings, tickets, logs, boardClient, trackerClient, logger)
	handler := NewWebhookHandler(engine, mappings, events, dedup, logger)

	router := chi.NewRouter()
	router.Route("/api/webhooks", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	ctx := context.Background()
	ticket := &store.Ticket{
		TicketNumber: "TKT-20260828-WEBH0001",
		Title:        "Website for Acme",
		ServiceType:  "WEBSITE",
		Priority:     "HIGH",
		Status:       "OPEN",
	}
	require.NoError(t, tickets.Create(ctx, ticket))

	mapping := &store.TaskMapping{
		TicketID:      ticket.ID,
		TaskName:      "Wireframes",
		TaskOrder:     3,
		BoardWidgetID: "widget-3",
		TrackerItemID: "item-3",
	}
	require.NoError(t, mappings.Create(ctx, mapping))

	return &webhookFixture{
		router:   router,
		mappings: mappings,
		logs:     logs,
		events:   events,
		ticket:   ticket,
		mapping:  mapping,
	}
}

func (f *webhookFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *webhookFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestBoardWebhook_ChallengeHandshakes(t *testing.T) {
	f := newWebhookFixture(t)

	t.Run("body challenge echoed as plain text", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"challenge":"abc123"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "abc123", rec.Body.String())
	})

	t.Run("hub.challenge echoed as plain text", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"hub.challenge":"xyz789"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "xyz789", rec.Body.String())
	})

	t.Run("ping", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"type":"ping"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("webhook_verification", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"type":"webhook_verification"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"verified"`)
	})

	t.Run("GET query challenge echoed", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/board?challenge=qchal")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "qchal", rec.Body.String())
	})

	t.Run("GET without challenge reports ready", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/board")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ready")
	})
}

func TestBoardWebhook_MalformedPayloads(t *testing.T) {
	f := newWebhookFixture(t)

	t.Run("invalid json", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing type", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"data":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing data", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/board", `{"type":"item_updated"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBoardWebhook_ItemUpdated(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	body := fmt.Sprintf(`{
		"type": "item_updated",
		"data": {
			"item": {"id": %q, "type": "shape", "data": {"content": "☑ Wireframes"}},
			"board": {"id": "board-1"}
		}
	}`, f.mapping.BoardWidgetID)

	rec := f.post(t, "/api/webhooks/board", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.mappings.FindByID(ctx, f.mapping.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	entries, err := f.logs.FindByTicketID(ctx, f.ticket.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Task completed: Wireframes (synced from board)", entries[0].Message)

	// The delivery is recorded and flagged processed.
	events, err := f.events.List(ctx, "board", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "item_updated", events[0].EventType)
	assert.True(t, events[0].Processed)
}

func TestBoardWebhook_UnmappedWidgetStillSucceeds(t *testing.T) {
	f := newWebhookFixture(t)

	body := `{
		"type": "item_updated",
		"data": {
			"item": {"id": "unknown-widget", "type": "shape", "data": {"content": "☑ Something"}},
			"board": {"id": "board-1"}
		}
	}`
	rec := f.post(t, "/api/webhooks/board", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := f.mappings.FindByID(context.Background(), f.mapping.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestBoardWebhook_NonCheckboxContentIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	body := fmt.Sprintf(`{
		"type": "item_updated",
		"data": {
			"item": {"id": %q, "type": "shape", "data": {"content": "just a note"}},
			"board": {"id": "board-1"}
		}
	}`, f.mapping.BoardWidgetID)
	rec := f.post(t, "/api/webhooks/board", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := f.mappings.FindByID(context.Background(), f.mapping.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestTrackerWebhook(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	t.Run("missing event_name", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/tracker", `{"event_data":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("item completed", func(t *testing.T) {
		body := fmt.Sprintf(`{"event_name":"item:completed","event_data":{"id":%q}}`, f.mapping.TrackerItemID)
		rec := f.post(t, "/api/webhooks/tracker", body)
		require.Equal(t, http.StatusOK, rec.Code)

		got, err := f.mappings.FindByID(ctx, f.mapping.ID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
	})

	t.Run("item uncompleted", func(t *testing.T) {
		body := fmt.Sprintf(`{"event_name":"item:uncompleted","event_data":{"id":%q}}`, f.mapping.TrackerItemID)
		rec := f.post(t, "/api/webhooks/tracker", body)
		require.Equal(t, http.StatusOK, rec.Code)

		got, err := f.mappings.FindByID(ctx, f.mapping.ID)
		require.NoError(t, err)
		assert.False(t, got.Completed)
	})

	t.Run("note added", func(t *testing.T) {
		body := fmt.Sprintf(`{"event_name":"note:added","event_data":{"item_id":%q,"content":"looks great","posted_by":"PM"}}`, f.mapping.TrackerItemID)
		rec := f.post(t, "/api/webhooks/tracker", body)
		require.Equal(t, http.StatusOK, rec.Code)

		entries, err := f.logs.FindByTicketID(ctx, f.ticket.ID, 1)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "looks great", entries[0].Message)
		assert.Equal(t, "PM", entries[0].AuthorName)
		assert.Equal(t, store.AuthorDesigner, entries[0].AuthorType)
	})

	t.Run("unknown event accepted", func(t *testing.T) {
		rec := f.post(t, "/api/webhooks/tracker", `{"event_name":"item:deleted","event_data":{"id":"whatever"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("GET reports ready", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/tracker")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWebhookEventsAPI(t *testing.T) {
	f := newWebhookFixture(t)

	f.post(t, "/api/webhooks/board", `{"type":"board_created","data":{"item":{"id":"x"},"board":{"id":"b"}}}`)
	f.post(t, "/api/webhooks/tracker", `{"event_name":"item:added","event_data":{"id":"y"}}`)

	t.Run("list all", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/events")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool                  `json:"success"`
			Events  []*store.WebhookEvent `json:"events"`
			Total   int64                 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, int64(2), resp.Total)
		assert.Len(t, resp.Events, 2)
	})

	t.Run("filter by source", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/events?source=tracker")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Events []*store.WebhookEvent `json:"events"`
			Total  int64                 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "item:added", resp.Events[0].EventType)
	})

	t.Run("stats", func(t *testing.T) {
		rec := f.get(t, "/api/webhooks/events/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Stats *store.ProcessingStats `json:"stats"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Stats)
		assert.Equal(t, int64(2), resp.Stats.Total)
		assert.Equal(t, int64(1), resp.Stats.BySource["board"])
		assert.Equal(t, int64(1), resp.Stats.BySource["tracker"])
	})
}

func TestWebhookHealth(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.get(t, "/api/webhooks/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
