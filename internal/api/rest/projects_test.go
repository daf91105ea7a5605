package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wendleyw/boardsync/internal/board"
	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/internal/ticket"
	"github.com/wendleyw/boardsync/internal/tracker"
)

type projectFixture struct {
	router   chi.Router
	service  *ticket.Service
	mappings *store.TaskMappingRepository
	tickets  *store.TicketRepository
}

func newProjectFixture(t *testing.T) *projectFixture {
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

	boardClient := board.NewClient(board.Config{}, logger)
	trackerClient, err := tracker.NewClient(tracker.Config{}, logger)
	require.NoError(t, err)

	engine := sync.NewEngine(mappings, tickets, logs, boardClient, trackerClient, logger)
	service := ticket.NewService(tickets, mappings, logs, boardClient, trackerClient, engine, logger)
	handler := NewProjectHandler(service, engine, mappings, logger)

	router := chi.NewRouter()
	router.Route("/api/projects", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return &projectFixture{
		router:   router,
		service:  service,
		mappings: mappings,
		tickets:  tickets,
	}
}

func (f *projectFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *projectFixture) createProject(t *testing.T) *store.Ticket {
	t.Helper()
	p, err := f.service.Create(context.Background(), ticket.CreateTicketInput{
		Title:       "Logo for Acme",
		ServiceType: "LOGO",
		ClientName:  "Acme",
	})
	require.NoError(t, err)
	return p
}

func TestCreateProject(t *testing.T) {
	f := newProjectFixture(t)

	t.Run("created", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects", `{"title":"Website for Acme","service_type":"WEBSITE","priority":"HIGH"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Success bool          `json:"success"`
			Ticket  *store.Ticket `json:"ticket"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Ticket)
		assert.Equal(t, "HIGH", resp.Ticket.Priority)

		ms, err := f.mappings.FindByTicketID(context.Background(), resp.Ticket.ID)
		require.NoError(t, err)
		assert.Len(t, ms, 7)
	})

	t.Run("missing title", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects", `{"service_type":"LOGO"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects", `{nope`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetProjectStatus(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)

	rec := f.do(t, http.MethodGet, "/api/projects/"+p.ID+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status *ticket.IntegrationStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Status)
	assert.Equal(t, "disconnected", resp.Status.BoardStatus)
	require.NotNil(t, resp.Status.SyncHealth)

	t.Run("unknown project", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/projects/missing/status", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetProjectStatistics(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)

	rec := f.do(t, http.MethodGet, "/api/projects/"+p.ID+"/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Statistics *sync.Statistics `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Statistics)
	assert.Equal(t, 7, resp.Statistics.TotalTasks)
	assert.Equal(t, 0, resp.Statistics.CompletedTasks)

	t.Run("unknown project", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/projects/missing/statistics", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestProjectComments(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)

	t.Run("added", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects/"+p.ID+"/comments", `{"author":"Acme","message":"looks great"}`)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("listed newest first", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/projects/"+p.ID+"/communications", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Communications []*store.CommunicationLog `json:"communications"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Communications, 2)
		assert.Equal(t, "looks great", resp.Communications[0].Message)
	})

	t.Run("missing message", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects/"+p.ID+"/comments", `{"author":"Acme"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/projects/missing/comments", `{"message":"hi"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSyncProjectStatus(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)

	rec := f.do(t, http.MethodPatch, "/api/projects/"+p.ID+"/status", `{"status":"IN_PROGRESS"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.tickets.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", got.Status)

	t.Run("missing status", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/projects/"+p.ID+"/status", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown source", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/projects/"+p.ID+"/status", `{"status":"DONE","source":"fax"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown project", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/api/projects/missing/status", `{"status":"DONE"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSyncProjectTask(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)
	ctx := context.Background()

	ms, err := f.mappings.FindByTicketID(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	taskID := ms[0].ID

	path := fmt.Sprintf("/api/projects/%s/tasks/%s/sync", p.ID, taskID)

	t.Run("completed", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, path, `{"completed":true,"source":"board"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		got, err := f.mappings.FindByID(ctx, taskID)
		require.NoError(t, err)
		assert.True(t, got.Completed)
	})

	t.Run("missing completed flag", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, path, `{"source":"board"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown source", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, path, `{"completed":true,"source":"fax"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown task", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, fmt.Sprintf("/api/projects/%s/tasks/missing/sync", p.ID), `{"completed":true}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteProject(t *testing.T) {
	f := newProjectFixture(t)
	p := f.createProject(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodDelete, "/api/projects/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := f.tickets.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	t.Run("unknown project", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/api/projects/"+p.ID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
