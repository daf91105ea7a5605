package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/pkg/types"
)

// DefaultStaleThreshold is how old the most recent sync may get before the
// health check reports the bridge as degraded.
const DefaultStaleThreshold = time.Hour

// Engine reconciles task state across the board and tracker platforms. Every
// mutation of a TaskMapping's completion flag goes through here: the engine
// persists the authoritative local state first, then mirrors the change onto
// every platform other than the one that reported it, then writes an audit
// entry. Mirroring is best effort; failures are collected on the result, not
// surfaced as call failures.
//
// The engine enforces no ordering across concurrent events for the same
// mapping. Overlapping calls race at the storage layer and the last write
// wins; ResolveConflict exists as the explicit reconciliation path.
type Engine struct {
	mappings *store.TaskMappingRepository
	tickets  *store.TicketRepository
	logs     *store.CommunicationLogRepository
	board    BoardAdapter
	tracker  TrackerAdapter
	logger   *zap.Logger

	staleThreshold time.Duration

	mu         gosync.Mutex
	syncErrors map[string]int // ticket id -> propagation failures seen
}

// NewEngine creates a new sync engine.
func NewEngine(
	mappings *store.TaskMappingRepository,
	tickets *store.TicketRepository,
	logs *store.CommunicationLogRepository,
	board BoardAdapter,
	tracker TrackerAdapter,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		mappings:       mappings,
		tickets:        tickets,
		logs:           logs,
		board:          board,
		tracker:        tracker,
		logger:         logger,
		staleThreshold: DefaultStaleThreshold,
		syncErrors:     make(map[string]int),
	}
}

// WithStaleThreshold overrides the health-check staleness window.
func (e *Engine) WithStaleThreshold(d time.Duration) *Engine {
	e.staleThreshold = d
	return e
}

// TaskSync is a request to sync one task's completion flag.
type TaskSync struct {
	MappingID string
	Completed bool
	TaskName  string
	Source    types.Platform
}

// SyncTaskCompletion applies a completion change and mirrors it. The local
// mapping write happens before any propagation attempt, so local state is
// never left stale even when a platform is unreachable.
func (e *Engine) SyncTaskCompletion(ctx context.Context, in TaskSync) Result {
	e.logger.Info("syncing task completion",
		zap.String("event", string(types.EventTaskUpdated)),
		zap.String("mapping_id", in.MappingID),
		zap.Bool("completed", in.Completed),
		zap.String("source", string(in.Source)),
	)

	mapping, err := e.mappings.FindByID(ctx, in.MappingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("task mapping not found")
		}
		return failure(fmt.Sprintf("failed to load task mapping: %v", err))
	}

	ticket, err := e.tickets.FindByID(ctx, mapping.TicketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("ticket not found")
		}
		return failure(fmt.Sprintf("failed to load ticket: %v", err))
	}

	if err := e.mappings.UpdateCompletion(ctx, mapping.ID, in.Completed, time.Now()); err != nil {
		return failure(fmt.Sprintf("failed to update task mapping: %v", err))
	}

	var propagation []PropagationFailure
	if in.Source != types.PlatformTracker {
		if pf := e.propagateToTracker(ctx, mapping, in.Completed); pf != nil {
			propagation = append(propagation, *pf)
		}
	}
	if in.Source != types.PlatformBoard {
		if pf := e.propagateToBoard(ctx, ticket, mapping, in.Completed, in.TaskName); pf != nil {
			propagation = append(propagation, *pf)
		}
	}
	e.recordFailures(ticket.ID, propagation)

	verb := "reopened"
	if in.Completed {
		verb = "completed"
	}
	msg := fmt.Sprintf("Task %s: %s (synced from %s)", verb, in.TaskName, in.Source)
	if err := e.logs.AddSystemMessage(ctx, ticket.ID, msg); err != nil {
		return failure(fmt.Sprintf("failed to record sync log: %v", err))
	}

	return Result{Success: true, Propagation: propagation}
}

// propagateToTracker mirrors a completion change onto the tracker. Returns
// nil both on success and when the tracker side was never materialized.
func (e *Engine) propagateToTracker(ctx context.Context, mapping *store.TaskMapping, completed bool) *PropagationFailure {
	if !e.tracker.Ready() || mapping.TrackerItemID == "" {
		e.logger.Debug("tracker sync skipped",
			zap.String("mapping_id", mapping.ID),
			zap.Bool("ready", e.tracker.Ready()),
		)
		return nil
	}
	if err := e.tracker.UpdateItemCompletion(ctx, mapping.TrackerItemID, completed); err != nil {
		e.logger.Warn("failed to sync to tracker",
			zap.String("item_id", mapping.TrackerItemID),
			zap.Error(err),
		)
		return &PropagationFailure{Platform: types.PlatformTracker, Error: err.Error()}
	}
	return nil
}

// propagateToBoard mirrors a completion change onto the board. Returns nil
// both on success and when the board side was never materialized.
func (e *Engine) propagateToBoard(ctx context.Context, ticket *store.Ticket, mapping *store.TaskMapping, completed bool, taskName string) *PropagationFailure {
	if !e.board.Ready() || ticket.BoardID == "" || mapping.BoardWidgetID == "" {
		e.logger.Debug("board sync skipped",
			zap.String("mapping_id", mapping.ID),
			zap.Bool("ready", e.board.Ready()),
		)
		return nil
	}
	if err := e.board.UpdateTaskWidget(ctx, ticket.BoardID, mapping.BoardWidgetID, completed, taskName); err != nil {
		e.logger.Warn("failed to sync to board",
			zap.String("widget_id", mapping.BoardWidgetID),
			zap.Error(err),
		)
		return &PropagationFailure{Platform: types.PlatformBoard, Error: err.Error()}
	}
	return nil
}

// CommunicationSync is a request to record and mirror one message.
type CommunicationSync struct {
	TicketID string
	Message  string
	Author   string
	Source   types.Platform
}

// SyncCommunication appends a communication-log entry and mirrors it onto
// the board's report frame when one exists.
func (e *Engine) SyncCommunication(ctx context.Context, in CommunicationSync) Result {
	e.logger.Info("syncing communication",
		zap.String("event", string(types.EventCommunicationAdded)),
		zap.String("ticket_id", in.TicketID),
		zap.String("source", string(in.Source)),
	)

	ticket, err := e.tickets.FindByID(ctx, in.TicketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("ticket not found")
		}
		return failure(fmt.Sprintf("failed to load ticket: %v", err))
	}

	authorType := store.AuthorDesigner
	if in.Source == types.PlatformClient {
		authorType = store.AuthorClient
	}
	entry := &store.CommunicationLog{
		TicketID:   ticket.ID,
		AuthorType: authorType,
		AuthorName: in.Author,
		Message:    in.Message,
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		return failure(fmt.Sprintf("failed to record communication: %v", err))
	}

	var propagation []PropagationFailure
	if in.Source != types.PlatformBoard && e.board.Ready() && ticket.BoardID != "" && ticket.ReportFrameID != "" {
		if err := e.board.AddLogEntry(ctx, ticket.BoardID, ticket.ReportFrameID, in.Message, in.Author, time.Now()); err != nil {
			e.logger.Warn("failed to mirror communication to board",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
			propagation = append(propagation, PropagationFailure{Platform: types.PlatformBoard, Error: err.Error()})
		}
	}
	if in.Source != types.PlatformTracker && e.tracker.Ready() {
		if itemID := e.trackerAnchor(ctx, ticket.ID); itemID != "" {
			comment := fmt.Sprintf("%s: %s", in.Author, in.Message)
			if err := e.tracker.AddComment(ctx, itemID, comment); err != nil {
				e.logger.Warn("failed to mirror communication to tracker",
					zap.String("item_id", itemID),
					zap.Error(err),
				)
				propagation = append(propagation, PropagationFailure{Platform: types.PlatformTracker, Error: err.Error()})
			}
		}
	}
	e.recordFailures(ticket.ID, propagation)

	return Result{Success: true, Propagation: propagation}
}

// trackerAnchor picks the tracker item that receives ticket-level comments
/// and status notes: the first materialized mapping in task order. Empty when
// no mapping has a tracker side yet.
func (e *Engine) trackerAnchor(ctx context.Context, ticketID string) string {
	mappings, err := e.mappings.FindByTicketID(ctx, ticketID)
	if err != nil {
		e.logger.Warn("failed to load mappings for tracker mirror",
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
		return ""
	}
	for _, m := range mappings {
		if m.TrackerItemID != "" {
			return m.TrackerItemID
		}
	}
	return ""
}

// SyncTicketStatus persists a ticket status change and posts a status note to
// the platforms that did not originate it. A no-op status change still
// succeeds, and still posts the note.
func (e *Engine) SyncTicketStatus(ctx context.Context, ticketID, newStatus string, source types.Platform) Result {
	e.logger.Info("syncing ticket status",
		zap.String("event", string(types.EventStatusChanged)),
		zap.String("ticket_id", ticketID),
		zap.String("status", newStatus),
		zap.String("source", string(source)),
	)

	ticket, err := e.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("ticket not found")
		}
		return failure(fmt.Sprintf("failed to load ticket: %v", err))
	}

	if ticket.Status != newStatus {
		if err := e.tickets.UpdateStatus(ctx, ticketID, newStatus); err != nil {
			return failure(fmt.Sprintf("failed to update ticket status: %v", err))
		}
	}

	note := fmt.Sprintf("Ticket status changed to: %s", newStatus)

	var propagation []PropagationFailure
	if source != types.PlatformBoard && e.board.Ready() && ticket.BoardID != "" && ticket.ReportFrameID != "" {
		if err := e.board.AddLogEntry(ctx, ticket.BoardID, ticket.ReportFrameID, note, "System", time.Now()); err != nil {
			e.logger.Warn("failed to post status note to board",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
			propagation = append(propagation, PropagationFailure{Platform: types.PlatformBoard, Error: err.Error()})
		}
	}
	if source != types.PlatformTracker && e.tracker.Ready() {
		if itemID := e.trackerAnchor(ctx, ticket.ID); itemID != "" {
			if err := e.tracker.AddComment(ctx, itemID, note); err != nil {
				e.logger.Warn("failed to post status note to tracker",
					zap.String("item_id", itemID),
					zap.Error(err),
				)
				propagation = append(propagation, PropagationFailure{Platform: types.PlatformTracker, Error: err.Error()})
			}
		}
	}
	e.recordFailures(ticket.ID, propagation)

	return Result{Success: true, Propagation: propagation}
}

// Statistics summarizes sync state for one ticket.
type Statistics struct {
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	LastSyncTime   *time.Time `json:"last_sync_time"`
	SyncErrors     int        `json:"sync_errors"`
}

// GetStatistics aggregates over all mappings for a ticket.
func (e *Engine) GetStatistics(ctx context.Context, ticketID string) (*Statistics, error) {
	mappings, err := e.mappings.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task mappings: %w", err)
	}

	stats := &Statistics{TotalTasks: len(mappings)}
	for _, m := range mappings {
		if m.Completed {
			stats.CompletedTasks++
		}
		if m.SyncedAt != nil && (stats.LastSyncTime == nil || m.SyncedAt.After(*stats.LastSyncTime)) {
			stats.LastSyncTime = m.SyncedAt
		}
	}

	e.mu.Lock()
	stats.SyncErrors = e.syncErrors[ticketID]
	e.mu.Unlock()

	return stats, nil
}

// Health describes the bridge's current operational state.
type Health struct {
	Status        string     `json:"status"` // healthy, degraded or unhealthy
	BoardStatus   string     `json:"board_status"`
	TrackerStatus string     `json:"tracker_status"`
	LastSyncTime  *time.Time `json:"last_sync_time"`
}

// HealthCheck reports adapter readiness and sync freshness. Degrades when
// an adapter is unconfigured or the most recent sync is older than the
// staleness threshold; unhealthy only when the store itself fails.
func (e *Engine) HealthCheck(ctx context.Context) *Health {
	h := &Health{
		Status:        "healthy",
		BoardStatus:   adapterStatus(e.board.Ready()),
		TrackerStatus: adapterStatus(e.tracker.Ready()),
	}

	mappings, err := e.mappings.FindAll(ctx)
	if err != nil {
		e.logger.Error("health check failed to read task mappings", zap.Error(err))
		h.Status = "unhealthy"
		return h
	}

	for _, m := range mappings {
		if m.SyncedAt != nil && (h.LastSyncTime == nil || m.SyncedAt.After(*h.LastSyncTime)) {
			h.LastSyncTime = m.SyncedAt
		}
	}

	if !e.board.Ready() || !e.tracker.Ready() {
		h.Status = "degraded"
	}
	if h.LastSyncTime != nil && time.Since(*h.LastSyncTime) > e.staleThreshold {
		h.Status = "degraded"
	}
	return h
}

func adapterStatus(ready bool) string {
	if ready {
		return "connected"
	}
	return "disconnected"
}

func (e *Engine) recordFailures(ticketID string, failures []PropagationFailure) {
	if len(failures) == 0 {
		return
	}
	e.mu.Lock()
	e.syncErrors[ticketID] += len(failures)
	e.mu.Unlock()
}
