package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/board"
	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/internal/tracker"
	"github.com/wendleyw/boardsync/pkg/types"
)

// BoardProvisioner is what the ticket service needs from the board side to
// materialize a ticket there. Implemented by board.Client.
type BoardProvisioner interface {
	Ready() bool
	CreateBoard(ctx context.Context, name string) (string, error)
	CreateReportFrame(ctx context.Context, boardID, title string) (string, error)
	CreateTaskWidgets(ctx context.Context, boardID, frameID string, taskNames []string) ([]board.TaskWidget, error)
	GetBoardInfo(ctx context.Context, boardID string) (*board.BoardInfo, error)
}

// TrackerProbe is what the ticket service needs from the task platform to
// report per-ticket connectivity. Implemented by tracker.Client.
type TrackerProbe interface {
	Ready() bool
	GetItem(ctx context.Context, itemID string) (*tracker.Item, error)
}

/// Service owns the ticket lifecycle: creation materializes the mapping rows
// (and the board side when credentials allow), deletion cascades through
// mappings and the communication log.
type Service struct {
	tickets  *store.TicketRepository
	mappings *store.TaskMappingRepository
	logs     *store.CommunicationLogRepository
	board    BoardProvisioner
	tracker  TrackerProbe
	engine   *sync.Engine
	logger   *zap.Logger
}

// NewService creates a new ticket service.
func NewService(
	tickets *store.TicketRepository,
	mappings *store.TaskMappingRepository,
	logs *store.CommunicationLogRepository,
	boardClient BoardProvisioner,
	trackerClient TrackerProbe,
	engine *sync.Engine,
	logger *zap.Logger,
) *Service {
	return &Service{
		tickets:  tickets,
		mappings: mappings,
		logs:     logs,
		board:    boardClient,
		tracker:  trackerClient,
		engine:   engine,
		logger:   logger,
	}
}

// CreateTicketInput describes a new ticket.
type CreateTicketInput struct {
	Title       string
	Description string
	ServiceType string
	Priority    string
	ClientName  string
	Deadline    *time.Time
}

// Create persists a ticket, seeds its task mappings from the service-type
// template and, when the board adapter is ready, creates the board with one
// checkbox widget per task. Board materialization is best effort: a board
// failure leaves a fully usable ticket whose board side can be created later.
func (s *Service) Create(ctx context.Context, in CreateTicketInput) (*store.Ticket, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = "MEDIUM"
	}

	t := &store.Ticket{
		TicketNumber: newTicketNumber(),
		Title:        in.Title,
		Description:  in.Description,
		ServiceType:  in.ServiceType,
		Priority:     priority,
		Status:       "OPEN",
		ClientName:   in.ClientName,
		Deadline:     in.Deadline,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	templates := TaskTemplatesFor(in.ServiceType)
	mappings := make([]*store.TaskMapping, 0, len(templates))
	for _, tpl := range templates {
		mappings = append(mappings, &store.TaskMapping{
			TicketID:  t.ID,
			TaskName:  tpl.Name,
			TaskOrder: tpl.Order,
		})
	}
	if err := s.mappings.CreateBatch(ctx, mappings); err != nil {
		return nil, fmt.Errorf("failed to create task mappings: %w", err)
	}

	if err := s.logs.AddSystemMessage(ctx, t.ID, fmt.Sprintf("Ticket %s created", t.TicketNumber)); err != nil {
		s.logger.Warn("failed to record ticket creation", zap.Error(err))
	}

	if s.board.Ready() {
		if err := s.materializeBoard(ctx, t, mappings); err != nil {
			s.logger.Warn("board materialization failed, ticket created without board",
				zap.String("ticket_id", t.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("created ticket",
		zap.String("ticket_id", t.ID),
		zap.String("ticket_number", t.TicketNumber),
		zap.Int("tasks", len(mappings)),
	)
	return t, nil
}

func (s *Service) materializeBoard(ctx context.Context, t *store.Ticket, mappings []*store.TaskMapping) error {
	boardID, err := s.board.CreateBoard(ctx, fmt.Sprintf("%s - %s", t.TicketNumber, t.Title))
	if err != nil {
		return err
	}
	frameID, err := s.board.CreateReportFrame(ctx, boardID, "PROJECT REPORT")
	if err != nil {
		return err
	}
	if err := s.tickets.SetBoardRefs(ctx, t.ID, boardID, frameID); err != nil {
		return err
	}
	t.BoardID = boardID
	t.ReportFrameID = frameID

	names := make([]string, len(mappings))
	for i, m := range mappings {
		names[i] = m.TaskName
	}
	widgets, err := s.board.CreateTaskWidgets(ctx, boardID, frameID, names)
	if err != nil {
		return err
	}
	for i, w := range widgets {
		if i >= len(mappings) {
			break
		}
		if err := s.mappings.SetBoardWidgetID(ctx, mappings[i].ID, w.ID); err != nil {
			return err
		}
		mappings[i].BoardWidgetID = w.ID
	}
	return nil
}

// Get retrieves a ticket.
func (s *Service) Get(ctx context.Context, id string) (*store.Ticket, error) {
	return s.tickets.FindByID(ctx, id)
}

// Delete removes a ticket and cascades through its mappings and
// communication log, the only path that deletes either.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.tickets.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.logs.DeleteByTicketID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete communication log: %w", err)
	}
	if err := s.mappings.DeleteByTicketID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task mappings: %w", err)
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	s.logger.Info("deleted ticket", zap.String("ticket_id", id))
	return nil
}

// Progress reports task completion for a ticket.
func (s *Service) Progress(ctx context.Context, ticketID string) (*store.Progress, error) {
	return s.mappings.GetTicketProgress(ctx, ticketID)
}

// Communications lists the ticket's communication log, newest first.
func (s *Service) Communications(ctx context.Context, ticketID string, limit int) ([]*store.CommunicationLog, error) {
	if _, err := s.tickets.FindByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.logs.FindByTicketID(ctx, ticketID, limit)
}

// AddClientComment records a client message and mirrors it through the
// sync engine.
func (s *Service) AddClientComment(ctx context.Context, ticketID, author, message string) sync.Result {
	return s.engine.SyncCommunication(ctx, sync.CommunicationSync{
		TicketID: ticketID,
		Message:  message,
		Author:   author,
		Source:   types.PlatformClient,
	})
}

// IntegrationStatus describes per-platform connectivity for one ticket.
type IntegrationStatus struct {
	Ticket        *store.Ticket `json:"ticket"`
	BoardStatus   string        `json:"board_status"`   // connected, disconnected or error
	TrackerStatus string        `json:"tracker_status"` // connected, disconnected or error
	SyncHealth    *sync.Health  `json:"sync_health"`
}

// GetIntegrationStatus probes each platform's connection for a ticket and
// folds in the engine health check.
func (s *Service) GetIntegrationStatus(ctx context.Context, ticketID string) (*IntegrationStatus, error) {
	t, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	status := &IntegrationStatus{
		Ticket:        t,
		BoardStatus:   "disconnected",
		TrackerStatus: "disconnected",
		SyncHealth:    s.engine.HealthCheck(ctx),
	}

	if t.BoardID != "" && s.board.Ready() {
		if _, err := s.board.GetBoardInfo(ctx, t.BoardID); err != nil {
			s.logger.Warn("board connectivity probe failed",
				zap.String("board_id", t.BoardID),
				zap.Error(err),
			)
			status.BoardStatus = "error"
		} else {
			status.BoardStatus = "connected"
		}
	}
	if s.tracker.Ready() {
		if itemID := s.trackerAnchorItem(ctx, t.ID); itemID != "" {
			if _, err := s.tracker.GetItem(ctx, itemID); err != nil {
				s.logger.Warn("tracker connectivity probe failed",
					zap.String("item_id", itemID),
					zap.Error(err),
				)
				status.TrackerStatus = "error"
			} else {
				status.TrackerStatus = "connected"
			}
		}
	}
	return status, nil
}

// trackerAnchorItem returns the first materialized tracker item for a ticket,
// used as the connectivity probe target.
func (s *Service) trackerAnchorItem(ctx context.Context, ticketID string) string {
	mappings, err := s.mappings.FindByTicketID(ctx, ticketID)
	if err != nil {
		return ""
	}
	for _, m := range mappings {
		if m.TrackerItemID != "" {
			return m.TrackerItemID
		}
	}
	return ""
}

func newTicketNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TKT-%s-%s", time.Now().Format("20060102"), suffix)
}
