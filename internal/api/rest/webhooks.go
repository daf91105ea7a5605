package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/board"
	"github.com/wendleyw/boardsync/internal/cache"
	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/internal/sync"
	"github.com/wendleyw/boardsync/pkg/types"
)

// deliveryIDHeader carries the platform's delivery id, used for dedup of
// redelivered webhooks.
const deliveryIDHeader = "X-Delivery-Id"

// WebhookHandler is the ingress layer: it answers verification handshakes,
// rejects malformed payloads, records every structurally valid delivery and
// normalizes platform events into sync engine calls. Once a payload passes
// validation the response is always 200 no matter what the engine says;
// platforms retry on HTTP failure and internal sync problems must not
// trigger redelivery storms.
type WebhookHandler struct {
	engine   *sync.Engine
	mappings *store.TaskMappingRepository
	events   *store.WebhookEventRepository
	dedup    *cache.DeliveryStore
	logger   *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(
	engine *sync.Engine,
	mappings *store.TaskMappingRepository,
	events *store.WebhookEventRepository,
	dedup *cache.DeliveryStore,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		engine:   engine,
		mappings: mappings,
		events:   events,
		dedup:    dedup,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/board", h.HandleBoardWebhook)
	r.Get("/board", h.HandleBoardVerification)
	r.Post("/tracker", h.HandleTrackerWebhook)
	r.Get("/tracker", h.HandleTrackerVerification)
	r.Get("/health", h.HandleHealth)
	r.Get("/events", h.ListEvents)
	r.Get("/events/stats", h.EventStats)
}

type boardItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data *struct {
		Content string `json:"content"`
	} `json:"data"`
}

type boardPayload struct {
	Challenge    string `json:"challenge"`
	HubChallenge string `json:"hub.challenge"`
	Type         string `json:"type"`
	Data         *struct {
		Item  boardItem `json:"item"`
		Board struct {
			ID string `json:"id"`
		} `json:"board"`
	} `json:"data"`
}

// HandleBoardWebhook handles POST /webhooks/board.
func (h *WebhookHandler) HandleBoardWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var payload boardPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	// Verification handshakes run before any business logic.
	if payload.Challenge != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload.Challenge))
		return
	}
	if payload.HubChallenge != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload.HubChallenge))
		return
	}
	switch payload.Type {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "message": "Ping received"})
		return
	case "webhook_verification":
		writeJSON(w, http.StatusOK, map[string]any{"status": "verified", "message": "Webhook verified successfully"})
		return
	}

	if payload.Type == "" || payload.Data == nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if h.dedup.MarkSeen(r.Context(), r.Header.Get(deliveryIDHeader)) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Duplicate delivery ignored"})
		return
	}

	event := &store.WebhookEvent{
		Source:    string(types.PlatformBoard),
		EventType: payload.Type,
		Payload:   string(body),
	}
	if err := h.events.Create(r.Context(), event); err != nil {
		h.logger.Error("failed to store webhook event", zap.Error(err))
	}

	h.processBoardEvent(r, &payload)

	if event.ID != "" {
		if err := h.events.MarkProcessed(r.Context(), event.ID); err != nil {
			h.logger.Warn("failed to mark webhook event processed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Webhook processed successfully"})
}

// processBoardEvent normalizes a board event into an engine call. A shape
// update whose content is checkbox-shaped is a task completion change.
func (h *WebhookHandler) processBoardEvent(r *http.Request, payload *boardPayload) {
	if payload.Type != "item_updated" {
		h.logger.Debug("ignoring board event", zap.String("type", payload.Type))
		return
	}
	item := payload.Data.Item
	if item.Type != "shape" || item.Data == nil {
		return
	}
	taskName, completed, ok := board.ParseTaskContent(item.Data.Content)
	if !ok {
		return
	}

	mapping, err := h.mappings.FindByBoardWidgetID(r.Context(), item.ID)
	if err != nil {
		h.logger.Info("board widget has no mapping, skipping",
			zap.String("widget_id", item.ID),
			zap.Error(err),
		)
		return
	}

	result := h.engine.SyncTaskCompletion(r.Context(), sync.TaskSync{
		MappingID: mapping.ID,
		Completed: completed,
		TaskName:  taskName,
		Source:    types.PlatformBoard,
	})
	if !result.Success {
		h.logger.Error("board webhook sync failed",
			zap.String("mapping_id", mapping.ID),
			zap.String("error", result.Error),
		)
	}
}

// HandleBoardVerification handles GET /webhooks/board challenge echoes.
func (h *WebhookHandler) HandleBoardVerification(w http.ResponseWriter, r *http.Request) {
	if challenge := r.URL.Query().Get("challenge"); challenge != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	if challenge := r.URL.Query().Get("hub.challenge"); challenge != "" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Board webhook endpoint ready",
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type trackerPayload struct {
	EventName string `json:"event_name"`
	EventData *struct {
		ID       string `json:"id"`
		ItemID   string `json:"item_id"`
		Content  string `json:"content"`
		PostedBy string `json:"posted_by"`
	} `json:"event_data"`
}

// HandleTrackerWebhook handles POST /webhooks/tracker.
func (h *WebhookHandler) HandleTrackerWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var payload trackerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid tracker webhook payload")
		return
	}
	if payload.EventName == "" {
		writeError(w, http.StatusBadRequest, "invalid tracker webhook payload")
		return
	}

	if h.dedup.MarkSeen(r.Context(), r.Header.Get(deliveryIDHeader)) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Duplicate delivery ignored"})
		return
	}

	event := &store.WebhookEvent{
		Source:    string(types.PlatformTracker),
		EventType: payload.EventName,
		Payload:   string(body),
	}
	if err := h.events.Create(r.Context(), event); err != nil {
		h.logger.Error("failed to store webhook event", zap.Error(err))
	}

	h.processTrackerEvent(r, &payload)

	if event.ID != "" {
		if err := h.events.MarkProcessed(r.Context(), event.ID); err != nil {
			h.logger.Warn("failed to mark webhook event processed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Tracker webhook processed successfully"})
}

func (h *WebhookHandler) processTrackerEvent(r *http.Request, payload *trackerPayload) {
	if payload.EventData == nil {
		h.logger.Debug("tracker event without data", zap.String("event", payload.EventName))
		return
	}

	switch payload.EventName {
	case "item:completed":
		h.syncTrackerCompletion(r, payload.EventData.ID, true)
	case "item:uncompleted":
		h.syncTrackerCompletion(r, payload.EventData.ID, false)
	case "note:added":
		h.syncTrackerNote(r, payload.EventData.ItemID, payload.EventData.PostedBy, payload.EventData.Content)
	default:
		h.logger.Debug("ignoring tracker event", zap.String("event", payload.EventName))
	}
}

func (h *WebhookHandler) syncTrackerCompletion(r *http.Request, itemID string, completed bool) {
	mapping, err := h.mappings.FindByTrackerItemID(r.Context(), itemID)
	if err != nil {
		h.logger.Info("tracker item has no mapping, skipping",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return
	}

	result := h.engine.SyncTaskCompletion(r.Context(), sync.TaskSync{
		MappingID: mapping.ID,
		Completed: completed,
		TaskName:  mapping.TaskName,
		Source:    types.PlatformTracker,
	})
	if !result.Success {
		h.logger.Error("tracker webhook sync failed",
			zap.String("mapping_id", mapping.ID),
			zap.String("error", result.Error),
		)
	}
}

func (h *WebhookHandler) syncTrackerNote(r *http.Request, itemID, author, content string) {
	if content == "" {
		return
	}
	mapping, err := h.mappings.FindByTrackerItemID(r.Context(), itemID)
	if err != nil {
		h.logger.Info("tracker note has no mapping, skipping", zap.String("item_id", itemID))
		return
	}
	if author == "" {
		author = "Tracker"
	}

	result := h.engine.SyncCommunication(r.Context(), sync.CommunicationSync{
		TicketID: mapping.TicketID,
		Message:  content,
		Author:   author,
		Source:   types.PlatformTracker,
	})
	if !result.Success {
		h.logger.Error("tracker note sync failed",
			zap.String("ticket_id", mapping.TicketID),
			zap.String("error", result.Error),
		)
	}
}

// HandleTrackerVerification handles GET /webhooks/tracker.
func (h *WebhookHandler) HandleTrackerVerification(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Tracker webhook endpoint",
		"status":  "ready",
	})
}

// HandleHealth handles GET /webhooks/health.
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Webhook service is healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListEvents handles GET /webhooks/events.
func (h *WebhookHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	events, err := h.events.List(r.Context(), source, limit, offset)
	if err != nil {
		h.logger.Error("failed to list webhook events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch webhook events")
		return
	}
	total, err := h.events.Count(r.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch webhook events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  events,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// EventStats handles GET /webhooks/events/stats.
func (h *WebhookHandler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.events.GetProcessingStats(r.Context())
	if err != nil {
		h.logger.Error("failed to aggregate webhook stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to aggregate webhook stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
