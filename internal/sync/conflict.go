package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wendleyw/boardsync/internal/store"
	"github.com/wendleyw/boardsync/pkg/types"
)

// Resolution names which side of a conflict was applied.
type Resolution string

const (
	ResolutionNoConflict  Resolution = "no_conflict"
	ResolutionBoardWins   Resolution = "board_wins"
	ResolutionTrackerWins Resolution = "tracker_wins"
)

// ConflictResult is the outcome of a conflict resolution.
type ConflictResult struct {
	Success    bool       `json:"success"`
	Resolution Resolution `json:"resolution"`
	Error      string     `json:"error,omitempty"`
}

// ResolveConflict reconciles two concurrent updates to the same mapping with
// a last-write-wins policy on the timestamps the platforms reported. The
// comparison is strict: on an exact timestamp tie the tracker side wins.
// That tie-break is deliberate only in the sense that it is deterministic;
// it is pending product review and must not be changed quietly.
//
// When both sides already agree there is no conflict and nothing is applied.
func (e *Engine) ResolveConflict(ctx context.Context, mappingID string, boardUpdate, trackerUpdate types.CandidateUpdate) ConflictResult {
	e.logger.Info("resolving conflict", zap.String("mapping_id", mappingID))

	if boardUpdate.Completed == trackerUpdate.Completed {
		return ConflictResult{Success: true, Resolution: ResolutionNoConflict}
	}

	boardWins := boardUpdate.Timestamp.After(trackerUpdate.Timestamp)

	resolution := ResolutionTrackerWins
	winner := trackerUpdate
	source := types.PlatformTracker
	if boardWins {
		resolution = ResolutionBoardWins
		winner = boardUpdate
		source = types.PlatformBoard
	}

	taskName := "Conflict Resolution"
	if m, err := e.mappings.FindByID(ctx, mappingID); err == nil {
		taskName = m.TaskName
	}

	// The winning update goes through the ordinary completion path so the
	// losing platform gets overwritten and the change is audited. Its result
	// is advisory here; the resolution outcome hinges on the logging step.
	e.SyncTaskCompletion(ctx, TaskSync{
		MappingID: mappingID,
		Completed: winner.Completed,
		TaskName:  taskName,
		Source:    source,
	})

	mapping, err := e.mappings.FindByID(ctx, mappingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ConflictResult{Success: false, Resolution: resolution, Error: "task mapping not found"}
		}
		return ConflictResult{Success: false, Resolution: resolution, Error: fmt.Sprintf("failed to load task mapping: %v", err)}
	}

	msg := fmt.Sprintf("Conflict resolved: %s (%s update at %s)",
		resolution, source, winner.Timestamp.Format(time.RFC3339))
	if err := e.logs.AddSystemMessage(ctx, mapping.TicketID, msg); err != nil {
		return ConflictResult{Success: false, Resolution: resolution, Error: fmt.Sprintf("failed to record resolution: %v", err)}
	}

	e.logger.Info("conflict resolved",
		zap.String("mapping_id", mappingID),
		zap.String("resolution", string(resolution)),
	)
	return ConflictResult{Success: true, Resolution: resolution}
}
