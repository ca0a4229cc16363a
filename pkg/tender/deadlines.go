package tender

import (
	"context"
	"fmt"

	"github.com/openprocure/tenderchain/pkg/events"
)

const reopenReason = "missed deadline"

// Reopened identifies a tender returned to bidding by the sweep.
type Reopened struct {
	TenderID    string `json:"tender_id"`
	FailedStage int    `json:"failed_stage"`
}

// CheckDeadlines scans every in-progress tender for an active stage
// whose deadline has passed and reopens those tenders: winner cleared,
// bidding open again, the missed stage recorded as failed. A reopened
// tender no longer appears in progress, so repeated sweeps do not
// double-reopen. The sweep appends, so it takes the same lock as every
// other transition.
func (e *Engine) CheckDeadlines(ctx context.Context) ([]Reopened, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock().UTC()
	tenders, err := e.listTenders()
	if err != nil {
		return nil, err
	}

	reopened := make([]Reopened, 0)
	for _, t := range tenders {
		if t.Status != StatusInProgress {
			continue
		}
		stage := t.ActiveStage()
		if stage == nil || stage.Deadline == nil || !now.After(*stage.Deadline) {
			continue
		}

		_, err := e.append(ctx, events.KindTenderReopened, t.ID, events.TenderReopened{
			FailedStage: stage.Number,
			Reason:      reopenReason,
		})
		if err != nil {
			return reopened, fmt.Errorf("failed to reopen tender %s: %w", t.ID, err)
		}
		e.logger.Info("tender reopened", "tender_id", t.ID, "failed_stage", stage.Number)
		reopened = append(reopened, Reopened{TenderID: t.ID, FailedStage: stage.Number})
	}
	return reopened, nil
}
