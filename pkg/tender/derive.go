package tender

import (
	"fmt"
	"iter"

	"github.com/openprocure/tenderchain/pkg/events"
	"github.com/openprocure/tenderchain/pkg/finance"
	"github.com/openprocure/tenderchain/pkg/ledger"
)

// foldTender replays a tender's entries in append order and returns the
// derived snapshot. The fold is pure: the same entries always produce
// an identical snapshot. found is false when no tender_created entry
// was seen.
func foldTender(entries iter.Seq[ledger.Entry]) (Tender, bool, error) {
	var t Tender
	found := false

	for entry := range entries {
		env := entry.Payload
		switch env.Kind {
		case events.KindTenderCreated:
			var p events.TenderCreated
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			payments := finance.SplitEven(p.Budget, p.StageCount)
			stages := make([]Stage, p.StageCount)
			for i := range stages {
				stages[i] = Stage{Number: i + 1, Status: StagePending, Payment: payments[i]}
			}
			t = Tender{
				ID:                env.TenderID,
				Title:             p.Title,
				Description:       p.Description,
				Budget:            p.Budget,
				StageCount:        p.StageCount,
				StageDurationDays: p.StageDurationDays,
				Stages:            stages,
				Bids:              []Bid{},
				Status:            StatusOpen,
				CreatedAt:         entry.CreatedAt,
			}
			found = true

		case events.KindBidPlaced:
			var p events.BidPlaced
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			t.Bids = append(t.Bids, Bid{
				TenderID:   env.TenderID,
				BidderName: p.Bid.BidderName,
				Amount:     p.Bid.Amount,
				Timestamp:  p.Bid.PlacedAt,
			})

		case events.KindWinnerSelected:
			var p events.WinnerSelected
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			t.Winner = &Bid{
				TenderID:   env.TenderID,
				BidderName: p.Winner.BidderName,
				Amount:     p.Winner.Amount,
				Timestamp:  p.Winner.PlacedAt,
			}
			t.Status = StatusInProgress
			t.CurrentStage = 1
			for i := range t.Stages {
				if i < len(p.Deadlines) {
					d := p.Deadlines[i]
					t.Stages[i].Deadline = &d
				}
				// A reopened tender keeps its approved stages; any
				// stage left failed or submitted by the previous
				// winner goes back to pending for the new one.
				if t.Stages[i].Status != StageApproved {
					t.Stages[i].Status = StagePending
					t.Stages[i].SubmittedBy = ""
					t.Stages[i].SubmittedAt = nil
				}
			}

		case events.KindWorkSubmitted:
			var p events.WorkSubmitted
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			if stage := t.StageByNumber(p.Stage); stage != nil {
				stage.Status = StageSubmitted
				stage.SubmittedBy = p.BidderName
				at := entry.CreatedAt
				stage.SubmittedAt = &at
			}

		case events.KindPaymentReleased:
			var p events.PaymentReleased
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			if stage := t.StageByNumber(p.Stage); stage != nil {
				stage.Status = StageApproved
				at := entry.CreatedAt
				stage.ApprovedAt = &at
			}
			if p.Stage < t.StageCount {
				t.CurrentStage = p.Stage + 1
			} else {
				t.CurrentStage = t.StageCount
			}

		case events.KindTenderCompleted:
			t.Status = StatusClosed

		case events.KindTenderReopened:
			var p events.TenderReopened
			if err := env.Decode(&p); err != nil {
				return Tender{}, false, err
			}
			t.Status = StatusReopened
			t.Winner = nil
			t.CurrentStage = p.FailedStage
			if stage := t.StageByNumber(p.FailedStage); stage != nil {
				stage.Status = StageFailed
			}

		case events.KindGenesis:
			// Genesis carries no tender state.

		default:
			return Tender{}, false, fmt.Errorf("unknown event kind %q at sequence %d", env.Kind, entry.Sequence)
		}
	}
	return t, found, nil
}
