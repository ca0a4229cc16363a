package tender

import (
	"time"

	"github.com/openprocure/tenderchain/pkg/finance"
)

// Status is the lifecycle state of a tender. Open and reopened both
// accept bids but are distinguished for audit purposes; closed is
// terminal.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
	StatusReopened   Status = "reopened"
)

// StageStatus is the state of one work stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageSubmitted StageStatus = "submitted"
	StageApproved  StageStatus = "approved"
	StageFailed    StageStatus = "failed"
)

// Bid is a recorded vendor offer.
type Bid struct {
	TenderID   string         `json:"tender_id"`
	BidderName string         `json:"bidder_name"`
	Amount     finance.Amount `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Stage is one unit of work with its own payment, deadline and
// approval state. Deadline is nil until the tender moves in_progress.
type Stage struct {
	Number      int            `json:"stage"`
	Status      StageStatus    `json:"status"`
	Payment     finance.Amount `json:"payment"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	SubmittedBy string         `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty"`
}

// Tender is a derived snapshot: the fold of all ledger entries that
// reference its ID, applied in sequence order. It is never stored as a
// mutable record.
type Tender struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	Budget            finance.Amount `json:"budget"`
	StageCount        int            `json:"stage_count"`
	StageDurationDays int            `json:"stage_duration_days"`
	Stages            []Stage        `json:"stages"`
	Bids              []Bid          `json:"bids"`
	Winner            *Bid           `json:"winner,omitempty"`
	CurrentStage      int            `json:"current_stage"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
}

// AcceptingBids reports whether the tender can take new bids.
func (t *Tender) AcceptingBids() bool {
	return t.Status == StatusOpen || t.Status == StatusReopened
}

// StageByNumber returns the stage with the given 1-based number.
func (t *Tender) StageByNumber(n int) *Stage {
	if n < 1 || n > len(t.Stages) {
		return nil
	}
	return &t.Stages[n-1]
}

// ActiveStage returns the first pending or submitted stage, the one
// whose deadline governs the deadline sweep. There is exactly one such
// stage at a time under the fixed-schedule model; nil if all stages are
// settled.
func (t *Tender) ActiveStage() *Stage {
	for i := range t.Stages {
		if t.Stages[i].Status == StagePending || t.Stages[i].Status == StageSubmitted {
			return &t.Stages[i]
		}
	}
	return nil
}
