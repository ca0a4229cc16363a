// Package events defines the closed set of event kinds the procurement
// workflow may append to the ledger, and their payload shapes. The
// ledger treats payloads as opaque; the workflow engine produces and
// folds them.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openprocure/tenderchain/pkg/finance"
)

// Kind identifies the type of a ledger event.
type Kind string

const (
	KindGenesis         Kind = "genesis"
	KindTenderCreated   Kind = "tender_created"
	KindBidPlaced       Kind = "bid_placed"
	KindWinnerSelected  Kind = "winner_selected"
	KindWorkSubmitted   Kind = "work_submitted"
	KindPaymentReleased Kind = "payment_released"
	KindTenderCompleted Kind = "tender_completed"
	KindTenderReopened  Kind = "tender_reopened"
)

// Envelope is the tagged payload carried by every ledger entry.
// TenderID is empty only for the genesis event. Unknown fields inside
// Data are ignored on decode for forward compatibility.
type Envelope struct {
	Kind     Kind            `json:"kind"`
	TenderID string          `json:"tender_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope serializes payload and wraps it with its kind tag.
func NewEnvelope(kind Kind, tenderID string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Kind: kind, TenderID: tenderID}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to serialize %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, TenderID: tenderID, Data: raw}, nil
}

// Decode unmarshals the envelope's payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// Genesis is the payload of the ledger's first entry.
type Genesis struct {
	Message string `json:"message"`
}

// Bid is a recorded offer on a tender.
type Bid struct {
	BidderName string         `json:"bidder_name"`
	Amount     finance.Amount `json:"amount"`
	PlacedAt   time.Time      `json:"placed_at"`
}

// TenderCreated opens a new tender.
type TenderCreated struct {
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	Budget            finance.Amount `json:"budget"`
	StageCount        int            `json:"stage_count"`
	StageDurationDays int            `json:"stage_duration_days"`
}

// BidPlaced records one vendor bid.
type BidPlaced struct {
	Bid Bid `json:"bid"`
}

// WinnerSelected closes bidding. Stage deadlines are fixed at close
// time and recorded here so that replay is deterministic.
type WinnerSelected struct {
	Winner    Bid         `json:"winner"`
	Deadlines []time.Time `json:"deadlines"`
}

// WorkSubmitted records the winner's submission for one stage.
type WorkSubmitted struct {
	BidderName  string `json:"bidder_name"`
	Stage       int    `json:"stage"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link,omitempty"`
}

// PaymentReleased records the intent to pay out one approved stage.
// It is a recorded intent, not an external transfer.
type PaymentReleased struct {
	Stage       int            `json:"stage"`
	Amount      finance.Amount `json:"amount"`
	Beneficiary Bid            `json:"beneficiary"`
}

// TenderCompleted marks the final stage approved; the tender is closed.
type TenderCompleted struct{}

// TenderReopened records a missed deadline; bidding is open again.
type TenderReopened struct {
	FailedStage int    `json:"failed_stage"`
	Reason      string `json:"reason"`
}
