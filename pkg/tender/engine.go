// Package tender implements the procurement workflow state machine on
// top of the hash-chained ledger. Current tender state is never stored:
// it is derived on demand by folding the tender's event stream, and
// every transition appends exactly one new entry (approving the final
// stage also appends the completion marker).
package tender

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openprocure/tenderchain/pkg/events"
	"github.com/openprocure/tenderchain/pkg/finance"
	"github.com/openprocure/tenderchain/pkg/ledger"
)

// Defaults applied when tender creation omits the stage schedule.
const (
	DefaultStageCount        = 5
	DefaultStageDurationDays = 7
)

// Engine validates requested transitions against derived state and
// appends the corresponding events. One exclusive lock covers each
// derive -> check -> append -> persist sequence, so transitions are
// strictly serialized; the append sequence number is a single global
// counter and the hash chain has no branching.
type Engine struct {
	mu       sync.Mutex
	chain    *ledger.Chain
	selector Selector
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSelector overrides the winner selection policy.
func WithSelector(s Selector) Option {
	return func(e *Engine) { e.selector = s }
}

// WithClock overrides the clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger overrides the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a workflow engine over chain. The default winner
// policy is uniform random selection.
func NewEngine(chain *ledger.Chain, opts ...Option) *Engine {
	e := &Engine{
		chain:    chain,
		selector: RandomSelector{},
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Chain exposes the underlying ledger for audit views.
func (e *Engine) Chain() *ledger.Chain {
	return e.chain
}

func (e *Engine) derive(tenderID string) (Tender, error) {
	t, found, err := foldTender(e.chain.EntriesFor(tenderID))
	if err != nil {
		return Tender{}, err
	}
	if !found {
		return Tender{}, fmt.Errorf("%w: tender %s", ErrNotFound, tenderID)
	}
	return t, nil
}

func (e *Engine) append(ctx context.Context, kind events.Kind, tenderID string, payload any) (ledger.Entry, error) {
	env, err := events.NewEnvelope(kind, tenderID, payload)
	if err != nil {
		return ledger.Entry{}, err
	}
	return e.chain.Append(ctx, env)
}

// CreateTenderInput is the caller input for opening a tender.
type CreateTenderInput struct {
	Title             string
	Description       string
	Budget            finance.Amount
	StageCount        int
	StageDurationDays int
}

// CreateTender opens a new tender. StageCount and StageDurationDays
// default to 5 and 7 when zero.
func (e *Engine) CreateTender(ctx context.Context, in CreateTenderInput) (Tender, error) {
	if in.StageCount == 0 {
		in.StageCount = DefaultStageCount
	}
	if in.StageDurationDays == 0 {
		in.StageDurationDays = DefaultStageDurationDays
	}
	switch {
	case in.Title == "":
		return Tender{}, fmt.Errorf("%w: title is required", ErrValidation)
	case !in.Budget.IsPositive():
		return Tender{}, fmt.Errorf("%w: budget must be positive", ErrValidation)
	case in.StageCount < 1:
		return Tender{}, fmt.Errorf("%w: stage count must be at least 1", ErrValidation)
	case in.StageDurationDays < 1:
		return Tender{}, fmt.Errorf("%w: stage duration must be at least 1 day", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tenderID := uuid.New().String()
	_, err := e.append(ctx, events.KindTenderCreated, tenderID, events.TenderCreated{
		Title:             in.Title,
		Description:       in.Description,
		Budget:            in.Budget,
		StageCount:        in.StageCount,
		StageDurationDays: in.StageDurationDays,
	})
	if err != nil {
		return Tender{}, err
	}
	e.logger.Info("tender created", "tender_id", tenderID, "budget", in.Budget.String(), "stages", in.StageCount)
	return e.derive(tenderID)
}

// PlaceBid records a vendor bid on a tender that is accepting bids.
func (e *Engine) PlaceBid(ctx context.Context, tenderID, bidderName string, amount finance.Amount) (Bid, error) {
	if bidderName == "" {
		return Bid{}, fmt.Errorf("%w: bidder name is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return Bid{}, fmt.Errorf("%w: bid amount must be positive", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.derive(tenderID)
	if err != nil {
		return Bid{}, err
	}
	if !t.AcceptingBids() {
		return Bid{}, fmt.Errorf("%w: tender %s is not accepting bids (status %s)", ErrInvalidState, tenderID, t.Status)
	}

	bid := events.Bid{BidderName: bidderName, Amount: amount, PlacedAt: e.clock().UTC()}
	if _, err := e.append(ctx, events.KindBidPlaced, tenderID, events.BidPlaced{Bid: bid}); err != nil {
		return Bid{}, err
	}
	e.logger.Info("bid placed", "tender_id", tenderID, "bidder", bidderName, "amount", amount.String())
	return Bid{TenderID: tenderID, BidderName: bid.BidderName, Amount: bid.Amount, Timestamp: bid.PlacedAt}, nil
}

// CloseTender ends bidding, selects a winner among the recorded bids
// and fixes every stage's deadline: now + stageNumber * stageDuration.
// The schedule is set once at close time, not a rolling clock.
func (e *Engine) CloseTender(ctx context.Context, tenderID string) (Bid, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.derive(tenderID)
	if err != nil {
		return Bid{}, err
	}
	if !t.AcceptingBids() {
		return Bid{}, fmt.Errorf("%w: tender %s cannot be closed (status %s)", ErrInvalidState, tenderID, t.Status)
	}
	if len(t.Bids) == 0 {
		return Bid{}, fmt.Errorf("%w: tender %s has no bids to choose from", ErrInvalidState, tenderID)
	}

	winner := e.selector.Select(t.Bids)
	now := e.clock().UTC()
	stageDuration := time.Duration(t.StageDurationDays) * 24 * time.Hour
	deadlines := make([]time.Time, t.StageCount)
	for i := range deadlines {
		deadlines[i] = now.Add(time.Duration(i+1) * stageDuration)
	}

	_, err = e.append(ctx, events.KindWinnerSelected, tenderID, events.WinnerSelected{
		Winner:    events.Bid{BidderName: winner.BidderName, Amount: winner.Amount, PlacedAt: winner.Timestamp},
		Deadlines: deadlines,
	})
	if err != nil {
		return Bid{}, err
	}
	e.logger.Info("tender closed", "tender_id", tenderID, "winner", winner.BidderName, "amount", winner.Amount.String())
	return winner, nil
}

// SubmitWorkInput is the caller input for a stage submission.
type SubmitWorkInput struct {
	TenderID    string
	BidderName  string
	Stage       int
	Description string
	Link        string
}

// SubmitWork records the winner's submission for a pending stage of an
// in-progress tender. Only the recorded winner may submit.
func (e *Engine) SubmitWork(ctx context.Context, in SubmitWorkInput) (Stage, error) {
	if in.BidderName == "" {
		return Stage{}, fmt.Errorf("%w: bidder name is required", ErrValidation)
	}
	if in.Stage < 1 {
		return Stage{}, fmt.Errorf("%w: stage number is required", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.derive(in.TenderID)
	if err != nil {
		return Stage{}, err
	}
	if t.Status != StatusInProgress {
		return Stage{}, fmt.Errorf("%w: tender %s is not in progress (status %s)", ErrInvalidState, in.TenderID, t.Status)
	}
	if t.Winner == nil || t.Winner.BidderName != in.BidderName {
		return Stage{}, fmt.Errorf("%w: only the winner can submit work", ErrUnauthorized)
	}
	stage := t.StageByNumber(in.Stage)
	if stage == nil {
		return Stage{}, fmt.Errorf("%w: tender %s has no stage %d", ErrNotFound, in.TenderID, in.Stage)
	}
	if stage.Status != StagePending {
		return Stage{}, fmt.Errorf("%w: stage %d is not pending (status %s)", ErrInvalidState, in.Stage, stage.Status)
	}

	_, err = e.append(ctx, events.KindWorkSubmitted, in.TenderID, events.WorkSubmitted{
		BidderName:  in.BidderName,
		Stage:       in.Stage,
		Description: in.Description,
		Link:        in.Link,
	})
	if err != nil {
		return Stage{}, err
	}
	e.logger.Info("work submitted", "tender_id", in.TenderID, "stage", in.Stage, "bidder", in.BidderName)

	t, err = e.derive(in.TenderID)
	if err != nil {
		return Stage{}, err
	}
	return *t.StageByNumber(in.Stage), nil
}

// ApproveStage approves a submitted stage, releasing its payment to the
// winner. Approving the final stage also closes the tender with a
// completion entry appended after the payment release.
func (e *Engine) ApproveStage(ctx context.Context, tenderID string, stageNumber int) (Stage, error) {
	if stageNumber < 1 {
		return Stage{}, fmt.Errorf("%w: stage number is required", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.derive(tenderID)
	if err != nil {
		return Stage{}, err
	}
	stage := t.StageByNumber(stageNumber)
	if stage == nil {
		return Stage{}, fmt.Errorf("%w: tender %s has no stage %d", ErrNotFound, tenderID, stageNumber)
	}
	if stage.Status != StageSubmitted {
		return Stage{}, fmt.Errorf("%w: stage %d is not submitted (status %s)", ErrInvalidState, stageNumber, stage.Status)
	}
	if t.Winner == nil {
		return Stage{}, fmt.Errorf("%w: tender %s has no recorded winner", ErrInvalidState, tenderID)
	}

	_, err = e.append(ctx, events.KindPaymentReleased, tenderID, events.PaymentReleased{
		Stage:       stageNumber,
		Amount:      stage.Payment,
		Beneficiary: events.Bid{BidderName: t.Winner.BidderName, Amount: t.Winner.Amount, PlacedAt: t.Winner.Timestamp},
	})
	if err != nil {
		return Stage{}, err
	}
	e.logger.Info("stage approved", "tender_id", tenderID, "stage", stageNumber, "payment", stage.Payment.String())

	if stageNumber >= t.StageCount {
		if _, err := e.append(ctx, events.KindTenderCompleted, tenderID, events.TenderCompleted{}); err != nil {
			return Stage{}, err
		}
		e.logger.Info("tender completed", "tender_id", tenderID)
	}

	t, err = e.derive(tenderID)
	if err != nil {
		return Stage{}, err
	}
	return *t.StageByNumber(stageNumber), nil
}

// GetTender returns one derived tender snapshot.
func (e *Engine) GetTender(ctx context.Context, tenderID string) (Tender, error) {
	return e.derive(tenderID)
}

// ListBids returns the derived bids of one tender.
func (e *Engine) ListBids(ctx context.Context, tenderID string) ([]Bid, error) {
	t, err := e.derive(tenderID)
	if err != nil {
		return nil, err
	}
	return t.Bids, nil
}

// ListTenders derives every tender, in creation order.
func (e *Engine) ListTenders(ctx context.Context) ([]Tender, error) {
	return e.listTenders()
}

func (e *Engine) listTenders() ([]Tender, error) {
	var ids []string
	for _, entry := range e.chain.Entries() {
		if entry.Payload.Kind == events.KindTenderCreated {
			ids = append(ids, entry.Payload.TenderID)
		}
	}
	tenders := make([]Tender, 0, len(ids))
	for _, id := range ids {
		t, err := e.derive(id)
		if err != nil {
			return nil, err
		}
		tenders = append(tenders, t)
	}
	return tenders, nil
}
