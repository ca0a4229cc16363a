package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openprocure/tenderchain/pkg/finance"
	"github.com/openprocure/tenderchain/pkg/tender"
)

const maxBodyBytes = 1 << 20 // 1MB limit

// Service exposes the workflow engine over HTTP.
type Service struct {
	engine *tender.Engine
	logger *slog.Logger
}

// NewService creates the HTTP service.
func NewService(engine *tender.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// CreateTenderRequest is the body of POST /tender.
type CreateTenderRequest struct {
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Budget            finance.Amount `json:"budget"`
	StageCount        int            `json:"stage_count"`
	StageDurationDays int            `json:"stage_duration_days"`
}

// HandleCreateTender handles POST /tender.
func (s *Service) HandleCreateTender(w http.ResponseWriter, r *http.Request) {
	var req CreateTenderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.engine.CreateTender(r.Context(), tender.CreateTenderInput{
		Title:             req.Title,
		Description:       req.Description,
		Budget:            req.Budget,
		StageCount:        req.StageCount,
		StageDurationDays: req.StageDurationDays,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// PlaceBidRequest is the body of POST /bid.
type PlaceBidRequest struct {
	TenderID   string         `json:"tender_id"`
	BidderName string         `json:"bidder_name"`
	Amount     finance.Amount `json:"amount"`
}

// HandleBid handles POST /bid.
func (s *Service) HandleBid(w http.ResponseWriter, r *http.Request) {
	var req PlaceBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TenderID == "" {
		WriteBadRequest(w, "Missing required field: tender_id")
		return
	}
	bid, err := s.engine.PlaceBid(r.Context(), req.TenderID, req.BidderName, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// HandleClose handles POST /close/{tenderId}.
func (s *Service) HandleClose(w http.ResponseWriter, r *http.Request) {
	winner, err := s.engine.CloseTender(r.Context(), r.PathValue("tenderId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winner)
}

// SubmitWorkRequest is the body of POST /submit-work/{tenderId}.
type SubmitWorkRequest struct {
	BidderName  string `json:"bidder_name"`
	Stage       int    `json:"stage"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// HandleSubmitWork handles POST /submit-work/{tenderId}.
func (s *Service) HandleSubmitWork(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stage, err := s.engine.SubmitWork(r.Context(), tender.SubmitWorkInput{
		TenderID:    r.PathValue("tenderId"),
		BidderName:  req.BidderName,
		Stage:       req.Stage,
		Description: req.Description,
		Link:        req.Link,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// ApproveStageRequest is the body of POST /approve-stage/{tenderId}.
type ApproveStageRequest struct {
	Stage int `json:"stage"`
}

// HandleApproveStage handles POST /approve-stage/{tenderId}.
func (s *Service) HandleApproveStage(w http.ResponseWriter, r *http.Request) {
	var req ApproveStageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stage, err := s.engine.ApproveStage(r.Context(), r.PathValue("tenderId"), req.Stage)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// HandleCheckDeadlines handles POST /check-deadlines.
func (s *Service) HandleCheckDeadlines(w http.ResponseWriter, r *http.Request) {
	reopened, err := s.engine.CheckDeadlines(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reopened": reopened})
}

// HandleListTenders handles GET /tenders.
func (s *Service) HandleListTenders(w http.ResponseWriter, r *http.Request) {
	tenders, err := s.engine.ListTenders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// HandleGetTender handles GET /tenders/{tenderId}.
func (s *Service) HandleGetTender(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.GetTender(r.Context(), r.PathValue("tenderId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleListBids handles GET /bids/{tenderId}.
func (s *Service) HandleListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := s.engine.ListBids(r.Context(), r.PathValue("tenderId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// HandleChain handles GET /chain (raw audit view).
func (s *Service) HandleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Chain().Entries())
}

// HandleVerifyChain handles GET /chain/verify.
func (s *Service) HandleVerifyChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Chain().Validate())
}

// HandleExportBundle handles GET /chain/export/{tenderId}.
func (s *Service) HandleExportBundle(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.engine.Chain().ExportBundle(r.PathValue("tenderId"))
	if err != nil {
		WriteNotFound(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// HandleHealth handles GET /healthz.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
