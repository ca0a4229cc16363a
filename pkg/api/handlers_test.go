package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprocure/tenderchain/pkg/api"
	"github.com/openprocure/tenderchain/pkg/ledger"
	"github.com/openprocure/tenderchain/pkg/tender"
)

func newTestServer(t *testing.T, cfg api.RouteConfig) *httptest.Server {
	t.Helper()
	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "chain.json"))
	require.NoError(t, err)
	chain, err := ledger.Open(context.Background(), store)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := tender.NewEngine(chain, tender.WithLogger(logger), tender.WithSelector(tender.LowestBidSelector{}))
	server := httptest.NewServer(api.NewService(engine, logger).Routes(cfg))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

func createTenderHTTP(t *testing.T, server *httptest.Server) map[string]any {
	t.Helper()
	resp, raw := doJSON(t, http.MethodPost, server.URL+"/tender", map[string]any{
		"title":       "Bridge repair",
		"budget":      1000,
		"stage_count": 2,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var created map[string]any
	require.NoError(t, json.Unmarshal(raw, &created))
	return created
}

func TestLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})

	created := createTenderHTTP(t, server)
	tenderID, _ := created["id"].(string)
	require.NotEmpty(t, tenderID)
	assert.Equal(t, "open", created["status"])

	resp, raw := doJSON(t, http.MethodPost, server.URL+"/bid", map[string]any{
		"tender_id":   tenderID,
		"bidder_name": "acme",
		"amount":      750,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, http.MethodPost, server.URL+"/close/"+tenderID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var winner map[string]any
	require.NoError(t, json.Unmarshal(raw, &winner))
	assert.Equal(t, "acme", winner["bidder_name"])

	for stage := 1; stage <= 2; stage++ {
		resp, raw = doJSON(t, http.MethodPost, server.URL+"/submit-work/"+tenderID, map[string]any{
			"bidder_name": "acme",
			"stage":       stage,
			"link":        "https://example.com/report",
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		resp, raw = doJSON(t, http.MethodPost, server.URL+"/approve-stage/"+tenderID, map[string]any{
			"stage": stage,
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodGet, server.URL+"/tenders/"+tenderID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Equal(t, "closed", snapshot["status"])

	resp, raw = doJSON(t, http.MethodGet, server.URL+"/chain/verify", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verdict ledger.ValidationResult
	require.NoError(t, json.Unmarshal(raw, &verdict))
	assert.True(t, verdict.Valid)
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})
	created := createTenderHTTP(t, server)
	tenderID := created["id"].(string)

	// Validation -> 400.
	resp, raw := doJSON(t, http.MethodPost, server.URL+"/tender", map[string]any{"title": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	// Unknown tender -> 404.
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/tenders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Closing with no bids -> 409.
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/close/"+tenderID, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Submission by a non-winner -> 403.
	_, _ = doJSON(t, http.MethodPost, server.URL+"/bid", map[string]any{
		"tender_id": tenderID, "bidder_name": "acme", "amount": 500,
	}, nil)
	_, _ = doJSON(t, http.MethodPost, server.URL+"/close/"+tenderID, nil, nil)
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/submit-work/"+tenderID, map[string]any{
		"bidder_name": "impostor", "stage": 1,
	}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Malformed body -> 400.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/bid", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	malformed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = malformed.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, malformed.StatusCode)
}

func TestProblemDetailShape(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/tenders/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem api.ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.NotEmpty(t, problem.Title)
	assert.Contains(t, problem.Type, "errors/404")
}

func TestGovernmentRoutesRequireToken(t *testing.T) {
	const secret = "test-secret"
	server := newTestServer(t, api.RouteConfig{AuthSecret: secret})

	body := map[string]any{"title": "Road", "budget": 100}

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/tender", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	vendorToken, err := api.IssueToken(secret, "vendor", time.Hour)
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/tender", body, map[string]string{
		"Authorization": "Bearer " + vendorToken,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	govToken, err := api.IssueToken(secret, api.RoleGovernment, time.Hour)
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/tender", body, map[string]string{
		"Authorization": "Bearer " + govToken,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Bidding stays open to vendors without credentials.
	var created map[string]any
	resp, raw := doJSON(t, http.MethodGet, server.URL+"/tenders", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tenders []map[string]any
	require.NoError(t, json.Unmarshal(raw, &tenders))
	require.Len(t, tenders, 1)
	created = tenders[0]
	resp, _ = doJSON(t, http.MethodPost, server.URL+"/bid", map[string]any{
		"tender_id": created["id"], "bidder_name": "acme", "amount": 50,
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCheckDeadlinesEndpoint(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})

	resp, raw := doJSON(t, http.MethodPost, server.URL+"/check-deadlines", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Reopened []tender.Reopened `json:"reopened"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Empty(t, out.Reopened)
}

func TestExportBundleEndpoint(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})
	created := createTenderHTTP(t, server)
	tenderID := created["id"].(string)

	resp, raw := doJSON(t, http.MethodGet, server.URL+"/chain/export/"+tenderID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bundle ledger.AuditBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, tenderID, bundle.TenderID)
	require.NoError(t, ledger.VerifyBundle(&bundle))

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/chain/export/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	server := newTestServer(t, api.RouteConfig{})
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/healthz", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRateLimitExhaustion(t *testing.T) {
	limiter := api.NewLocalLimiter(1, 2)
	server := newTestServer(t, api.RouteConfig{Limiter: limiter})

	limited := false
	for i := 0; i < 10; i++ {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/healthz", nil, nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst of requests should hit the limiter")
}
