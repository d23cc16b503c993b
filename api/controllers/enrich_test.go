package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/DarkSmileee/BlockShelf/internal/enrich"
)

type testEnrichService struct {
	runBatchFn func(ctx context.Context, userID uuid.UUID, req enrich.RunRequest) (enrich.RunResult, error)
}

func (s *testEnrichService) RunBatch(ctx context.Context, userID uuid.UUID, req enrich.RunRequest) (enrich.RunResult, error) {
	if s.runBatchFn != nil {
		return s.runBatchFn(ctx, userID, req)
	}
	return enrich.RunResult{}, nil
}

func TestEnrichBatchPassesCursor(t *testing.T) {
	viewerID := uuid.New()
	svc := &testEnrichService{
		runBatchFn: func(ctx context.Context, uid uuid.UUID, req enrich.RunRequest) (enrich.RunResult, error) {
			if uid != viewerID {
				t.Fatalf("unexpected user %s", uid)
			}
			if req.AfterID != 40 || req.BatchSize != 25 {
				t.Fatalf("unexpected cursor %+v", req)
			}
			return enrich.RunResult{Done: false, LastID: 65, Processed: 25}, nil
		},
	}

	body := `{"after_id":40,"batch_size":25}`
	req := authedRequest(http.MethodPost, "/api/v1/inventory/bulk-update/batch", strings.NewReader(body), viewerID)
	resp := httptest.NewRecorder()
	EnrichBatch(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var result enrich.RunResult
	decodeEnvelope(t, resp, &result)
	if result.LastID != 65 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEnrichBatchRejectsNegativeCursor(t *testing.T) {
	body := `{"after_id":-1}`
	req := authedRequest(http.MethodPost, "/api/v1/inventory/bulk-update/batch", strings.NewReader(body), uuid.New())
	resp := httptest.NewRecorder()
	EnrichBatch(&testEnrichService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
