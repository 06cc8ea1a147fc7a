package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lotvend/lotvend/internal/domain"
)

type stubGiftService struct {
	submitID  int64
	submitErr error

	pending []domain.GiftRequest

	reviewed  domain.GiftRequest
	reviewErr error

	gotAsset   domain.GiftAsset
	gotAdminID int64
	setErr     error
}

func (s *stubGiftService) SubmitRequest(_ context.Context, _ int64, _, _ string) (int64, error) {
	return s.submitID, s.submitErr
}

func (s *stubGiftService) PendingRequests(_ context.Context) ([]domain.GiftRequest, error) {
	return s.pending, nil
}

func (s *stubGiftService) Review(_ context.Context, _ int64, _ bool, adminID int64) (domain.GiftRequest, error) {
	s.gotAdminID = adminID
	return s.reviewed, s.reviewErr
}

func (s *stubGiftService) SetGift(_ context.Context, asset domain.GiftAsset) error {
	s.gotAsset = asset
	return s.setErr
}

func TestHandleSubmitGiftRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{
			name:           "accepted",
			body:           `{"buyer_id":100,"username":"buyer","links":"https://a\nhttps://b"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "too few links",
			body:           `{"buyer_id":100,"links":"https://a"}`,
			serviceErr:     domain.ErrNotEnoughLinks,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing buyer",
			body:           `{"links":"https://a"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubGiftService{submitID: 5, submitErr: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/gifts/requests", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleSubmitGiftRequest(svc).ServeHTTP(rec, req)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestHandleReviewGiftRequest(t *testing.T) {
	t.Parallel()

	t.Run("approve records the reviewer", func(t *testing.T) {
		t.Parallel()
		svc := &stubGiftService{reviewed: domain.GiftRequest{ID: 5, Status: domain.GiftRequestApproved}}
		req := httptest.NewRequest(http.MethodPost, "/admin/gifts/requests/5/review", bytes.NewBufferString(`{"approve":true}`))
		req = req.WithContext(withCallerID(req.Context(), 900))
		rec := httptest.NewRecorder()

		HandleReviewGiftRequest(svc).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.gotAdminID != 900 {
			t.Errorf("admin id = %d, want 900", svc.gotAdminID)
		}
		if !strings.Contains(rec.Body.String(), `"status":"approved"`) {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("already processed", func(t *testing.T) {
		t.Parallel()
		svc := &stubGiftService{reviewErr: domain.ErrGiftRequestProcessed}
		req := httptest.NewRequest(http.MethodPost, "/admin/gifts/requests/5/review", bytes.NewBufferString(`{"approve":false}`))
		rec := httptest.NewRecorder()

		HandleReviewGiftRequest(svc).ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("bad path", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/admin/gifts/requests/abc/review", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		HandleReviewGiftRequest(&stubGiftService{}).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleSetGift(t *testing.T) {
	t.Parallel()

	t.Run("text gift", func(t *testing.T) {
		t.Parallel()
		svc := &stubGiftService{}
		req := httptest.NewRequest(http.MethodPut, "/admin/gift", bytes.NewBufferString(`{"kind":"text","body":"enjoy!"}`))
		rec := httptest.NewRecorder()

		HandleSetGift(svc).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if svc.gotAsset.Kind != domain.GiftText || svc.gotAsset.Body != "enjoy!" {
			t.Errorf("asset = %+v", svc.gotAsset)
		}
	})

	t.Run("media gift needs a file reference", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPut, "/admin/gift", bytes.NewBufferString(`{"kind":"photo","body":"caption"}`))
		rec := httptest.NewRecorder()
		HandleSetGift(&stubGiftService{}).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPut, "/admin/gift", bytes.NewBufferString(`{"kind":"sticker"}`))
		rec := httptest.NewRecorder()
		HandleSetGift(&stubGiftService{}).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
