package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bankcards/internal/services"
	"bankcards/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateTransferHandler(t *testing.T) {
	var gotReq services.ExecuteRequest
	transfers := stubTransferManager{
		executeFn: func(_ context.Context, req services.ExecuteRequest) (store.Transfer, error) {
			gotReq = req
			return store.Transfer{
				ID:         11,
				FromCardID: req.FromCardID,
				ToCardID:   req.ToCardID,
				Amount:     req.Amount,
				Status:     store.TransferStatusCompleted,
			}, nil
		},
	}
	h := newTestHandler(stubCardManager{}, transfers, stubOwnerStore{}, stubAuditLister{})

	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/transfers", map[string]any{
		"from_card_id": 1,
		"to_card_id":   2,
		"amount":       "300.00",
		"description":  "rent",
	}, 5, nil)
	h.CreateTransfer(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rr.Code, rr.Body.String())
	}
	if gotReq.OwnerID != 5 || gotReq.FromCardID != 1 || gotReq.ToCardID != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if !gotReq.Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("amount = %s, want 300", gotReq.Amount)
	}
	if gotReq.Description != "rent" {
		t.Errorf("description = %q", gotReq.Description)
	}
}

func TestCreateTransferHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"insufficient funds", &services.InsufficientFundsError{Available: decimal.NewFromInt(10), Requested: decimal.NewFromInt(100)}, http.StatusBadRequest},
		{"same card", services.ErrSameCardTransfer, http.StatusBadRequest},
		{"access denied", services.ErrAccessDenied, http.StatusForbidden},
		{"card missing", services.ErrCardNotFound, http.StatusNotFound},
		{"recipient unusable", &services.CardNotUsableError{CardID: 2, Side: "recipient", Reason: "card is not active"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transfers := stubTransferManager{
				executeFn: func(context.Context, services.ExecuteRequest) (store.Transfer, error) {
					return store.Transfer{}, tc.serviceErr
				},
			}
			h := newTestHandler(stubCardManager{}, transfers, stubOwnerStore{}, stubAuditLister{})
			rr := httptest.NewRecorder()
			req := newRequest(t, http.MethodPost, "/transfers", map[string]any{
				"from_card_id": 1, "to_card_id": 2, "amount": "10",
			}, 5, nil)
			h.CreateTransfer(rr, req)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
		})
	}
}

func TestCreateTransferHandlerBadAmount(t *testing.T) {
	h := newTestHandler(stubCardManager{}, stubTransferManager{}, stubOwnerStore{}, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/transfers", map[string]any{
		"from_card_id": 1, "to_card_id": 2, "amount": "ten",
	}, 5, nil)
	h.CreateTransfer(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetTransferHandlerNotFound(t *testing.T) {
	transfers := stubTransferManager{
		findByIDFn: func(context.Context, int64, int64) (store.Transfer, error) {
			return store.Transfer{}, services.ErrTransferNotFound
		},
	}
	h := newTestHandler(stubCardManager{}, transfers, stubOwnerStore{}, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/transfers/42", nil, 5, map[string]string{"id": "42"})
	h.GetTransfer(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestTransferStatsHandler(t *testing.T) {
	transfers := stubTransferManager{
		getStatsFn: func(context.Context, int64) (services.TransferStats, error) {
			return services.TransferStats{
				TotalCount:    3,
				TotalAmount:   decimal.NewFromInt(300),
				AverageAmount: decimal.NewFromInt(100),
				MonthCount:    2,
				MonthAmount:   decimal.NewFromInt(200),
			}, nil
		},
	}
	h := newTestHandler(stubCardManager{}, transfers, stubOwnerStore{}, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/transfers/stats", nil, 5, nil)
	h.TransferStats(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["total_amount"] != "300.00" || body["average_amount"] != "100.00" {
		t.Errorf("body = %v", body)
	}
}

func TestListTransfersPaging(t *testing.T) {
	var gotLimit, gotOffset int
	transfers := stubTransferManager{
		getHistoryFn: func(_ context.Context, _ int64, limit, offset int) ([]store.Transfer, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	h := newTestHandler(stubCardManager{}, transfers, stubOwnerStore{}, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/transfers?page=3&limit=10", nil, 5, nil)
	h.ListTransfers(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if gotLimit != 10 || gotOffset != 20 {
		t.Errorf("paging = %d/%d, want 10/20", gotLimit, gotOffset)
	}
}
