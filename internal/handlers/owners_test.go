package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bankcards/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func TestRegisterOwner(t *testing.T) {
	var gotHash string
	owners := stubOwnerStore{
		createFn: func(_ context.Context, name, email, passwordHash string) (store.Owner, error) {
			gotHash = passwordHash
			return store.Owner{ID: 1, Name: name, Email: email}, nil
		},
	}
	h := newTestHandler(stubCardManager{}, stubTransferManager{}, owners, stubAuditLister{})

	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodPost, "/owners", map[string]string{
		"name":     "Alice Smith",
		"email":    "alice@example.com",
		"password": "sekret1",
	}, 0, nil)
	h.RegisterOwner(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rr.Code, rr.Body.String())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(gotHash), []byte("sekret1")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestRegisterOwnerValidation(t *testing.T) {
	h := newTestHandler(stubCardManager{}, stubTransferManager{}, stubOwnerStore{}, stubAuditLister{})
	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"short name", map[string]string{"name": "A", "email": "a@b.co", "password": "sekret1"}},
		{"bad email", map[string]string{"name": "Alice Smith", "email": "nope", "password": "sekret1"}},
		{"short password", map[string]string{"name": "Alice Smith", "email": "a@b.co", "password": "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := newRequest(t, http.MethodPost, "/owners", tc.payload, 0, nil)
			h.RegisterOwner(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestGetOwnerNotFound(t *testing.T) {
	owners := stubOwnerStore{
		getByIDFn: func(context.Context, int64) (store.Owner, error) {
			return store.Owner{}, sql.ErrNoRows
		},
	}
	h := newTestHandler(stubCardManager{}, stubTransferManager{}, owners, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/owners/9", nil, 1, map[string]string{"id": "9"})
	h.GetOwner(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGetOwnerHidesPasswordHash(t *testing.T) {
	owners := stubOwnerStore{
		getByIDFn: func(context.Context, int64) (store.Owner, error) {
			return store.Owner{ID: 9, Name: "Alice Smith", Email: "alice@example.com", PasswordHash: "secret-hash"}, nil
		},
	}
	h := newTestHandler(stubCardManager{}, stubTransferManager{}, owners, stubAuditLister{})
	rr := httptest.NewRecorder()
	req := newRequest(t, http.MethodGet, "/owners/9", nil, 1, map[string]string{"id": "9"})
	h.GetOwner(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret-hash") {
		t.Error("response leaks the password hash")
	}
}
