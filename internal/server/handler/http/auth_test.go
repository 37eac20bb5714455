package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/ClassFeed/internal/models"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	identity *models.Identity
	token    string
	err      error

	gotID, gotSecret string
}

func (f *fakeAuthService) Login(ctx context.Context, id, secret string) (*models.Identity, string, error) {
	f.gotID, f.gotSecret = id, secret
	return f.identity, f.token, f.err
}

func TestAuthHandler_Login(t *testing.T) {
	alice := &models.Identity{ID: "S100", Secret: "pw", Name: "Alice"}

	tests := []struct {
		name           string
		body           string
		service        *fakeAuthService
		expectedCode   int
		expectedSubstr string
	}{
		{
			name:           "invalid JSON",
			body:           `not a json`,
			service:        &fakeAuthService{},
			expectedCode:   http.StatusBadRequest,
			expectedSubstr: "invalid request",
		},
		{
			name:           "unknown id",
			body:           `{"id":"S999","secret":"x"}`,
			service:        &fakeAuthService{err: models.ErrNotFound},
			expectedCode:   http.StatusNotFound,
			expectedSubstr: "Student ID not found",
		},
		{
			name:           "wrong secret",
			body:           `{"id":"S100","secret":"nope"}`,
			service:        &fakeAuthService{err: models.ErrWrongSecret},
			expectedCode:   http.StatusUnauthorized,
			expectedSubstr: "Invalid password",
		},
		{
			name:           "backend unavailable",
			body:           `{"id":"S100","secret":"pw"}`,
			service:        &fakeAuthService{err: fmt.Errorf("dial: %w", models.ErrBackendUnavailable)},
			expectedCode:   http.StatusServiceUnavailable,
			expectedSubstr: "not set up",
		},
		{
			name:           "unexpected error",
			body:           `{"id":"S100","secret":"pw"}`,
			service:        &fakeAuthService{err: errors.New("boom")},
			expectedCode:   http.StatusInternalServerError,
			expectedSubstr: "internal error",
		},
		{
			name:           "success",
			body:           `{"id":"S100","secret":"pw"}`,
			service:        &fakeAuthService{identity: alice, token: "tok"},
			expectedCode:   http.StatusOK,
			expectedSubstr: `"token":"tok"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &AuthHandler{AuthService: tc.service}
			req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			if rec.Code != tc.expectedCode {
				t.Errorf("expected status %d; got %d", tc.expectedCode, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.expectedSubstr) {
				t.Errorf("expected body to contain %q; got %q", tc.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_LoginResponseHidesSecret(t *testing.T) {
	svc := &fakeAuthService{
		identity: &models.Identity{ID: "S100", Secret: "pw", Name: "Alice"},
		token:    "tok",
	}
	h := &AuthHandler{AuthService: svc}
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(`{"id":"S100","secret":"pw"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Identity == nil || resp.Identity.ID != "S100" || resp.Identity.Secret != "" {
		t.Errorf("unexpected identity in response: %+v", resp.Identity)
	}
	if resp.Role != models.RoleStudent {
		t.Errorf("Role = %q; want %q", resp.Role, models.RoleStudent)
	}
	if svc.gotID != "S100" || svc.gotSecret != "pw" {
		t.Errorf("service called with (%q, %q)", svc.gotID, svc.gotSecret)
	}
	if strings.Contains(rec.Body.String(), `"pw"`) {
		t.Errorf("secret leaked in response: %s", rec.Body.String())
	}
}
