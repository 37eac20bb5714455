package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atinyakov/ClassFeed/internal/auth"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type fakeParser struct{}

func (fakeParser) ParseToken(token string) (*auth.Claims, error) {
	if token == "good" {
		return &auth.Claims{StudentID: "S100"}, nil
	}
	return nil, errors.New("bad token")
}

func TestTokenAuth_NoToken(t *testing.T) {
	dummy := &dummyHandler{}
	h := TokenAuth(fakeParser{})(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feed/stream", nil)
	h.ServeHTTP(rec, req)

	if dummy.called {
		t.Error("did not expect next handler to be called without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}
}

func TestTokenAuth_InvalidToken(t *testing.T) {
	dummy := &dummyHandler{}
	h := TokenAuth(fakeParser{})(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feed/stream", nil)
	req.Header.Set("Authorization", "Bearer forged")
	h.ServeHTTP(rec, req)

	if dummy.called {
		t.Error("did not expect next handler to be called with a bad token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
	}
}

func TestTokenAuth_ValidHeader(t *testing.T) {
	dummy := &dummyHandler{}
	h := TokenAuth(fakeParser{})(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feed/stream", nil)
	req.Header.Set("Authorization", "bearer good")
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if got := GetUserIDFromContext(dummy.ctx); got != "S100" {
		t.Errorf("GetUserIDFromContext = %q; want S100", got)
	}
}

func TestTokenAuth_StoresExpiry(t *testing.T) {
	issuer := auth.NewIssuer("secret", "classfeed", time.Hour)
	token, err := issuer.NewAccessToken("S100", "student")
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	dummy := &dummyHandler{}
	h := TokenAuth(issuer)(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feed/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	exp, ok := GetTokenExpiryFromContext(dummy.ctx)
	if !ok {
		t.Fatal("expected token expiry in context")
	}
	if left := time.Until(exp); left <= 58*time.Minute || left > time.Hour {
		t.Errorf("expiry in %v; want about one hour", left)
	}
}

func TestGetTokenExpiryFromContext_Missing(t *testing.T) {
	dummy := &dummyHandler{}
	h := TokenAuth(fakeParser{})(dummy)
	req := httptest.NewRequest("GET", "/api/feed/stream", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := GetTokenExpiryFromContext(dummy.ctx); ok {
		t.Error("expected no expiry for claims without exp")
	}
}

func TestTokenAuth_QueryFallback(t *testing.T) {
	dummy := &dummyHandler{}
	h := TokenAuth(fakeParser{})(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/feed/stream?access_token=good", nil)
	h.ServeHTTP(rec, req)

	if !dummy.called || GetUserIDFromContext(dummy.ctx) != "S100" {
		t.Errorf("query token not accepted (called=%v)", dummy.called)
	}
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	if got := GetUserIDFromContext(context.Background()); got != "" {
		t.Errorf("GetUserIDFromContext = %q; want empty", got)
	}
	if got := GetUserIDFromContext(WithUserID(context.Background(), "S7")); got != "S7" {
		t.Errorf("GetUserIDFromContext = %q; want S7", got)
	}
}

func TestWithRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/login", nil))

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("/api/login")) || !bytes.Contains([]byte(out), []byte("418")) {
		t.Errorf("unexpected log output: %s", out)
	}
}
