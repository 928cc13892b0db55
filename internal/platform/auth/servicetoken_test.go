package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func guardedHandler(guard *ServiceTokenGuard) http.Handler {
	return guard.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestServiceTokenGuardAcceptsMatchingToken(t *testing.T) {
	handler := guardedHandler(NewServiceTokenGuard("sekrit"))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set("X-Service-Token", "sekrit")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestServiceTokenGuardRejectsMissingToken(t *testing.T) {
	handler := guardedHandler(NewServiceTokenGuard("sekrit"))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestServiceTokenGuardRejectsWrongToken(t *testing.T) {
	handler := guardedHandler(NewServiceTokenGuard("sekrit"))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set("X-Service-Token", "guess")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestServiceTokenGuardDisabledWithoutToken(t *testing.T) {
	handler := guardedHandler(NewServiceTokenGuard(""))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when guard disabled, got %d", rr.Code)
	}
}

func TestServiceTokenGuardCustomHeader(t *testing.T) {
	handler := guardedHandler(NewServiceTokenGuard("sekrit", WithTokenHeader("X-Gateway-Token")))

	req := httptest.NewRequest(http.MethodPost, "/callback", nil)
	req.Header.Set("X-Gateway-Token", "sekrit")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
