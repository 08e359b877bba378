package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzWithoutRedis(t *testing.T) {
	store := setupStore(t)

	h := handleHealth(testLogger(), store.db, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var checks HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&checks); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if checks["sqlite"].Status != "ok" {
		t.Errorf("sqlite status = %q, want ok", checks["sqlite"].Status)
	}
	if _, present := checks["redis"]; present {
		t.Error("redis check reported without redis configured")
	}
}

func TestHealthzClosedDB(t *testing.T) {
	store := setupStore(t)
	store.db.Close()

	h := handleHealth(testLogger(), store.db, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
