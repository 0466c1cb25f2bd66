package sybil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(testEngine(store))
	handler.RegisterRoutes(router.Group("/v1"))
	return router
}

func TestDetectHandler(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	body := `{
		"userId": "usr_1",
		"email": "test3@mailinator.com",
		"ipAddress": "203.0.113.50",
		"deviceAttributes": {"userAgent": "Mozilla/5.0"}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/sybil/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if result.RiskScore != 45 {
		t.Errorf("expected score 45, got %d", result.RiskScore)
	}
}

func TestDetectHandlerInvalidEmail(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	body := `{"userId": "usr_1", "email": "not-an-email", "ipAddress": "203.0.113.50"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/sybil/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDetectHandlerForwardedHeaders(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	// The onboarding service relays the signup request's own headers; the
	// proxy heuristic runs against those, not this API call's headers.
	body := `{
		"userId": "usr_proxied",
		"email": "henry@example.com",
		"ipAddress": "203.0.113.51",
		"requestHeaders": {"Via": "1.1 anonproxy"}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/sybil/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	rows, err := store.IPRecordsByAddress(req.Context(), "203.0.113.51", "usr_other")
	if err != nil {
		t.Fatalf("ip query: %v", err)
	}
	if len(rows) != 1 || !rows[0].IsProxy {
		t.Errorf("expected stored ip record flagged as proxy, got %+v", rows)
	}
}

func TestListDetectionsHandler(t *testing.T) {
	store := NewMemoryStore()
	router := newTestRouter(store)

	// Run one detection, then read it back through the feed.
	body := `{"userId": "usr_feed", "email": "iris@example.com", "ipAddress": "203.0.113.52"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/sybil/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("detect: %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/users/usr_feed/detections", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Detections []*Detection `json:"detections"`
		Count      int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.Count != 1 || len(resp.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %+v", resp)
	}
	if resp.Detections[0].UserID != "usr_feed" {
		t.Errorf("wrong user: %s", resp.Detections[0].UserID)
	}
}
