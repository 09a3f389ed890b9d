package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

type stubStore struct {
	bySymbol []*models.LearnedPattern
	byType   []*models.LearnedPattern
	paths    []models.PathAnnotation
	err      error

	lastSymbol string
	lastType   models.PatternType
}

func (s *stubStore) Upsert(context.Context, *models.LearnedPattern) error { return nil }

func (s *stubStore) Get(context.Context, string) (*models.LearnedPattern, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) RecordOutcome(context.Context, string, float64, bool) (*models.LearnedPattern, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) BySymbol(_ context.Context, symbol string, ptype models.PatternType) ([]*models.LearnedPattern, error) {
	s.lastSymbol, s.lastType = symbol, ptype
	return s.bySymbol, s.err
}

func (s *stubStore) ByType(_ context.Context, ptype models.PatternType) ([]*models.LearnedPattern, error) {
	s.lastType = ptype
	return s.byType, s.err
}

func (s *stubStore) Paths(context.Context) ([]models.PathAnnotation, error) {
	return s.paths, s.err
}

func (s *stubStore) Flush(context.Context) error { return nil }
func (s *stubStore) Close() error                { return nil }

func serve(h *PatternsHandler, target string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// envelopeStatus extracts the status carried inside the response body.
// Errors are reported with HTTP 200 and the real code in the envelope.
func envelopeStatus(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return body.Status
}

func TestPatternsBySymbol(t *testing.T) {
	store := &stubStore{bySymbol: []*models.LearnedPattern{
		{ID: "p1", Symbol: "BTCUSDT", Type: models.PatternWhale},
	}}
	h := NewPatternsHandler(logger.Nop(), store)

	rec := serve(h, "/api/patterns?symbol=BTCUSDT")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastSymbol != "BTCUSDT" {
		t.Fatalf("queried symbol = %q", store.lastSymbol)
	}
	if store.lastType != models.PatternWhale {
		t.Fatalf("queried type = %q, want default whale", store.lastType)
	}

	var body struct {
		Data []*models.LearnedPattern `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "p1" {
		t.Fatalf("unexpected payload: %+v", body.Data)
	}
}

func TestPatternsRejectsUnknownType(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{})

	rec := serve(h, "/api/patterns?type=bogus")
	if got := envelopeStatus(t, rec); got != http.StatusBadRequest {
		t.Fatalf("envelope status = %d, want 400", got)
	}
}

func TestPatternsStoreError(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{err: errors.New("boom")})

	rec := serve(h, "/api/patterns")
	if got := envelopeStatus(t, rec); got != http.StatusInternalServerError {
		t.Fatalf("envelope status = %d, want 500", got)
	}
}

func TestPredictionsServesLatestFromBus(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{})

	h.mu.Lock()
	h.latest["BTCUSDT"] = &models.BehaviorPrediction{
		Symbol: "BTCUSDT", Action: models.ActionBuy, Confidence: 0.72,
	}
	h.mu.Unlock()

	rec := serve(h, "/api/predictions?symbol=BTCUSDT")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data *models.BehaviorPrediction `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Action != models.ActionBuy {
		t.Fatalf("action = %q, want buy", body.Data.Action)
	}
}

func TestPredictionsUnknownSymbol(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{})

	rec := serve(h, "/api/predictions?symbol=NOPEUSDT")
	if got := envelopeStatus(t, rec); got != http.StatusNotFound {
		t.Fatalf("envelope status = %d, want 404", got)
	}
}

func TestPatternsRateLimited(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{})

	limited := false
	for i := 0; i < 20; i++ {
		if rec := serve(h, "/api/patterns"); rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("burst of 20 requests was never rate limited")
	}
}

func TestHealth(t *testing.T) {
	h := NewPatternsHandler(logger.Nop(), &stubStore{})

	rec := serve(h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPatternsTimeWindowFilter(t *testing.T) {
	old := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	fresh := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	store := &stubStore{byType: []*models.LearnedPattern{
		{ID: "old", Symbol: "BTCUSDT", Type: models.PatternWhale, LastUpdated: old},
		{ID: "fresh", Symbol: "BTCUSDT", Type: models.PatternWhale, LastUpdated: fresh},
	}}
	h := NewPatternsHandler(logger.Nop(), store)

	rec := serve(h, "/api/patterns?from=2026-08-10T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data []*models.LearnedPattern `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].ID != "fresh" {
		t.Fatalf("from filter kept %+v, want only fresh", body.Data)
	}

	// unix-seconds bound, upper side
	rec = serve(h, "/api/patterns?to=1754697600") // 2025-08-09, before both
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 0 {
		t.Fatalf("to filter kept %+v, want none", body.Data)
	}
}
