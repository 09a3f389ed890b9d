package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/service/ratelimit"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	xhttp "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/http"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/util"
)

// PatternsHandler exposes Pattern Memory and the latest predictions to
// external trading collaborators over HTTP.
type PatternsHandler struct {
	store  domrepo.PatternStore
	logger *logger.Logger
	rl     *ratelimit.Limiter

	mu     sync.RWMutex
	latest map[string]*models.BehaviorPrediction
}

func NewPatternsHandler(log *logger.Logger, store domrepo.PatternStore) *PatternsHandler {
	return &PatternsHandler{
		store:  store,
		logger: log.With("api"),
		rl:     ratelimit.New(),
		latest: make(map[string]*models.BehaviorPrediction),
	}
}

// Watch subscribes the handler to the prediction topic so GET
// /api/predictions can serve the latest prediction per symbol.
func (h *PatternsHandler) Watch(b *bus.Bus) {
	b.Subscribe(bus.TopicBehaviorPredicted, func(_ context.Context, e bus.Envelope) {
		pred, ok := e.Payload.(*models.BehaviorPrediction)
		if !ok {
			return
		}
		h.mu.Lock()
		h.latest[pred.Symbol] = pred
		h.mu.Unlock()
	})
}

func (h *PatternsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/patterns", h.Patterns)
	g.GET("/paths", h.Paths)
	g.GET("/predictions", h.Predictions)
}

// PatternsRequest filters the pattern listing. From and To accept
// RFC3339 or unix seconds and bound LastUpdated; either may be empty.
type PatternsRequest struct {
	Symbol string `query:"symbol"`
	Type   string `query:"type" default:"whale" validate:"oneof=whale whale_shape"`
	From   string `query:"from"`
	To     string `query:"to"`
}

func (h *PatternsHandler) Patterns(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":patterns", 10, 5) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limited"})
	}
	req := &PatternsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	ptype := models.PatternType(req.Type)

	var (
		patterns []*models.LearnedPattern
		err      error
	)
	if req.Symbol != "" {
		patterns, err = h.store.BySymbol(ctx, req.Symbol, ptype)
	} else {
		patterns, err = h.store.ByType(ctx, ptype)
	}
	if err != nil {
		h.logger.Error("pattern listing failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("pattern listing failed").WithError(err))
	}

	from := util.ParseTimeDefault(req.From, time.Time{})
	to := util.ParseTimeDefault(req.To, time.Time{})
	return xhttp.SuccessResponse(c, filterUpdatedBetween(patterns, from, to))
}

// filterUpdatedBetween keeps patterns whose LastUpdated falls within
// [from, to]; a zero bound is open.
func filterUpdatedBetween(patterns []*models.LearnedPattern, from, to time.Time) []*models.LearnedPattern {
	if from.IsZero() && to.IsZero() {
		return patterns
	}
	out := make([]*models.LearnedPattern, 0, len(patterns))
	for _, p := range patterns {
		if !from.IsZero() && p.LastUpdated.Before(from) {
			continue
		}
		if !to.IsZero() && p.LastUpdated.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (h *PatternsHandler) Paths(c echo.Context) error {
	paths, err := h.store.Paths(c.Request().Context())
	if err != nil {
		h.logger.Error("path annotations failed", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("path annotations failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, paths)
}

// PredictionsRequest selects one symbol, or all when empty.
type PredictionsRequest struct {
	Symbol string `query:"symbol"`
}

func (h *PatternsHandler) Predictions(c echo.Context) error {
	req := &PredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if req.Symbol != "" {
		pred, ok := h.latest[req.Symbol]
		if !ok {
			return xhttp.NotFoundResponse(c, "no prediction for symbol yet")
		}
		return xhttp.SuccessResponse(c, pred)
	}

	out := make([]*models.BehaviorPrediction, 0, len(h.latest))
	for _, pred := range h.latest {
		out = append(out, pred)
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *PatternsHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

var _ xhttp.Handler = (*PatternsHandler)(nil)
