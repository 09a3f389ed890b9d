package analyzer

import (
	"sync"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// history is a bounded most-recent-N ring of analyses for one symbol.
// It serves short-window trend queries only; it is not Pattern Memory.
type history struct {
	mu  sync.RWMutex
	buf []*models.OrderbookAnalysis
	cap int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]*models.OrderbookAnalysis, 0, capacity), cap: capacity}
}

func (h *history) append(a *models.OrderbookAnalysis) {
	h.mu.Lock()
	if len(h.buf) == h.cap {
		copy(h.buf, h.buf[1:])
		h.buf[len(h.buf)-1] = a
	} else {
		h.buf = append(h.buf, a)
	}
	h.mu.Unlock()
}

// recent returns up to n analyses, oldest first.
func (h *history) recent(n int) []*models.OrderbookAnalysis {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.buf) {
		n = len(h.buf)
	}
	out := make([]*models.OrderbookAnalysis, n)
	copy(out, h.buf[len(h.buf)-n:])
	return out
}
