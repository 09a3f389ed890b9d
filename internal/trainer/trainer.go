package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// ErrNotTrained reports that a training run was skipped for lack of
// samples. Callers fall back to the heuristics; nothing raises.
var ErrNotTrained = errors.New("trainer: insufficient samples")

// Model head names; each is persisted as its own opaque artifact.
const (
	HeadSubtype = "subtype"
	HeadOutcome = "outcome"
	HeadProfit  = "profit"
)

// centroidModel is a nearest-centroid classifier over standardized
// feature vectors. It doubles as the win/loss head with the classes
// "win" and "loss".
type centroidModel struct {
	Means     []float64            `json:"means"`
	Stds      []float64            `json:"stds"`
	Centroids map[string][]float64 `json:"centroids"`
	Samples   int                  `json:"samples"`
}

// profitModel predicts expected profit as the per-subtype mean with a
// global fallback.
type profitModel struct {
	BySubtype map[string]float64 `json:"by_subtype"`
	Global    float64            `json:"global"`
	Samples   int                `json:"samples"`
}

// Trainer is the offline refinement loop: it extracts labeled feature
// vectors from Pattern Memory, fits the three heads and persists them
// as artifacts that the online strategies pick up on their next call.
type Trainer struct {
	store      domrepo.PatternStore
	log        *logger.Logger
	modelDir   string
	minSamples int

	mu      sync.RWMutex
	subtype *centroidModel
	outcome *centroidModel
	profit  *profitModel
}

func New(store domrepo.PatternStore, log *logger.Logger, modelDir string, minSamples int) *Trainer {
	if minSamples <= 0 {
		minSamples = 50
	}
	t := &Trainer{
		store:      store,
		log:        log.With("trainer"),
		modelDir:   modelDir,
		minSamples: minSamples,
	}
	t.loadArtifacts()
	return t
}

// Train runs one batch training pass. It never blocks the online
// pipeline; callers run it from a background goroutine.
func (t *Trainer) Train(ctx context.Context) error {
	samples, err := ExtractSamples(ctx, t.store)
	if err != nil {
		return fmt.Errorf("extract samples: %w", err)
	}
	if len(samples) < t.minSamples {
		return fmt.Errorf("%w: have %d, need %d", ErrNotTrained, len(samples), t.minSamples)
	}

	means, stds := standardization(samples)

	subtype := fitCentroids(samples, means, stds, func(s Sample) string { return string(s.Subtype) })
	outcome := fitCentroids(samples, means, stds, func(s Sample) string {
		if s.Win {
			return "win"
		}
		return "loss"
	})
	profit := fitProfit(samples)

	if err := t.persist(HeadSubtype, subtype); err != nil {
		return err
	}
	if err := t.persist(HeadOutcome, outcome); err != nil {
		return err
	}
	if err := t.persist(HeadProfit, profit); err != nil {
		return err
	}

	t.mu.Lock()
	t.subtype = subtype
	t.outcome = outcome
	t.profit = profit
	t.mu.Unlock()

	t.log.Info("models trained",
		logger.Int("samples", len(samples)),
		logger.Int("subtype_classes", len(subtype.Centroids)),
	)
	return nil
}

// HasHead reports whether a trained artifact for the head is loaded.
func (t *Trainer) HasHead(head string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch head {
	case HeadSubtype:
		return t.subtype != nil
	case HeadOutcome:
		return t.outcome != nil
	case HeadProfit:
		return t.profit != nil
	}
	return false
}

// Predict evaluates every loaded head against the feature map. A head
// without a trained artifact is simply absent from the result; that is
// not an error.
func (t *Trainer) Predict(features map[string]float64) map[string]interface{} {
	v := Vectorize(features)

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]interface{}, 4)
	if t.subtype != nil {
		class, conf := t.subtype.classify(v)
		out["subtype"] = class
		out["subtype_confidence"] = conf
	}
	if t.outcome != nil {
		class, conf := t.outcome.classify(v)
		p := conf
		if class == "loss" {
			p = 1 - conf
		}
		out["win_probability"] = p
	}
	if t.profit != nil {
		subtype, _ := out["subtype"].(string)
		out["expected_profit"] = t.profit.predict(subtype)
	}
	return out
}

func (m *centroidModel) classify(v []float64) (string, float64) {
	z := make([]float64, len(v))
	for i := range v {
		if i < len(m.Stds) && m.Stds[i] > 0 {
			z[i] = (v[i] - m.Means[i]) / m.Stds[i]
		} else {
			z[i] = 0
		}
	}

	best, second := math.Inf(1), math.Inf(1)
	bestClass := ""
	for class, c := range m.Centroids {
		d := euclidean(z, c)
		if d < best {
			second = best
			best = d
			bestClass = class
		} else if d < second {
			second = d
		}
	}
	conf := 1.0
	if !math.IsInf(second, 1) && best+second > 0 {
		conf = second / (best + second)
	}
	return bestClass, conf
}

func (m *profitModel) predict(subtype string) float64 {
	if v, ok := m.BySubtype[subtype]; ok {
		return v
	}
	return m.Global
}

func fitCentroids(samples []Sample, means, stds []float64, label func(Sample) string) *centroidModel {
	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for _, s := range samples {
		l := label(s)
		acc, ok := sums[l]
		if !ok {
			acc = make([]float64, len(s.Features))
			sums[l] = acc
		}
		for i, x := range s.Features {
			z := 0.0
			if stds[i] > 0 {
				z = (x - means[i]) / stds[i]
			}
			acc[i] += z
		}
		counts[l]++
	}
	centroids := make(map[string][]float64, len(sums))
	for l, acc := range sums {
		c := make([]float64, len(acc))
		for i := range acc {
			c[i] = acc[i] / float64(counts[l])
		}
		centroids[l] = c
	}
	return &centroidModel{Means: means, Stds: stds, Centroids: centroids, Samples: len(samples)}
}

func fitProfit(samples []Sample) *profitModel {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	global := 0.0
	for _, s := range samples {
		sums[string(s.Subtype)] += s.Profit
		counts[string(s.Subtype)]++
		global += s.Profit
	}
	by := make(map[string]float64, len(sums))
	for k, v := range sums {
		by[k] = v / float64(counts[k])
	}
	return &profitModel{BySubtype: by, Global: global / float64(len(samples)), Samples: len(samples)}
}

func standardization(samples []Sample) (means, stds []float64) {
	n := len(FeatureKeys)
	means = make([]float64, n)
	stds = make([]float64, n)
	for _, s := range samples {
		for i, x := range s.Features {
			means[i] += x
		}
	}
	for i := range means {
		means[i] /= float64(len(samples))
	}
	for _, s := range samples {
		for i, x := range s.Features {
			d := x - means[i]
			stds[i] += d * d
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i] / float64(len(samples)))
	}
	return means, stds
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i]
		if i < len(b) {
			d -= b[i]
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// persist writes one head artifact atomically: temp file then rename,
// so the online reader never observes a half-written model.
func (t *Trainer) persist(head string, model interface{}) error {
	if err := os.MkdirAll(t.modelDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", t.modelDir, err)
	}
	b, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("marshal %s head: %w", head, err)
	}
	path := t.artifactPath(head)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func (t *Trainer) artifactPath(head string) string {
	return filepath.Join(t.modelDir, head+".json")
}

// loadArtifacts restores previously trained heads. Missing or corrupt
// artifacts leave that head untrained.
func (t *Trainer) loadArtifacts() {
	if sub := loadModel[centroidModel](t, HeadSubtype); sub != nil {
		t.subtype = sub
	}
	if out := loadModel[centroidModel](t, HeadOutcome); out != nil {
		t.outcome = out
	}
	if prof := loadModel[profitModel](t, HeadProfit); prof != nil {
		t.profit = prof
	}
}

func loadModel[M any](t *Trainer, head string) *M {
	b, err := os.ReadFile(t.artifactPath(head))
	if err != nil {
		return nil
	}
	var m M
	if err := json.Unmarshal(b, &m); err != nil {
		t.log.Warn("discarding corrupt model artifact",
			logger.String("head", head),
			logger.Error(err),
		)
		return nil
	}
	return &m
}

// RunPeriodic retrains on an interval until ctx is cancelled. A run
// short on samples is reported at debug level and retried next tick.
func (t *Trainer) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Train(ctx); err != nil {
				if errors.Is(err, ErrNotTrained) {
					t.log.Debug("training skipped", logger.Error(err))
				} else {
					t.log.Error("training failed", logger.Error(err))
				}
			}
		}
	}
}
