package analyzer

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

// ErrMalformedLevels marks a snapshot whose level encoding could not be
// decoded. The snapshot is dropped and counted; processing continues.
var ErrMalformedLevels = errors.New("analyzer: malformed orderbook levels")

// NormalizeLevels converts heterogeneous raw level representations into
// the canonical ordered sequence. Exchanges deliver levels either as
// ordered pairs ([price, size], numbers or decimal strings) or as keyed
// records ({"price": ..., "size": ...} with venue-specific key names).
func NormalizeLevels(raw []interface{}) ([]models.Level, error) {
	out := make([]models.Level, 0, len(raw))
	for i, rl := range raw {
		lvl, err := normalizeLevel(rl)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %v", ErrMalformedLevels, i, err)
		}
		out = append(out, lvl)
	}
	return out, nil
}

func normalizeLevel(raw interface{}) (models.Level, error) {
	switch v := raw.(type) {
	case models.Level:
		return v, nil
	case [2]string:
		return levelFromPair(v[0], v[1])
	case []string:
		if len(v) < 2 {
			return models.Level{}, fmt.Errorf("pair has %d elements", len(v))
		}
		return levelFromPair(v[0], v[1])
	case []interface{}:
		if len(v) < 2 {
			return models.Level{}, fmt.Errorf("pair has %d elements", len(v))
		}
		price, err := toFloat(v[0])
		if err != nil {
			return models.Level{}, err
		}
		size, err := toFloat(v[1])
		if err != nil {
			return models.Level{}, err
		}
		return models.Level{Price: price, Size: size}, nil
	case map[string]interface{}:
		price, ok := lookupFloat(v, "price", "p")
		if !ok {
			return models.Level{}, fmt.Errorf("no price key in %v", v)
		}
		size, ok := lookupFloat(v, "size", "s", "qty", "quantity", "amount")
		if !ok {
			return models.Level{}, fmt.Errorf("no size key in %v", v)
		}
		return models.Level{Price: price, Size: size}, nil
	default:
		return models.Level{}, fmt.Errorf("unsupported level type %T", raw)
	}
}

func levelFromPair(price, size string) (models.Level, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return models.Level{}, fmt.Errorf("price %q: %v", price, err)
	}
	s, err := strconv.ParseFloat(size, 64)
	if err != nil {
		return models.Level{}, fmt.Errorf("size %q: %v", size, err)
	}
	return models.Level{Price: p, Size: s}, nil
}

func lookupFloat(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		if raw, ok := m[k]; ok {
			if f, err := toFloat(raw); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("number %q: %v", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}
