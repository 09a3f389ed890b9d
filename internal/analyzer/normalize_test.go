package analyzer

import (
	"errors"
	"testing"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/models"
)

func TestNormalizePairForms(t *testing.T) {
	raw := []interface{}{
		[]string{"100.5", "2"},
		[2]string{"99", "0.5"},
		[]interface{}{"98.25", "3"},
		[]interface{}{97.0, 4.0},
	}
	got, err := NormalizeLevels(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []models.Level{
		{Price: 100.5, Size: 2},
		{Price: 99, Size: 0.5},
		{Price: 98.25, Size: 3},
		{Price: 97, Size: 4},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d levels", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("level %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalizeKeyedForms(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{"price": "100", "size": "2"},
		map[string]interface{}{"p": 99.5, "s": 1.0},
		map[string]interface{}{"price": 98.0, "qty": "7"},
		map[string]interface{}{"price": 97.0, "amount": 9.0},
	}
	got, err := NormalizeLevels(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got[0].Price != 100 || got[0].Size != 2 {
		t.Fatalf("keyed level: %+v", got[0])
	}
	if got[2].Size != 7 || got[3].Size != 9 {
		t.Fatalf("alternate size keys not resolved: %+v %+v", got[2], got[3])
	}
}

func TestNormalizeMalformed(t *testing.T) {
	cases := [][]interface{}{
		{[]string{"100"}},                              // pair too short
		{[]interface{}{"abc", "1"}},                    // unparseable price
		{map[string]interface{}{"size": "1"}},          // missing price key
		{42},                                           // unsupported shape
	}
	for i, raw := range cases {
		if _, err := NormalizeLevels(raw); !errors.Is(err, ErrMalformedLevels) {
			t.Fatalf("case %d: expected ErrMalformedLevels, got %v", i, err)
		}
	}
}
