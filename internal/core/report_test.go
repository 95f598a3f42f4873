package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCostEncodesAsNumber(t *testing.T) {
	tests := []struct {
		name  string
		stats CostStats
		want  string
	}{
		{
			name: "fractional",
			stats: CostStats{
				MostCostlyCafeteria:     "桃李园",
				MostCostlyCafeteriaCost: Cost{Decimal: decimal.RequireFromString("750.5")},
				MostCheapCafeteria:      "紫荆园",
				MostCheapCafeteriaCost:  Cost{Decimal: decimal.NewFromInt(300)},
			},
			want: `"mostCostlyCafeteriaCost":750.5`,
		},
		{name: "integral", stats: CostStats{MostCheapCafeteriaCost: Cost{Decimal: decimal.NewFromInt(300)}}, want: `"mostCheapCafeteriaCost":300`},
		{name: "zero value", stats: CostStats{}, want: `"mostCostlyCafeteriaCost":0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(Report{CostStats: tt.stats})
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if !strings.Contains(string(b), tt.want) {
				t.Errorf("encoded report %s does not contain %s", b, tt.want)
			}

			var back Report
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !back.MostCostlyCafeteriaCost.Equal(tt.stats.MostCostlyCafeteriaCost.Decimal) {
				t.Errorf("decoded cost = %s, want %s", back.MostCostlyCafeteriaCost, tt.stats.MostCostlyCafeteriaCost)
			}
		})
	}
}
