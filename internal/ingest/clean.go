package ingest

import (
	"strings"

	"github.com/yf-yang/thu-food-report/internal/core"
)

// DefaultExcludedStallKeywords are the non-food services found on campus
// cards: drinking water, showers, retail kiosks, student card service,
// printing, swimming and the library.
var DefaultExcludedStallKeywords = []string{"饮水", "淋浴", "天猫", "学生卡", "打印", "游泳", "图书馆"}

// Clean keeps meal-purchase debits whose stall matches none of the
// excluded keywords. Input order is preserved.
func Clean(txs []core.Transaction, excluded []string) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Code != core.MealPurchaseCode {
			continue
		}
		if containsAny(tx.Stall, excluded) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
