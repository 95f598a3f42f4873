package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/yf-yang/thu-food-report/internal/core"
)

// txDateLayout is the card service's timestamp format. It carries no zone;
// the service records local time in UTC+8.
const txDateLayout = "2006-01-02 15:04:05"

// Normalize maps raw rows onto core.Transaction. A row whose timestamp
// cannot be parsed fails the whole batch with core.ErrNormalization.
func Normalize(rows []RawRow) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for i, r := range rows {
		tx, err := NormalizeRow(r)
		if err != nil {
			return nil, core.NewError(core.ErrNormalization, fmt.Sprintf("row %d", i), err)
		}
		out = append(out, tx)
	}
	return out, nil
}

// NormalizeRow converts a single raw row and repairs the cafeteria
// placeholder from the stall name.
func NormalizeRow(r RawRow) (core.Transaction, error) {
	ts, err := time.ParseInLocation(txDateLayout, strings.TrimSpace(r.TxDate), core.ReportZone)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse txdate %q: %w", r.TxDate, err)
	}
	return core.Transaction{
		Timestamp:    ts,
		Cafeteria:    repairCafeteria(r.MerAddr, r.MerName),
		Stall:        r.MerName,
		AmountCents:  int64(r.TxAmt),
		BalanceCents: int64(r.Balance),
		Code:         string(r.TxCode),
	}, nil
}

func repairCafeteria(cafeteria, stall string) string {
	if cafeteria != core.CafeteriaPlaceholder {
		return cafeteria
	}
	prefix, _, _ := strings.Cut(stall, "_")
	return prefix
}
