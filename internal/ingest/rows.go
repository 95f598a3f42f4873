// Package ingest retrieves transaction pages from the card service and
// turns them into the cleaned transaction set the analytics run on.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RawRow is one transaction as the card service returns it.
type RawRow struct {
	TxDate  string    `json:"txdate"`
	MerAddr string    `json:"meraddr"`
	MerName string    `json:"mername"`
	TxAmt   Cents     `json:"txamt"`
	Balance Cents     `json:"balance"`
	TxCode  TradeCode `json:"txcode"`
}

// Page is the decrypted payload of one page response.
type Page struct {
	ResultData struct {
		Rows  []RawRow `json:"rows"`
		Total int      `json:"total"`
	} `json:"resultData"`
}

// Cents is an amount in minor units. The service sends it either as a
// JSON number or as a numeric string.
type Cents int64

func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		*c = 0
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Cents(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return fmt.Errorf("invalid cents value %s", data)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("cents value %s out of range", data)
	}
	*c = Cents(f)
	return nil
}

// TradeCode is a transaction type code, sent as a string or a number.
type TradeCode string

func (tc *TradeCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*tc = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*tc = TradeCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid trade code %s", data)
	}
	*tc = TradeCode(n.String())
	return nil
}
