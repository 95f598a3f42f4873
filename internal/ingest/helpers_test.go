package ingest

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"encoding/json"
	"testing"
)

const testKey = "0123456789abcdef"

// encryptPayload builds a payload the way the card service does.
func encryptPayload(t *testing.T, key string, plain []byte) string {
	t.Helper()
	n := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(n)}, n)...)
	return encryptRaw(t, key, padded)
}

// encryptRaw encrypts block-aligned data without adding padding.
func encryptRaw(t *testing.T, key string, data []byte) string {
	t.Helper()
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	bs := block.BlockSize()
	if len(data)%bs != 0 {
		t.Fatalf("data not block aligned: %d", len(data))
	}
	out := make([]byte, len(data))
	for off := 0; off < len(data); off += bs {
		block.Encrypt(out[off:off+bs], data[off:off+bs])
	}
	return key + base64.StdEncoding.EncodeToString(out)
}

func encryptPage(t *testing.T, rows []RawRow, total int) string {
	t.Helper()
	var p Page
	p.ResultData.Rows = rows
	p.ResultData.Total = total
	plain, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal page: %v", err)
	}
	return encryptPayload(t, testKey, plain)
}

func row(date, addr, name string, amt int64, code string) RawRow {
	return RawRow{TxDate: date, MerAddr: addr, MerName: name, TxAmt: Cents(amt), Balance: 10000, TxCode: TradeCode(code)}
}
