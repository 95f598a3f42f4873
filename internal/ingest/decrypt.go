package ingest

import (
	"crypto/aes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yf-yang/thu-food-report/internal/core"
)

// keyLen is the length of the AES-128 key prefixed to every payload.
const keyLen = 16

// Decrypt reverses the card service's payload encryption: the first 16
// characters are the AES-128 key, the rest is base64 ciphertext in ECB
// mode with PKCS#7 padding. Every failure is a core.ErrDecryption.
func Decrypt(payload string) ([]byte, error) {
	if len(payload) < keyLen {
		return nil, core.NewError(core.ErrDecryption, "decrypt", fmt.Errorf("payload shorter than %d bytes", keyLen))
	}
	key := []byte(payload[:keyLen])

	ciphertext, err := base64.StdEncoding.DecodeString(payload[keyLen:])
	if err != nil {
		return nil, core.NewError(core.ErrDecryption, "decode base64", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, core.NewError(core.ErrDecryption, "init cipher", err)
	}
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, core.NewError(core.ErrDecryption, "decrypt", fmt.Errorf("ciphertext length %d is not a multiple of %d", len(ciphertext), bs))
	}

	plain := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += bs {
		block.Decrypt(plain[off:off+bs], ciphertext[off:off+bs])
	}

	plain, err = unpad(plain, bs)
	if err != nil {
		return nil, core.NewError(core.ErrDecryption, "unpad", err)
	}
	return plain, nil
}

// DecodePage decrypts a page payload and parses the result rows.
func DecodePage(payload string) (Page, error) {
	var page Page
	plain, err := Decrypt(payload)
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(plain, &page); err != nil {
		return page, core.NewError(core.ErrDecryption, "parse decrypted page", err)
	}
	return page, nil
}

var errBadPadding = errors.New("invalid PKCS#7 padding")

func unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, errBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errBadPadding
		}
	}
	return b[:len(b)-n], nil
}
