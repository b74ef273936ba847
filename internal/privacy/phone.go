// Package privacy keeps raw phone numbers out of indexes, logs and API
// responses. Storage gets AES-GCM ciphertext, display gets a masked form, and
// every lookup key is a one-way HMAC of the normalized number.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

var ErrInvalidCiphertext = errors.New("invalid phone ciphertext")

// PhoneVault derives all three stored forms of a phone number from two
// deploy-wide secrets: a 32-byte AES key and an HMAC key.
type PhoneVault struct {
	aead    cipher.AEAD
	hmacKey []byte
}

func NewPhoneVault(encryptionKey, hmacKey []byte) (*PhoneVault, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(hmacKey) == 0 {
		return nil, errors.New("hmac key is required")
	}
	return &PhoneVault{aead: aead, hmacKey: hmacKey}, nil
}

// Normalize strips everything but digits, keeping a leading plus.
func Normalize(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hash is the only value opt-out and delivery lookups may use.
func (v *PhoneVault) Hash(phone string) string {
	mac := hmac.New(sha256.New, v.hmacKey)
	mac.Write([]byte(Normalize(phone)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *PhoneVault) Encrypt(phone string) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return v.aead.Seal(nonce, nonce, []byte(Normalize(phone)), nil), nil
}

func (v *PhoneVault) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < v.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := ciphertext[:v.aead.NonceSize()], ciphertext[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

// Mask keeps the last four digits for operator display.
func Mask(phone string) string {
	n := Normalize(phone)
	digits := strings.TrimPrefix(n, "+")
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
