package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Codec encrypts provider credentials before they hit the database.
type Codec struct {
	key [32]byte
}

func NewCodec(hexKey string) (*Codec, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.New("secrets key must be hex-encoded")
	}
	if len(raw) != 32 {
		return nil, errors.New("secrets key must be 32 bytes")
	}

	c := &Codec{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt returns the empty string on any failure. Callers treat absence
// as "not configured", so a corrupt or foreign ciphertext must not panic
// or error the request.
func (c *Codec) Decrypt(ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize {
		return ""
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return ""
	}
	return string(plain)
}
