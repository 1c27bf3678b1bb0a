package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD key/nonce sizes, normative per spec.md §4.1: 256-bit key, 96-bit nonce.
const (
	AEADKeySize   = chacha20poly1305.KeySize
	AEADNonceSize = chacha20poly1305.NonceSize
)

// AEADEncrypt encrypts pt under key with a fresh random nonce, returning
// nonce||ciphertext so the caller can store or transmit a single blob. The
// nonce MUST be random per encryption (spec.md §4.1); it is generated here
// rather than accepted as a parameter so callers cannot accidentally reuse
// one.
func AEADEncrypt(key, pt []byte) (nonce, ct []byte, err error) {
	if len(key) != AEADKeySize {
		return nil, nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyLength, AEADKeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: aead init: %w", err)
	}
	nonce = make([]byte, AEADNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: nonce generation: %w", err)
	}
	ct = aead.Seal(nil, nonce, pt, nil)
	return nonce, ct, nil
}

// AEADDecrypt authenticates and decrypts ct using the given nonce, returning
// ErrDecryptAuth on any tag mismatch.
func AEADDecrypt(key, nonce, ct []byte) ([]byte, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyLength, AEADKeySize, len(key))
	}
	if len(nonce) != AEADNonceSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyLength, AEADNonceSize, len(nonce))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aead init: %w", err)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecryptAuth
	}
	return pt, nil
}
