package crypto

import "errors"

// Error kinds normative per spec.md §4.1.
var (
	ErrInvalidKeyLength       = errors.New("crypto: invalid key length")
	ErrInvalidSignatureLength = errors.New("crypto: invalid signature length")
	ErrVerifyFailed           = errors.New("crypto: signature verification failed")
	ErrDecryptAuth            = errors.New("crypto: AEAD authentication failed")
)
