package cert

import "errors"

// Error kinds normative per spec.md §4.3.
var (
	ErrCertMissing           = errors.New("cert: certificate not found in cache")
	ErrCertExpired           = errors.New("cert: certificate has expired")
	ErrCertFuture            = errors.New("cert: certificate issued_at is in the future beyond clock-skew bound")
	ErrCertReplay            = errors.New("cert: certificate is older than the replay bound")
	ErrCertNodeMismatch      = errors.New("cert: certificate node_id does not match block producer")
	ErrCertInnerSigInvalid   = errors.New("cert: dilithium_sig_of_ed25519 does not verify")
	ErrBlockClassicalSigInvalid = errors.New("cert: block classical signature is invalid")
	ErrBlockPqSigInvalid     = errors.New("cert: block PQ signature is invalid")
)
