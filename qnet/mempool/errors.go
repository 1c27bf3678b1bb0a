package mempool

import "errors"

// ErrPoolFull is returned by Admit when the pool has reached maxSize.
var ErrPoolFull = errors.New("mempool: pool is full")
