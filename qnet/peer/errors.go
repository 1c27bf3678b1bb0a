package peer

import "errors"

// ErrNoResponse is returned by Fake.Request when no RequestFn is configured.
var ErrNoResponse = errors.New("peer: no response configured")
