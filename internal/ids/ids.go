// Package ids mints ULIDs for activity and audit rows. ULIDs sort by
// creation time, which keeps index pages append-mostly and makes raw table
// scans read in rough chronological order.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// A single monotonic entropy source guarded by a mutex: two IDs minted in
// the same millisecond still compare in mint order.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a fresh ULID string.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
