// Package id generates the identifiers orchard uses to correlate the log
// lines of one attach session.
//
// IDs are prefixed ULIDs (att_*), so they sort by creation time and read
// well in log lines.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// AttachID identifies one attach session
type AttachID string

// AttachPrefix marks attach session IDs.
const AttachPrefix = "att"

var (
	mu sync.Mutex
	// entropy increments within a millisecond, so IDs made in the same
	// millisecond still sort in creation order
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewAttachID generates a new attach session ID
func NewAttachID() AttachID {
	mu.Lock()
	defer mu.Unlock()

	return AttachID(AttachPrefix + "_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

func (id AttachID) String() string { return string(id) }
