// Package id issues time-sortable trade identifiers. ULIDs sort
// lexicographically by creation time, which keeps journal rows and SQLite
// indexes in fill order.
package id

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string. IDs generated within the same millisecond
// remain strictly increasing.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// At returns the ULID for a known event time and sequence number. The time
// component comes from t and the entropy bytes encode seq, so replaying the
// same fills in the same order reproduces the same IDs.
func At(t time.Time, seq uint64) string {
	var entropy [10]byte
	binary.BigEndian.PutUint64(entropy[2:], seq)
	return ulid.MustNew(ulid.Timestamp(t.UTC()), bytes.NewReader(entropy[:])).String()
}
