package api

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a lexicographically sortable ULID for a generation run.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
