// Package idgen generates identifiers for journal entries, playbook runs
// and transport requests. Generators are plain functions so callers can
// swap the strategy in tests.
package idgen

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short and URL-safe, for request IDs that never leave one process.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs. They sort by
// creation time, which keeps journal rows in insertion order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

var (
	// Default backs New.
	Default Generator = UUIDv7()

	// Run tags one playbook run.
	Run Generator = Prefixed("run_", UUIDv7())

	// Request tags one call arriving over HTTP or MCP.
	Request Generator = Prefixed("req_", NanoID(12))
)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Version returns the UUID version of id once its type prefix (anything
// up to the last '_') is stripped, or 0 when id is not a UUID.
func Version(id string) int {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return 0
	}
	return int(u.Version())
}
