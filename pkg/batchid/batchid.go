// Package batchid issues human-readable batch identifiers for harvested lots.
package batchid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultPrefix is prepended to every generated identifier.
const DefaultPrefix = "BATCH_"

// suffix length in hex characters; 8 hex chars give a 2^32 space, plenty
// for single-digit-thousands of batches.
const suffixLen = 8

// Generator produces batch identifiers with a configurable prefix.
// Generation performs no store lookup; uniqueness is enforced by the
// crops.batch_id unique constraint and callers retry on violation.
type Generator struct {
	prefix string
}

// NewGenerator returns a Generator. An empty prefix falls back to DefaultPrefix.
func NewGenerator(prefix string) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{prefix: prefix}
}

// New returns a fresh identifier such as "BATCH_3FA85F64".
func (g *Generator) New() (string, error) {
	buf := make([]byte, suffixLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return g.prefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Prefix exposes the configured prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}
