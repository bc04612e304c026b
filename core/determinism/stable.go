// Package determinism provides primitives for reproducible runs.
// Output code uses these instead of float formatting and map iteration so
// that two runs with the same inputs produce byte-identical records.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// StableID is a hash-based identifier that is deterministic
type StableID string

// IDGenerator generates stable, deterministic IDs
type IDGenerator struct {
	namespace string
}

// NewIDGenerator creates an ID generator with a namespace
func NewIDGenerator(namespace string) *IDGenerator {
	return &IDGenerator{namespace: namespace}
}

// Generate creates a stable ID from inputs
func (g *IDGenerator) Generate(parts ...string) StableID {
	h := sha256.New()
	h.Write([]byte(g.namespace))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return StableID(hex.EncodeToString(h.Sum(nil))[:16])
}

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// HashJSON hashes the JSON encoding of v. encoding/json sorts map keys, so
// equal values hash equally.
func HashJSON(v any) (ContentHash, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ContentHash{}, fmt.Errorf("failed to encode for hashing: %w", err)
	}
	return ComputeHash(data), nil
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Hex()[:16] + "..."
}

// Amount is a welfare or money value rounded to a fixed number of decimal
// places for output. Arithmetic stays in float64; Amount only renders.
type Amount struct {
	value  decimal.Decimal
	places int32
	// special holds NaN and infinities, which decimal cannot represent
	special string
}

// NewAmount rounds x half away from zero to places decimals
func NewAmount(x float64, places int32) Amount {
	switch {
	case math.IsNaN(x):
		return Amount{special: "NaN", places: places}
	case math.IsInf(x, 1):
		return Amount{special: "+Inf", places: places}
	case math.IsInf(x, -1):
		return Amount{special: "-Inf", places: places}
	}
	return Amount{value: decimal.NewFromFloat(x).Round(places), places: places}
}

// String renders the amount with exactly places decimals
func (a Amount) String() string {
	if a.special != "" {
		return a.special
	}
	return a.value.StringFixed(a.places)
}

// MarshalJSON encodes finite amounts as JSON numbers and the rest as
// strings.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a.special != "" {
		return json.Marshal(a.special)
	}
	return []byte(a.value.StringFixed(a.places)), nil
}

// Format is NewAmount(x, places).String()
func Format(x float64, places int32) string {
	return NewAmount(x, places).String()
}
