package model

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawReading is an unprocessed value returned by an on-chain data source.
// A nil Int means the reading is null or could not be interpreted as a number.
type RawReading struct {
	Int  *big.Int
	Text string // original representation, kept for logs and storage
}

// NullReading returns a reading with no numeric value.
func NullReading() RawReading {
	return RawReading{}
}

// ReadingFromBig wraps an integer returned by the chain. The integer is copied.
func ReadingFromBig(v *big.Int) RawReading {
	if v == nil {
		return NullReading()
	}
	c := new(big.Int).Set(v)
	return RawReading{Int: c, Text: c.String()}
}

// ParseRawReading interprets a decimal or 0x-prefixed hex string.
// Empty, "null", "undefined" and malformed input produce a null reading that
// still carries the original text.
func ParseRawReading(text string) RawReading {
	s := strings.TrimSpace(text)
	switch strings.ToLower(s) {
	case "", "null", "undefined", "nil":
		return RawReading{Text: text}
	}

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return RawReading{Text: text}
	}
	return RawReading{Int: v, Text: text}
}

// IsNull reports whether the reading has no numeric value.
func (r RawReading) IsNull() bool {
	return r.Int == nil
}

// String returns the integer in base 10, or the original text for null readings.
func (r RawReading) String() string {
	if r.Int == nil {
		return r.Text
	}
	return r.Int.String()
}

// Reading is a single persisted observation of a watched value.
type Reading struct {
	ID         uuid.UUID `json:"id"`          // Primary key
	Watch      string    `json:"watch"`       // Watch name from config
	Block      uint64    `json:"block"`       // Block number the change was observed at (0 if unknown)
	Raw        string    `json:"raw"`         // RawReading text
	Value      float64   `json:"value"`       // DerivedMetric.Value
	Ratio      float64   `json:"ratio"`       // DerivedMetric.Ratio
	ObservedAt time.Time `json:"observed_at"` // Local time the reading settled
}
