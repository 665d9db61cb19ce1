package fits

import (
	"fmt"
	"math"
	"strings"

	"github.com/astrogo/fitsio"
)

const (
	cardSize  = 80
	blockSize = 2880

	// maxStringLen is the longest string value that fits in one card
	// after the keyword, the value indicator and the quotes.
	maxStringLen = cardSize - 10 - 2
)

// Card is a single header record. Value is one of string, bool, int64,
// float64, or nil for commentary cards.
type Card struct {
	Key     string
	Value   any
	Comment string
}

// Header is an ordered list of cards.
type Header struct {
	cards []Card
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{}
}

// Set replaces the value and comment of key, or appends a new card.
func (h *Header) Set(key string, value any, comment string) {
	key = strings.ToUpper(strings.TrimSpace(key))
	value = normalizeValue(value)
	for i := range h.cards {
		if h.cards[i].Key == key {
			h.cards[i].Value = value
			h.cards[i].Comment = comment
			return
		}
	}
	h.cards = append(h.cards, Card{Key: key, Value: value, Comment: comment})
}

// Get returns the card for key.
func (h *Header) Get(key string) (Card, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for _, c := range h.cards {
		if c.Key == key {
			return c, true
		}
	}
	return Card{}, false
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Cards returns a copy of the header's cards in order.
func (h *Header) Cards() []Card {
	out := make([]Card, len(h.cards))
	copy(out, h.cards)
	return out
}

// Len returns the number of cards.
func (h *Header) Len() int { return len(h.cards) }

// String returns the string value of key.
func (h *Header) String(key string) (string, error) {
	c, ok := h.Get(key)
	if !ok {
		return "", &LookupError{Kind: "header key", Name: key}
	}
	s, ok := c.Value.(string)
	if !ok {
		return "", fmt.Errorf("header key %q: value %v is not a string", key, c.Value)
	}
	return s, nil
}

// Float returns the numeric value of key. Integer values are accepted.
func (h *Header) Float(key string) (float64, error) {
	c, ok := h.Get(key)
	if !ok {
		return 0, &LookupError{Kind: "header key", Name: key}
	}
	switch v := c.Value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("header key %q: value %v is not a number", key, c.Value)
}

// Int returns the integer value of key.
func (h *Header) Int(key string) (int64, error) {
	c, ok := h.Get(key)
	if !ok {
		return 0, &LookupError{Kind: "header key", Name: key}
	}
	v, ok := c.Value.(int64)
	if !ok {
		return 0, fmt.Errorf("header key %q: value %v is not an integer", key, c.Value)
	}
	return v, nil
}

// Validate reports the first card that cannot be written.
func (h *Header) Validate() error {
	for _, c := range h.cards {
		if err := checkCard(c); err != nil {
			return err
		}
	}
	return nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func checkCard(c Card) error {
	if c.Key == "" || len(c.Key) > 8 {
		return valueErr(c.Key, "keyword must be 1 to 8 characters")
	}
	for i := 0; i < len(c.Key); i++ {
		b := c.Key[i]
		if !(b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-') {
			return valueErr(c.Key, "keyword may only hold A-Z, 0-9, '_' and '-'")
		}
	}
	if !printable(c.Comment) {
		return valueErr(c.Key, "comment is not printable ASCII")
	}

	switch v := c.Value.(type) {
	case nil, bool, int64:
	case string:
		if !printable(v) {
			return valueErr(c.Key, "value %q is not printable ASCII", v)
		}
		if len(strings.ReplaceAll(v, "'", "''")) > maxStringLen {
			return valueErr(c.Key, "value is longer than %d characters", maxStringLen)
		}
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return valueErr(c.Key, "value %v is not finite", v)
		}
	default:
		return valueErr(c.Key, "unsupported value type %T", c.Value)
	}
	return nil
}

// printable reports whether s holds only bytes 0x20 to 0x7E.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// isLayoutKey reports whether key describes the HDU structure. Layout
// cards are derived from the data on write and never copied verbatim.
func isLayoutKey(key string) bool {
	switch key {
	case "SIMPLE", "EXTEND", "XTENSION", "BITPIX", "NAXIS", "PCOUNT", "GCOUNT",
		"TFIELDS", "THEAP", "EXTNAME", "END":
		return true
	}
	for _, prefix := range []string{"NAXIS", "TTYPE", "TFORM", "TUNIT", "TDIM", "TNULL", "TSCAL", "TZERO", "TDISP"} {
		if rest, ok := strings.CutPrefix(key, prefix); ok && rest != "" && strings.Trim(rest, "0123456789") == "" {
			return true
		}
	}
	return false
}

// importCards copies the descriptive cards of a decoded header.
func importCards(dst *Header, src *fitsio.Header) {
	for _, key := range src.Keys() {
		switch key {
		case "", "COMMENT", "HISTORY":
			continue
		}
		c := src.Get(key)
		if c == nil || (isLayoutKey(key) && key != "EXTNAME") {
			continue
		}
		dst.Set(key, c.Value, c.Comment)
	}
}

// exportCards returns the descriptive cards of h for writing. Layout
// cards and EXTNAME are produced by the encoder.
func exportCards(h *Header) []fitsio.Card {
	var out []fitsio.Card
	for _, c := range h.cards {
		if isLayoutKey(c.Key) {
			continue
		}
		v := c.Value
		if n, ok := v.(int64); ok {
			v = int(n)
		}
		out = append(out, fitsio.Card{Name: c.Key, Value: v, Comment: c.Comment})
	}
	return out
}
