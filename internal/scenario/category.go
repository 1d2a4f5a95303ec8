// Package scenario classifies operator scenario descriptions and holds the
// canned resolution script for each scenario category.
package scenario

import (
	"fmt"
	"strings"
)

// Category is the closed set of delivery-exception scenarios. The zero
// value is Delivery, which is also the classification fallback.
type Category int

const (
	Delivery Category = iota
	Traffic
	Merchant
	Dispute
)

// Categories returns every category in classification priority order,
// with the fallback last.
func Categories() []Category {
	return []Category{Traffic, Merchant, Dispute, Delivery}
}

// String returns the lowercase category label.
func (c Category) String() string {
	switch c {
	case Delivery:
		return "delivery"
	case Traffic:
		return "traffic"
	case Merchant:
		return "merchant"
	case Dispute:
		return "dispute"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a label back to its Category.
func ParseCategory(s string) (Category, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if c.String() == label {
			return c, nil
		}
	}
	return Delivery, fmt.Errorf("scenario: unknown category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
