package fingerprint

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	byteOrderName     = "bytewise"
	collateOrderScope = "collate:"
)

// Order is a total order over relative paths. The zero value is ByteOrder.
type Order struct {
	name string
	cmp  func(a, b string) int
}

// ByteOrder compares the UTF-8 bytes of two paths. It is independent of host
// locale and is the default ordering.
var ByteOrder = Order{name: byteOrderName, cmp: strings.Compare}

// Collated orders paths with the collation rules of tag, the way a browser's
// localeCompare does. Paths that collate equal fall back to byte order so the
// result stays a total order.
func Collated(tag language.Tag) Order {
	c := collate.New(tag)
	// collate.Collator reuses internal buffers
	var mu sync.Mutex
	return Order{
		name: collateOrderScope + tag.String(),
		cmp: func(a, b string) int {
			mu.Lock()
			r := c.CompareString(a, b)
			mu.Unlock()
			if r != 0 {
				return r
			}
			return strings.Compare(a, b)
		},
	}
}

// ParseOrder resolves the textual form produced by Order.String.
// An empty string selects ByteOrder.
func ParseOrder(s string) (Order, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == byteOrderName:
		return ByteOrder, nil
	case strings.HasPrefix(s, collateOrderScope):
		tag, err := language.Parse(strings.TrimPrefix(s, collateOrderScope))
		if err != nil {
			return Order{}, fmt.Errorf("parse collation tag: %w", err)
		}
		return Collated(tag), nil
	default:
		tag, err := language.Parse(s)
		if err != nil {
			return Order{}, fmt.Errorf("unknown path order %q", s)
		}
		return Collated(tag), nil
	}
}

func (o Order) String() string {
	if o.name == "" {
		return byteOrderName
	}
	return o.name
}

// Compare returns -1, 0 or +1 like strings.Compare.
func (o Order) Compare(a, b string) int {
	if o.cmp == nil {
		return strings.Compare(a, b)
	}
	return o.cmp(a, b)
}
