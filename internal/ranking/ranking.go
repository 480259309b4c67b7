// Package ranking computes order values for todo items.
//
// Ranks only ever extend past the current extremes, so no mutation has to
// renumber other items. Ties are resolved by the canonical sort (see Less).
package ranking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptySequence = errors.New("reorder sequence is empty")
	ErrEmptyID       = errors.New("reorder sequence contains an empty id")
	ErrDuplicateID   = errors.New("reorder sequence contains a duplicate id")
)

// Bounds are the smallest and largest order values among the items a rank is
// computed against. Empty means there were no such items.
type Bounds struct {
	Min   float64
	Max   float64
	Empty bool
}

// Observe widens b to include order.
func (b Bounds) Observe(order float64) Bounds {
	if b.Empty {
		return Bounds{Min: order, Max: order}
	}
	if order < b.Min {
		b.Min = order
	}
	if order > b.Max {
		b.Max = order
	}
	return b
}

// NoItems is the zero state for Observe.
var NoItems = Bounds{Empty: true}

// Rank is an explicit order assignment for one item.
type Rank struct {
	ID    string
	Order float64
}

// ForNewIncomplete appends a new item to the end of the incomplete partition.
func ForNewIncomplete(b Bounds) float64 {
	if b.Empty {
		return 1
	}
	return b.Max + 1
}

// ForCompleting places an item after every other item. Completed items sort
// after incomplete ones, so this is also last among completed items.
func ForCompleting(b Bounds) float64 {
	if b.Empty {
		return 1
	}
	return b.Max + 1
}

// ForReopening places an item at the front of the incomplete partition.
func ForReopening(b Bounds) float64 {
	if b.Empty {
		return 0
	}
	return b.Min - 1
}

// ForManualReorder assigns 0, 1, 2, ... in submitted order.
func ForManualReorder(ids []string) ([]Rank, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySequence
	}

	seen := make(map[string]struct{}, len(ids))
	ranks := make([]Rank, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("position %d: %w", i, ErrEmptyID)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%s: %w", id, ErrDuplicateID)
		}
		seen[id] = struct{}{}
		ranks = append(ranks, Rank{ID: id, Order: float64(i)})
	}
	return ranks, nil
}

// Between returns a rank strictly between prev and next when they differ.
// A nil neighbour means the item goes to that end of the partition.
func Between(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return 0
	case prev == nil:
		return *next - 1
	case next == nil:
		return *prev + 1
	default:
		return *prev + (*next-*prev)/2
	}
}

// Key is the part of an item the canonical order looks at.
type Key struct {
	Completed bool
	Order     float64
	CreatedAt time.Time
	ID        string
}

// Less reports whether a sorts before b: incomplete first, then ascending
// order, then creation time, then id.
func Less(a, b Key) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
