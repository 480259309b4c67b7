package todos

import (
	"context"
	"math"
	"time"

	"todo-backend/internal/ranking"
)

// Service is the only writer of the store. It is stateless between calls and
// safe for concurrent use; rank computation is read-then-write, so concurrent
// completions may share a rank and fall back to the createdAt tiebreak.
type Service struct {
	store Store
	now   func() time.Time
}

type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) List(ctx context.Context) ([]Item, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, storeErr("list todos", err)
	}
	sortItems(items)
	return items, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	text, err := cleanText(in.Text)
	if err != nil {
		return Item{}, err
	}
	priority, err := ParsePriority(in.Priority)
	if err != nil {
		return Item{}, err
	}

	bounds, err := s.store.OrderBounds(ctx, "")
	if err != nil {
		return Item{}, storeErr("read order bounds", err)
	}

	now := s.timestamp()
	item := Item{
		ID:        NewID(),
		Text:      text,
		Completed: false,
		Order:     ranking.ForNewIncomplete(bounds),
		Priority:  priority,
		DueDate:   utcPtr(in.DueDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, item); err != nil {
		return Item{}, storeErr("insert todo", err)
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	id, err := parseID(id)
	if err != nil {
		return Item{}, err
	}
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return Item{}, storeErr("get todo", err)
	}
	return item, nil
}

// Update applies the non-nil fields of p. Completion state is never touched.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Item, error) {
	id, err := parseID(id)
	if err != nil {
		return Item{}, err
	}

	var text string
	if p.Text != nil {
		if text, err = cleanText(*p.Text); err != nil {
			return Item{}, err
		}
	}
	var priority Priority
	if p.Priority != nil {
		if priority, err = ParsePriority(*p.Priority); err != nil {
			return Item{}, err
		}
	}
	if p.Order != nil && (math.IsNaN(*p.Order) || math.IsInf(*p.Order, 0)) {
		return Item{}, validationf("Invalid order")
	}

	item, err := s.store.Get(ctx, id)
	if err != nil {
		return Item{}, storeErr("get todo", err)
	}

	if p.Text != nil {
		item.Text = text
	}
	if p.Priority != nil {
		item.Priority = priority
	}
	if p.DueDate != nil {
		item.DueDate = utcPtr(p.DueDate)
	}
	if p.Order != nil {
		item.Order = *p.Order
	}
	item.UpdatedAt = s.timestamp()

	if err := s.store.Replace(ctx, item); err != nil {
		return Item{}, storeErr("update todo", err)
	}
	return item, nil
}

// SetCompleted sets the completion state, toggling it when completed is nil.
// Completing moves the item to the very end; reopening moves it to the front
// of the incomplete items. It returns the item and the full sorted list.
func (s *Service) SetCompleted(ctx context.Context, id string, completed *bool) (Item, []Item, error) {
	id, err := parseID(id)
	if err != nil {
		return Item{}, nil, err
	}

	item, err := s.store.Get(ctx, id)
	if err != nil {
		return Item{}, nil, storeErr("get todo", err)
	}

	target := !item.Completed
	if completed != nil {
		target = *completed
	}

	bounds, err := s.store.OrderBounds(ctx, id)
	if err != nil {
		return Item{}, nil, storeErr("read order bounds", err)
	}
	if target {
		item.Order = ranking.ForCompleting(bounds)
	} else {
		item.Order = ranking.ForReopening(bounds)
	}
	item.Completed = target
	item.UpdatedAt = s.timestamp()

	if err := s.store.Replace(ctx, item); err != nil {
		return Item{}, nil, storeErr("update todo", err)
	}

	items, err := s.List(ctx)
	if err != nil {
		return Item{}, nil, err
	}
	return item, items, nil
}

// Delete removes the item and returns what was removed.
func (s *Service) Delete(ctx context.Context, id string) (Item, error) {
	id, err := parseID(id)
	if err != nil {
		return Item{}, err
	}
	item, err := s.store.Delete(ctx, id)
	if err != nil {
		return Item{}, storeErr("delete todo", err)
	}
	return item, nil
}

// Reorder gives the submitted ids fresh ranks 0, 1, 2, ... in one batch
// write. Items not named keep their current rank, so when only part of a
// group is submitted the others may interleave with the new ranks.
func (s *Service) Reorder(ctx context.Context, ids []string) ([]Item, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id, err := parseID(id)
		if err != nil {
			return nil, err
		}
		clean = append(clean, id)
	}

	ranks, err := ranking.ForManualReorder(clean)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "Invalid reorder sequence", Err: err}
	}

	if err := s.store.SetOrders(ctx, ranks, s.timestamp()); err != nil {
		return nil, storeErr("reorder todos", err)
	}
	return s.List(ctx)
}

// Move places one item at index within its completion partition, counting
// the other items of that partition in display order. Usually only the moved
// item is written. When its new neighbours share a rank the whole partition
// is renumbered in its new sequence instead. Indexes past the end append.
func (s *Service) Move(ctx context.Context, id string, index int) (Item, []Item, error) {
	id, err := parseID(id)
	if err != nil {
		return Item{}, nil, err
	}
	if index < 0 {
		return Item{}, nil, validationf("Invalid index %d", index)
	}

	all, err := s.List(ctx)
	if err != nil {
		return Item{}, nil, err
	}

	var (
		item  Item
		found bool
		peers []Item
	)
	for _, it := range all {
		if it.ID == id {
			item, found = it, true
		}
	}
	if !found {
		return Item{}, nil, notFound()
	}
	for _, it := range all {
		if it.ID != id && it.Completed == item.Completed {
			peers = append(peers, it)
		}
	}

	if index > len(peers) {
		index = len(peers)
	}
	var prev, next *float64
	if index > 0 {
		prev = &peers[index-1].Order
	}
	if index < len(peers) {
		next = &peers[index].Order
	}
	item.Order = ranking.Between(prev, next)
	item.UpdatedAt = s.timestamp()

	if (prev != nil && item.Order <= *prev) || (next != nil && item.Order >= *next) {
		if item.Order, err = s.renumber(ctx, peers, item.ID, index, item.UpdatedAt); err != nil {
			return Item{}, nil, err
		}
	} else if err := s.store.Replace(ctx, item); err != nil {
		return Item{}, nil, storeErr("move todo", err)
	}

	items, err := s.List(ctx)
	if err != nil {
		return Item{}, nil, err
	}
	return item, items, nil
}

// renumber writes ranks 0..n-1 to peers with id inserted at index and
// returns the rank id received.
func (s *Service) renumber(ctx context.Context, peers []Item, id string, index int, now time.Time) (float64, error) {
	seq := make([]string, 0, len(peers)+1)
	for i, p := range peers {
		if i == index {
			seq = append(seq, id)
		}
		seq = append(seq, p.ID)
	}
	if index >= len(peers) {
		seq = append(seq, id)
	}

	ranks, err := ranking.ForManualReorder(seq)
	if err != nil {
		return 0, storeErr("move todo", err)
	}
	if err := s.store.SetOrders(ctx, ranks, now); err != nil {
		return 0, storeErr("move todo", err)
	}
	return ranks[index].Order, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
