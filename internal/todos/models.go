package todos

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"todo-backend/internal/ranking"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority maps "" to the medium default.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", validationf("Invalid priority %q", s)
	}
	return p, nil
}

type Item struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Completed bool       `json:"completed"`
	Order     float64    `json:"order"`
	Priority  Priority   `json:"priority"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (it Item) rankKey() ranking.Key {
	return ranking.Key{
		Completed: it.Completed,
		Order:     it.Order,
		CreatedAt: it.CreatedAt,
		ID:        it.ID,
	}
}

type CreateInput struct {
	Text     string
	Priority string
	DueDate  *time.Time
}

// Patch holds the fields an update may change. Nil means unchanged.
type Patch struct {
	Text     *string
	Priority *string
	DueDate  *time.Time
	Order    *float64
}

// NewID returns a fresh 24-hex-character object id.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the store's native id format.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

func parseID(id string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return "", validationf("Invalid id")
	}
	return oid.Hex(), nil
}

func cleanText(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", validationf("Text is required")
	}
	return t, nil
}

// ParseDueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, validationf("Invalid dueDate %q", s)
}
