package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"todo-backend/internal/ranking"
	"todo-backend/internal/todos"
)

// TodoStore keeps todo items in PostgreSQL.
type TodoStore struct {
	DB *sql.DB
}

func NewTodoStore(db *sql.DB) *TodoStore {
	return &TodoStore{DB: db}
}

const todoColumns = `id, text, completed, sort_order, priority, due_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (todos.Item, error) {
	var (
		it       todos.Item
		priority string
		due      sql.NullTime
	)
	if err := row.Scan(
		&it.ID,
		&it.Text,
		&it.Completed,
		&it.Order,
		&priority,
		&due,
		&it.CreatedAt,
		&it.UpdatedAt,
	); err != nil {
		return todos.Item{}, err
	}

	it.Priority = todos.Priority(priority)
	if due.Valid {
		t := due.Time.UTC()
		it.DueDate = &t
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}

func (s *TodoStore) List(ctx context.Context) ([]todos.Item, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		ORDER BY completed, sort_order, created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []todos.Item
	for rows.Next() {
		it, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TodoStore) Get(ctx context.Context, id string) (todos.Item, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE id = $1
	`, id)

	it, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todos.Item{}, todos.ErrNotFound
	}
	return it, err
}

func (s *TodoStore) Insert(ctx context.Context, it todos.Item) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO todos (`+todoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		it.ID,
		it.Text,
		it.Completed,
		it.Order,
		string(it.Priority),
		nullTime(it.DueDate),
		it.CreatedAt,
		it.UpdatedAt,
	)
	return err
}

func (s *TodoStore) Replace(ctx context.Context, it todos.Item) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE todos
		SET text = $2, completed = $3, sort_order = $4, priority = $5, due_date = $6, updated_at = $7
		WHERE id = $1
	`,
		it.ID,
		it.Text,
		it.Completed,
		it.Order,
		string(it.Priority),
		nullTime(it.DueDate),
		it.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return todos.ErrNotFound
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, id string) (todos.Item, error) {
	row := s.DB.QueryRowContext(ctx, `
		DELETE FROM todos
		WHERE id = $1
		RETURNING `+todoColumns, id)

	it, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return todos.Item{}, todos.ErrNotFound
	}
	return it, err
}

func (s *TodoStore) OrderBounds(ctx context.Context, excludeID string) (ranking.Bounds, error) {
	var lo, hi sql.NullFloat64
	err := s.DB.QueryRowContext(ctx, `
		SELECT MIN(sort_order), MAX(sort_order)
		FROM todos
		WHERE id <> $1
	`, excludeID).Scan(&lo, &hi)
	if err != nil {
		return ranking.Bounds{}, err
	}
	if !lo.Valid || !hi.Valid {
		return ranking.NoItems, nil
	}
	return ranking.Bounds{Min: lo.Float64, Max: hi.Float64}, nil
}

// SetOrders writes every rank with one UPDATE inside a transaction and rolls
// back if any id did not match a row.
func (s *TodoStore) SetOrders(ctx context.Context, ranks []ranking.Rank, updatedAt time.Time) error {
	ids := make([]string, len(ranks))
	orders := make([]float64, len(ranks))
	for i, r := range ranks {
		ids[i] = r.ID
		orders[i] = r.Order
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE todos AS t
		SET sort_order = v.sort_order, updated_at = $3
		FROM unnest($1::text[], $2::float8[]) AS v(id, sort_order)
		WHERE t.id = v.id
	`, pq.Array(ids), pq.Array(orders), updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(ranks)) {
		return todos.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
