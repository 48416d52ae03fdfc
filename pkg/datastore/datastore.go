// Package datastore is a small table API over gorm shared by the storefront
// repositories.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned by First when no row matches.
var ErrNotFound = errors.New("datastore: record not found")

// Filter narrows or orders a table query.
type Filter func(*gorm.DB) *gorm.DB

// Store runs queries against named tables.
type Store struct {
	db *gorm.DB
}

// New constructs a Store backed by the provided GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{db: tx}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (s *Store) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return s.db
	}
	return s.db.WithContext(ctx)
}

func (s *Store) table(ctx context.Context, table string, filters []Filter) *gorm.DB {
	q := s.DB(ctx).Table(table)
	for _, f := range filters {
		if f != nil {
			q = f(q)
		}
	}
	return q
}

// Query loads every matching row into dest, which must point to a slice.
func (s *Store) Query(ctx context.Context, table string, dest any, filters ...Filter) error {
	if err := s.table(ctx, table, filters).Find(dest).Error; err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	return nil
}

// First loads the first matching row into dest.
func (s *Store) First(ctx context.Context, table string, dest any, filters ...Filter) error {
	err := s.table(ctx, table, filters).Limit(1).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("first %s: %w", table, err)
	}
	return nil
}

// Insert writes one row or a slice of rows. Model hooks run.
func (s *Store) Insert(ctx context.Context, table string, rows any) error {
	if err := s.DB(ctx).Table(table).Create(rows).Error; err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// Update applies column values to matching rows. At least one filter is required.
func (s *Store) Update(ctx context.Context, table string, values map[string]any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: %w", table, gorm.ErrMissingWhereClause)
	}
	res := s.table(ctx, table, filters).Updates(values)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes matching rows. model is a pointer to the row type.
func (s *Store) Delete(ctx context.Context, table string, model any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: %w", table, gorm.ErrMissingWhereClause)
	}
	res := s.table(ctx, table, filters).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete %s: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of matching rows.
func (s *Store) Count(ctx context.Context, table string, filters ...Filter) (int64, error) {
	var n int64
	if err := s.table(ctx, table, filters).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Eq matches column = value.
func Eq(column string, value any) Filter {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}

// In matches column IN values. An empty list matches nothing.
func In[T any](column string, values []T) Filter {
	return func(db *gorm.DB) *gorm.DB {
		if len(values) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where(column+" IN ?", values)
	}
}

// ILike matches rows where any of the columns contains term, ignoring case.
// A blank term matches everything.
func ILike(term string, columns ...string) Filter {
	term = strings.TrimSpace(term)
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		clauses := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, col := range columns {
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", col))
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

// OrderBy sorts by column, descending when desc is set.
func OrderBy(column string, desc bool) Filter {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column + " " + dir)
	}
}

// Limit caps the number of rows. Non-positive values are ignored.
func Limit(n int) Filter {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// Before keeps rows strictly older than the cursor position in
// (created_at DESC, id DESC) order.
func Before(createdAt time.Time, id uuid.UUID) Filter {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
