package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/model"
)

func upsertCategory(ctx context.Context, tx *sqlx.Tx, c model.Category) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO categories (id, name, icon_name, color_hex, sort_order)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			icon_name  = excluded.icon_name,
			color_hex  = excluded.color_hex,
			sort_order = excluded.sort_order`,
		c.ID, c.Name, ptrToNull(c.IconName), ptrToNull(c.ColorHex), c.Order,
	)
	if err != nil {
		return fmt.Errorf("writing category %s: %w", c.ID, err)
	}
	return nil
}

// Categories returns every category ordered by Order, then name.
func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoriesLocked(ctx)
}

func (s *Store) categoriesLocked(ctx context.Context) ([]model.Category, error) {
	var stored []model.Category
	if s.readyLocked() {
		query, args, err := sq.Select("id", "name", "icon_name", "color_hex", "sort_order").
			From("categories").
			OrderBy("sort_order", "name").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("sqlite: building category query: %w", err)
		}
		if err := s.db.SelectContext(ctx, &stored, query, args...); err != nil {
			return nil, fmt.Errorf("sqlite: listing categories: %w", err)
		}
	}

	result := make([]model.Category, 0, len(stored)+len(s.pending.categories))
	for _, c := range stored {
		if _, staged := s.pending.categories[c.ID]; staged {
			continue
		}
		if _, deleted := s.pending.deletedCategories[c.ID]; deleted {
			continue
		}
		result = append(result, c)
	}
	for _, c := range s.pending.categories {
		result = append(result, cloneCategory(c))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CategoryByID returns the category with the given id, or an
// apperror.NotFound error.
func (s *Store) CategoryByID(ctx context.Context, id string) (*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, deleted := s.pending.deletedCategories[id]; deleted {
		return nil, apperror.NotFound("category", id)
	}
	if c, ok := s.pending.categories[id]; ok {
		c = cloneCategory(c)
		return &c, nil
	}
	if !s.readyLocked() {
		return nil, apperror.NotFound("category", id)
	}

	var c model.Category
	err := s.db.GetContext(ctx, &c,
		`SELECT id, name, icon_name, color_hex, sort_order FROM categories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("category", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting category %s: %w", id, err)
	}
	return &c, nil
}

// CountCategories returns how many categories exist, staged ones included.
func (s *Store) CountCategories(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	categories, err := s.categoriesLocked(ctx)
	if err != nil {
		return 0, err
	}
	return len(categories), nil
}
