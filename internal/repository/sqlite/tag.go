package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/model"
)

func upsertTag(ctx context.Context, tx *sqlx.Tx, t model.Tag) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tags (id, name, color_hex, icon_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name      = excluded.name,
			color_hex = excluded.color_hex,
			icon_name = excluded.icon_name`,
		t.ID, t.Name, ptrToNull(t.ColorHex), ptrToNull(t.IconName),
	)
	if err != nil {
		return fmt.Errorf("writing tag %s: %w", t.ID, err)
	}
	return nil
}

// Tags returns every tag ordered by name.
func (s *Store) Tags(ctx context.Context) ([]model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored []model.Tag
	if s.readyLocked() {
		if err := s.db.SelectContext(ctx, &stored,
			`SELECT id, name, color_hex, icon_name FROM tags ORDER BY name`); err != nil {
			return nil, fmt.Errorf("sqlite: listing tags: %w", err)
		}
	}

	result := make([]model.Tag, 0, len(stored)+len(s.pending.tags))
	for _, t := range stored {
		if _, staged := s.pending.tags[t.ID]; staged {
			continue
		}
		if _, deleted := s.pending.deletedTags[t.ID]; deleted {
			continue
		}
		result = append(result, t)
	}
	for _, t := range s.pending.tags {
		result = append(result, cloneTag(t))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// TagByID returns the tag with the given id, or an apperror.NotFound error.
func (s *Store) TagByID(ctx context.Context, id string) (*model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, deleted := s.pending.deletedTags[id]; deleted {
		return nil, apperror.NotFound("tag", id)
	}
	if t, ok := s.pending.tags[id]; ok {
		t = cloneTag(t)
		return &t, nil
	}
	if !s.readyLocked() {
		return nil, apperror.NotFound("tag", id)
	}

	var t model.Tag
	err := s.db.GetContext(ctx, &t, `SELECT id, name, color_hex, icon_name FROM tags WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("tag", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting tag %s: %w", id, err)
	}
	return &t, nil
}
