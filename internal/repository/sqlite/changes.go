package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/permission-journal/internal/model"
)

// changeSet holds the staged, unsaved state of the shared context.
//
// A record id is either staged for upsert or for deletion, never both: the
// later call wins. Staged values are deep copies and are what reads see, so
// unsaved in-memory edits trump stored values field by field.
type changeSet struct {
	permissions map[string]model.Permission
	categories  map[string]model.Category
	tags        map[string]model.Tag

	deletedPermissions map[string]struct{}
	deletedCategories  map[string]struct{}
	deletedTags        map[string]struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		permissions:        make(map[string]model.Permission),
		categories:         make(map[string]model.Category),
		tags:               make(map[string]model.Tag),
		deletedPermissions: make(map[string]struct{}),
		deletedCategories:  make(map[string]struct{}),
		deletedTags:        make(map[string]struct{}),
	}
}

func (c *changeSet) empty() bool {
	return len(c.permissions) == 0 && len(c.categories) == 0 && len(c.tags) == 0 &&
		len(c.deletedPermissions) == 0 && len(c.deletedCategories) == 0 && len(c.deletedTags) == 0
}

func (c *changeSet) size() int {
	return len(c.permissions) + len(c.categories) + len(c.tags) +
		len(c.deletedPermissions) + len(c.deletedCategories) + len(c.deletedTags)
}

// apply writes the change set inside tx: deletions first, then upserts, each
// in id order so the statement sequence is deterministic.
func (c *changeSet) apply(ctx context.Context, tx *sqlx.Tx) error {
	for _, id := range slices.Sorted(maps.Keys(c.deletedPermissions)) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting permission %s: %w", id, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.deletedCategories)) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting category %s: %w", id, err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.deletedTags)) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting tag %s: %w", id, err)
		}
	}

	for _, id := range slices.Sorted(maps.Keys(c.permissions)) {
		if err := upsertPermission(ctx, tx, c.permissions[id]); err != nil {
			return err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.categories)) {
		if err := upsertCategory(ctx, tx, c.categories[id]); err != nil {
			return err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(c.tags)) {
		if err := upsertTag(ctx, tx, c.tags[id]); err != nil {
			return err
		}
	}
	return nil
}

// PutPermission stages an insert or update of p.
func (s *Store) PutPermission(p model.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.deletedPermissions, p.ID)
	s.pending.permissions[p.ID] = p.Clone()
}

// DeletePermission stages removal of the permission with the given id.
func (s *Store) DeletePermission(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.permissions, id)
	s.pending.deletedPermissions[id] = struct{}{}
}

// PutCategory stages an insert or update of c.
func (s *Store) PutCategory(c model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.deletedCategories, c.ID)
	s.pending.categories[c.ID] = cloneCategory(c)
}

// DeleteCategory stages removal of the category. Permissions filed under its
// name are left alone.
func (s *Store) DeleteCategory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.categories, id)
	s.pending.deletedCategories[id] = struct{}{}
}

// PutTag stages an insert or update of t.
func (s *Store) PutTag(t model.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.deletedTags, t.ID)
	s.pending.tags[t.ID] = cloneTag(t)
}

// DeleteTag stages removal of the tag. Permissions carrying its name keep it.
func (s *Store) DeleteTag(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending.tags, id)
	s.pending.deletedTags[id] = struct{}{}
}

// HasChanges reports whether anything is staged.
func (s *Store) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pending.empty()
}

// Rollback discards every staged change.
func (s *Store) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = newChangeSet()
}

// Save writes every staged change in a single transaction.
//
// Save does nothing when the store is not ready or nothing is staged. If
// the write fails the transaction is rolled back, the staged changes are
// discarded, and the error is logged and returned; no partial write is
// ever visible.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() {
		s.logger.Warn("save skipped: journal store is not ready")
		return nil
	}
	if s.pending.empty() {
		return nil
	}

	changes := s.pending
	s.pending = newChangeSet()

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return changes.apply(ctx, tx)
	})
	if err != nil {
		s.logger.Error("failed to save journal changes; rolled back",
			slog.Int("changes", changes.size()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("sqlite: saving changes: %w", err)
	}

	s.writes.Add(1)
	return nil
}

// DeleteAll removes every permission, category and tag, and drops anything
// staged.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.readyLocked() {
		s.logger.Warn("reset skipped: journal store is not ready")
		return nil
	}
	s.pending = newChangeSet()

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, table := range []string{"permissions", "categories", "tags"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to reset journal; rolled back", slog.String("error", err.Error()))
		return fmt.Errorf("sqlite: deleting all records: %w", err)
	}

	s.writes.Add(1)
	return nil
}

func cloneCategory(c model.Category) model.Category {
	c.IconName = cloneString(c.IconName)
	c.ColorHex = cloneString(c.ColorHex)
	return c
}

func cloneTag(t model.Tag) model.Tag {
	t.ColorHex = cloneString(t.ColorHex)
	t.IconName = cloneString(t.IconName)
	return t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
