package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/model"
)

// timeLayout is fixed width, so stored timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// permissionRow mirrors the permissions table. Tags are a JSON array.
type permissionRow struct {
	ID              string         `db:"id"`
	Statement       string         `db:"statement"`
	Date            string         `db:"date"`
	Category        sql.NullString `db:"category"`
	EmotionalTags   string         `db:"emotional_tags"`
	ExpectedImpact  sql.NullString `db:"expected_impact"`
	ActualOutcome   sql.NullString `db:"actual_outcome"`
	EmotionalImpact int            `db:"emotional_impact"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

const permissionColumns = `id, statement, date, category, emotional_tags, expected_impact,
	actual_outcome, emotional_impact, created_at, updated_at`

func (r permissionRow) toModel() (model.Permission, error) {
	p := model.Permission{
		ID:              r.ID,
		Statement:       r.Statement,
		Category:        nullToPtr(r.Category),
		ExpectedImpact:  nullToPtr(r.ExpectedImpact),
		ActualOutcome:   nullToPtr(r.ActualOutcome),
		EmotionalImpact: r.EmotionalImpact,
		EmotionalTags:   []string{},
	}

	var err error
	if p.Date, err = parseTime(r.Date); err != nil {
		return model.Permission{}, err
	}
	if p.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return model.Permission{}, err
	}
	if p.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return model.Permission{}, err
	}
	if r.EmotionalTags != "" {
		if err := json.Unmarshal([]byte(r.EmotionalTags), &p.EmotionalTags); err != nil {
			return model.Permission{}, fmt.Errorf("decoding tags of permission %s: %w", r.ID, err)
		}
	}
	if p.EmotionalTags == nil {
		p.EmotionalTags = []string{}
	}
	return p, nil
}

func upsertPermission(ctx context.Context, tx *sqlx.Tx, p model.Permission) error {
	tags := p.EmotionalTags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encoding tags of permission %s: %w", p.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO permissions (`+permissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			statement        = excluded.statement,
			date             = excluded.date,
			category         = excluded.category,
			emotional_tags   = excluded.emotional_tags,
			expected_impact  = excluded.expected_impact,
			actual_outcome   = excluded.actual_outcome,
			emotional_impact = excluded.emotional_impact,
			created_at       = excluded.created_at,
			updated_at       = excluded.updated_at`,
		p.ID, p.Statement, formatTime(p.Date), ptrToNull(p.Category), string(encoded),
		ptrToNull(p.ExpectedImpact), ptrToNull(p.ActualOutcome), p.EmotionalImpact,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("writing permission %s: %w", p.ID, err)
	}
	return nil
}

// Permissions returns every permission, newest date first. Staged changes
// are included.
func (s *Store) Permissions(ctx context.Context) ([]model.Permission, error) {
	return s.FindPermissions(ctx, model.PermissionFilter{})
}

// PermissionByID returns the permission with the given id, or an
// apperror.NotFound error.
func (s *Store) PermissionByID(ctx context.Context, id string) (*model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, deleted := s.pending.deletedPermissions[id]; deleted {
		return nil, apperror.NotFound("permission", id)
	}
	if p, ok := s.pending.permissions[id]; ok {
		c := p.Clone()
		return &c, nil
	}
	if !s.readyLocked() {
		return nil, apperror.NotFound("permission", id)
	}

	var row permissionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+permissionColumns+` FROM permissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("permission", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting permission %s: %w", id, err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &p, nil
}

// FindPermissions returns the permissions matching filter, newest date
// first (ties broken by newest creation, then id).
//
// Stored rows are narrowed in SQL; staged changes are then overlaid and
// matched in memory, so an unsaved edit that moves a record in or out of
// the filter is honored.
func (s *Store) FindPermissions(ctx context.Context, filter model.PermissionFilter) ([]model.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored []model.Permission
	if s.readyLocked() {
		query, args, err := buildPermissionQuery(filter).ToSql()
		if err != nil {
			return nil, fmt.Errorf("sqlite: building permission query: %w", err)
		}

		var rows []permissionRow
		if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("sqlite: listing permissions: %w", err)
		}
		stored = make([]model.Permission, 0, len(rows))
		for _, row := range rows {
			p, err := row.toModel()
			if err != nil {
				return nil, fmt.Errorf("sqlite: %w", err)
			}
			stored = append(stored, p)
		}
	}

	result := make([]model.Permission, 0, len(stored)+len(s.pending.permissions))
	for _, p := range stored {
		if _, staged := s.pending.permissions[p.ID]; staged {
			continue
		}
		if _, deleted := s.pending.deletedPermissions[p.ID]; deleted {
			continue
		}
		// SQL TRIM only strips spaces; Match has the final say on outcomes.
		if filter.Match(p) {
			result = append(result, p)
		}
	}
	for _, p := range s.pending.permissions {
		if filter.Match(p) {
			result = append(result, p.Clone())
		}
	}

	sortPermissions(result)
	return result, nil
}

func buildPermissionQuery(filter model.PermissionFilter) sq.SelectBuilder {
	q := sq.Select(permissionColumns).From("permissions")

	if filter.Category != nil {
		q = q.Where(sq.Eq{"category": *filter.Category})
	}
	if filter.Tag != "" {
		q = q.Where(`EXISTS (SELECT 1 FROM json_each(permissions.emotional_tags) WHERE value = ?)`, filter.Tag)
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"date": formatTime(filter.From)})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.Lt{"date": formatTime(filter.To)})
	}
	if filter.MinImpact > 0 {
		q = q.Where(sq.GtOrEq{"emotional_impact": filter.MinImpact})
	}
	if filter.WithOutcome {
		q = q.Where(`actual_outcome IS NOT NULL AND TRIM(actual_outcome) <> ''`)
	}

	return q.OrderBy("date DESC", "created_at DESC", "id DESC")
}

func sortPermissions(ps []model.Permission) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
