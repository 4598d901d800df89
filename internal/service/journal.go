// Package service contains the journal's business logic.
//
// THE LAYERS:
//
//	Handler / CLI (presentation) → Journal (rules, orchestration) → repository.Store (persistence)
//
// Journal is the only place that validates input, stamps timestamps, hands
// out ids and decides when staged changes are saved. Presentation code never
// talks to the store directly, and the store never validates anything.
//
// READINESS:
// Every mutation checks store readiness first. An unready store turns a
// mutation into apperror.ErrUnavailable with nothing staged, and turns
// every read into an empty result with a nil error, so screens can render
// an empty journal without special casing.
//
// CHANGE SIGNALS:
// After every successful save the Journal rotates its refresh token and
// publishes notify.EventJournalChanged. Failed or skipped mutations signal
// nothing.
//
// CONCURRENCY:
// A Journal is shared by every HTTP request. Mutations run one at a time,
// each staging and saving its own changes before the next one starts;
// reads do not wait for them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/sakif/permission-journal/internal/apperror"
	"github.com/sakif/permission-journal/internal/model"
	"github.com/sakif/permission-journal/internal/notify"
	"github.com/sakif/permission-journal/internal/repository"
)

// Validation limits.
const (
	MaxStatementLength = 2000
	MaxNameLength      = 100
	DefaultRecentCount = 5
)

// Journal is the data access layer over a repository.Store.
type Journal struct {
	store  repository.Store
	events notify.Publisher
	logger *slog.Logger

	loc   *time.Location
	now   func() time.Time
	newID func() string

	// write is held by every mutation from its first store read until
	// its save returns. The store has one unit of work, so two mutations
	// staging at once would save (or discard) each other's changes.
	write sync.Mutex

	mu      sync.Mutex
	refresh string
}

// Option customizes a Journal.
type Option func(*Journal)

// WithLocation sets the time zone calendar days are computed in. The
// default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(j *Journal) {
		if loc != nil {
			j.loc = loc
		}
	}
}

// WithClock replaces time.Now. Tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// NewJournal returns a Journal over store. events may be nil when nothing
// listens for changes.
func NewJournal(store repository.Store, events notify.Publisher, logger *slog.Logger, opts ...Option) *Journal {
	j := &Journal{
		store:   store,
		events:  events,
		logger:  logger,
		loc:     time.Local,
		now:     time.Now,
		newID:   func() string { return xid.New().String() },
		refresh: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// IsReady reports whether the underlying store can be used.
func (j *Journal) IsReady() bool {
	return j.store.IsReady()
}

// Location returns the time zone used for calendar computations.
func (j *Journal) Location() *time.Location {
	return j.loc
}

// RefreshToken changes after every successful mutation. UI observers compare
// it with the value they last rendered.
func (j *Journal) RefreshToken() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.refresh
}

// timestamp returns the current time in the precision the store keeps.
func (j *Journal) timestamp() time.Time {
	return j.now().UTC().Truncate(time.Millisecond)
}

// commit saves staged changes and signals observers on success.
func (j *Journal) commit(ctx context.Context, action string) error {
	if err := j.store.Save(ctx); err != nil {
		j.logger.Error("failed to save journal",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", action, err)
	}
	j.changed()
	return nil
}

func (j *Journal) changed() {
	j.mu.Lock()
	j.refresh = uuid.NewString()
	j.mu.Unlock()
	if j.events != nil {
		j.events.Publish(notify.EventJournalChanged)
	}
}

func (j *Journal) requireReady(operation string) error {
	if !j.store.IsReady() {
		j.logger.Warn("journal store not ready", slog.String("operation", operation))
		return apperror.Unavailable(operation)
	}
	return nil
}

// =========================================================================
// PERMISSIONS
// =========================================================================

// PermissionInput carries the user-editable fields of a permission.
type PermissionInput struct {
	Statement       string
	Date            time.Time
	Category        *string
	EmotionalTags   []string
	ExpectedImpact  *string
	ActualOutcome   *string
	EmotionalImpact int
}

func (in PermissionInput) validate() (string, error) {
	statement := strings.TrimSpace(in.Statement)
	if statement == "" {
		return "", apperror.ValidationFailed("statement", "statement is required")
	}
	if len(statement) > MaxStatementLength {
		return "", apperror.ValidationFailed("statement",
			fmt.Sprintf("statement must be %d characters or less", MaxStatementLength))
	}
	if in.Date.IsZero() {
		return "", apperror.ValidationFailed("date", "date is required")
	}
	if in.EmotionalImpact < model.MinEmotionalImpact || in.EmotionalImpact > model.MaxEmotionalImpact {
		return "", apperror.ValidationFailed("emotionalImpact",
			fmt.Sprintf("emotional impact must be between %d and %d", model.MinEmotionalImpact, model.MaxEmotionalImpact))
	}
	return statement, nil
}

// ListPermissions returns every permission, newest date first.
func (j *Journal) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	if !j.store.IsReady() {
		return []model.Permission{}, nil
	}
	ps, err := j.store.Permissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	return ps, nil
}

// FindPermissions returns the permissions matching filter, newest date first.
func (j *Journal) FindPermissions(ctx context.Context, filter model.PermissionFilter) ([]model.Permission, error) {
	if !j.store.IsReady() {
		return []model.Permission{}, nil
	}
	ps, err := j.store.FindPermissions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("finding permissions: %w", err)
	}
	return ps, nil
}

// Permission returns one permission by id.
func (j *Journal) Permission(ctx context.Context, id string) (*model.Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "permission ID is required")
	}
	if !j.store.IsReady() {
		return nil, apperror.NotFound("permission", id)
	}
	return j.store.PermissionByID(ctx, id)
}

// CreatePermission validates in and records a new permission dated in.Date.
// A blank statement is rejected and nothing is staged.
func (j *Journal) CreatePermission(ctx context.Context, in PermissionInput) (*model.Permission, error) {
	j.write.Lock()
	defer j.write.Unlock()

	statement, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("create permission"); err != nil {
		return nil, err
	}

	now := j.timestamp()
	p := model.Permission{
		ID:              j.newID(),
		Statement:       statement,
		Date:            in.Date.UTC().Truncate(time.Millisecond),
		Category:        normalizeName(in.Category),
		EmotionalTags:   normalizeTags(in.EmotionalTags),
		ExpectedImpact:  normalizeText(in.ExpectedImpact),
		ActualOutcome:   normalizeText(in.ActualOutcome),
		EmotionalImpact: in.EmotionalImpact,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	j.store.PutPermission(p)
	if err := j.commit(ctx, "creating permission"); err != nil {
		return nil, err
	}

	j.logger.Info("permission created",
		slog.String("id", p.ID),
		slog.Int("tags", len(p.EmotionalTags)),
	)
	return &p, nil
}

// UpdatePermission replaces the editable fields of permission id with in and
// stamps UpdatedAt. CreatedAt never changes.
func (j *Journal) UpdatePermission(ctx context.Context, id string, in PermissionInput) (*model.Permission, error) {
	j.write.Lock()
	defer j.write.Unlock()

	statement, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("update permission"); err != nil {
		return nil, err
	}

	p, err := j.store.PermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Statement = statement
	p.Date = in.Date.UTC().Truncate(time.Millisecond)
	p.Category = normalizeName(in.Category)
	p.EmotionalTags = normalizeTags(in.EmotionalTags)
	p.ExpectedImpact = normalizeText(in.ExpectedImpact)
	p.ActualOutcome = normalizeText(in.ActualOutcome)
	p.EmotionalImpact = in.EmotionalImpact
	p.UpdatedAt = j.timestamp()

	j.store.PutPermission(*p)
	if err := j.commit(ctx, "updating permission"); err != nil {
		return nil, err
	}

	j.logger.Info("permission updated", slog.String("id", p.ID))
	return p, nil
}

// RecordOutcome sets the actual outcome and impact of an existing permission,
// leaving every other field alone.
func (j *Journal) RecordOutcome(ctx context.Context, id, outcome string, impact int) (*model.Permission, error) {
	j.write.Lock()
	defer j.write.Unlock()

	if impact < model.MinEmotionalImpact || impact > model.MaxEmotionalImpact {
		return nil, apperror.ValidationFailed("emotionalImpact",
			fmt.Sprintf("emotional impact must be between %d and %d", model.MinEmotionalImpact, model.MaxEmotionalImpact))
	}
	if err := j.requireReady("record outcome"); err != nil {
		return nil, err
	}

	p, err := j.store.PermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ActualOutcome = normalizeText(&outcome)
	p.EmotionalImpact = impact
	p.UpdatedAt = j.timestamp()

	j.store.PutPermission(*p)
	if err := j.commit(ctx, "recording outcome"); err != nil {
		return nil, err
	}

	j.logger.Info("outcome recorded", slog.String("id", p.ID), slog.Int("impact", impact))
	return p, nil
}

// ReflectionPrefix introduces every reflection appended after the first.
const ReflectionPrefix = "Reflection: "

// AddReflection adds a later reflection to a permission. The first one
// becomes the actual outcome; later ones are appended to it on a new
// paragraph. The impact rating is left alone.
func (j *Journal) AddReflection(ctx context.Context, id, text string) (*model.Permission, error) {
	j.write.Lock()
	defer j.write.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("reflection", "reflection is required")
	}
	if err := j.requireReady("add reflection"); err != nil {
		return nil, err
	}

	p, err := j.store.PermissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.HasOutcome() {
		p.ActualOutcome = model.StringPtr(*p.ActualOutcome + "\n\n" + ReflectionPrefix + text)
	} else {
		p.ActualOutcome = model.StringPtr(text)
	}
	p.UpdatedAt = j.timestamp()

	j.store.PutPermission(*p)
	if err := j.commit(ctx, "adding reflection"); err != nil {
		return nil, err
	}

	j.logger.Info("reflection added", slog.String("id", p.ID))
	return p, nil
}

// DeletePermission removes one permission immediately.
func (j *Journal) DeletePermission(ctx context.Context, id string) error {
	j.write.Lock()
	defer j.write.Unlock()

	if err := j.requireReady("delete permission"); err != nil {
		return err
	}
	if _, err := j.store.PermissionByID(ctx, id); err != nil {
		return err
	}

	j.store.DeletePermission(id)
	if err := j.commit(ctx, "deleting permission"); err != nil {
		return err
	}

	j.logger.Info("permission deleted", slog.String("id", id))
	return nil
}

// =========================================================================
// CATEGORIES
// =========================================================================

// ListCategories returns every category in creation order.
func (j *Journal) ListCategories(ctx context.Context) ([]model.Category, error) {
	if !j.store.IsReady() {
		return []model.Category{}, nil
	}
	cs, err := j.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return cs, nil
}

// Category returns one category by id.
func (j *Journal) Category(ctx context.Context, id string) (*model.Category, error) {
	if !j.store.IsReady() {
		return nil, apperror.NotFound("category", id)
	}
	return j.store.CategoryByID(ctx, id)
}

// CreateCategory adds a category whose Order is the number of categories
// that exist right now. Deleting a category never renumbers the rest, so
// Order values can repeat after a delete.
func (j *Journal) CreateCategory(ctx context.Context, name string, iconName, colorHex *string) (*model.Category, error) {
	j.write.Lock()
	defer j.write.Unlock()

	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("create category"); err != nil {
		return nil, err
	}

	count, err := j.store.CountCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting categories: %w", err)
	}

	c := model.Category{
		ID:       j.newID(),
		Name:     name,
		IconName: normalizeText(iconName),
		ColorHex: normalizeText(colorHex),
		Order:    count,
	}
	j.store.PutCategory(c)
	if err := j.commit(ctx, "creating category"); err != nil {
		return nil, err
	}

	j.logger.Info("category created", slog.String("id", c.ID), slog.Int("order", c.Order))
	return &c, nil
}

// RenameCategory renames a category and every permission filed under its
// old name, in one save.
func (j *Journal) RenameCategory(ctx context.Context, id, name string) (*model.Category, error) {
	j.write.Lock()
	defer j.write.Unlock()

	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("rename category"); err != nil {
		return nil, err
	}

	c, err := j.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldName := c.Name
	if oldName == name {
		return c, nil
	}

	c.Name = name
	j.store.PutCategory(*c)

	filed, err := j.store.FindPermissions(ctx, model.PermissionFilter{Category: &oldName})
	if err != nil {
		j.store.Rollback()
		return nil, fmt.Errorf("renaming category: %w", err)
	}
	now := j.timestamp()
	for _, p := range filed {
		p.Category = model.StringPtr(name)
		p.UpdatedAt = now
		j.store.PutPermission(p)
	}

	if err := j.commit(ctx, "renaming category"); err != nil {
		return nil, err
	}

	j.logger.Info("category renamed",
		slog.String("id", c.ID),
		slog.String("from", oldName),
		slog.String("to", name),
		slog.Int("permissions", len(filed)),
	)
	return c, nil
}

// DeleteCategory removes a category. Permissions filed under its name keep
// that name.
func (j *Journal) DeleteCategory(ctx context.Context, id string) error {
	j.write.Lock()
	defer j.write.Unlock()

	if err := j.requireReady("delete category"); err != nil {
		return err
	}
	if _, err := j.store.CategoryByID(ctx, id); err != nil {
		return err
	}

	j.store.DeleteCategory(id)
	if err := j.commit(ctx, "deleting category"); err != nil {
		return err
	}

	j.logger.Info("category deleted", slog.String("id", id))
	return nil
}

// =========================================================================
// TAGS
// =========================================================================

// ListTags returns every tag ordered by name.
func (j *Journal) ListTags(ctx context.Context) ([]model.Tag, error) {
	if !j.store.IsReady() {
		return []model.Tag{}, nil
	}
	ts, err := j.store.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return ts, nil
}

// Tag returns one tag by id.
func (j *Journal) Tag(ctx context.Context, id string) (*model.Tag, error) {
	if !j.store.IsReady() {
		return nil, apperror.NotFound("tag", id)
	}
	return j.store.TagByID(ctx, id)
}

// CreateTag adds a tag.
func (j *Journal) CreateTag(ctx context.Context, name string, colorHex, iconName *string) (*model.Tag, error) {
	j.write.Lock()
	defer j.write.Unlock()

	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("create tag"); err != nil {
		return nil, err
	}

	t := model.Tag{
		ID:       j.newID(),
		Name:     name,
		ColorHex: normalizeText(colorHex),
		IconName: normalizeText(iconName),
	}
	j.store.PutTag(t)
	if err := j.commit(ctx, "creating tag"); err != nil {
		return nil, err
	}

	j.logger.Info("tag created", slog.String("id", t.ID))
	return &t, nil
}

// RenameTag renames a tag and replaces the old name on every permission
// carrying it, in one save.
func (j *Journal) RenameTag(ctx context.Context, id, name string) (*model.Tag, error) {
	j.write.Lock()
	defer j.write.Unlock()

	name, err := validateName("name", name)
	if err != nil {
		return nil, err
	}
	if err := j.requireReady("rename tag"); err != nil {
		return nil, err
	}

	t, err := j.store.TagByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldName := t.Name
	if oldName == name {
		return t, nil
	}

	t.Name = name
	j.store.PutTag(*t)

	tagged, err := j.store.FindPermissions(ctx, model.PermissionFilter{Tag: oldName})
	if err != nil {
		j.store.Rollback()
		return nil, fmt.Errorf("renaming tag: %w", err)
	}
	now := j.timestamp()
	for _, p := range tagged {
		for i, tag := range p.EmotionalTags {
			if tag == oldName {
				p.EmotionalTags[i] = name
			}
		}
		p.EmotionalTags = normalizeTags(p.EmotionalTags)
		p.UpdatedAt = now
		j.store.PutPermission(p)
	}

	if err := j.commit(ctx, "renaming tag"); err != nil {
		return nil, err
	}

	j.logger.Info("tag renamed",
		slog.String("id", t.ID),
		slog.String("from", oldName),
		slog.String("to", name),
		slog.Int("permissions", len(tagged)),
	)
	return t, nil
}

// DeleteTag removes a tag. Permissions carrying its name keep it.
func (j *Journal) DeleteTag(ctx context.Context, id string) error {
	j.write.Lock()
	defer j.write.Unlock()

	if err := j.requireReady("delete tag"); err != nil {
		return err
	}
	if _, err := j.store.TagByID(ctx, id); err != nil {
		return err
	}

	j.store.DeleteTag(id)
	if err := j.commit(ctx, "deleting tag"); err != nil {
		return err
	}

	j.logger.Info("tag deleted", slog.String("id", id))
	return nil
}

// =========================================================================
// BULK
// =========================================================================

// Records is a complete set of journal records, as read from a backup.
type Records struct {
	Permissions []model.Permission
	Categories  []model.Category
	Tags        []model.Tag
}

// Import upserts records as given, keeping their ids and timestamps. Records
// with a blank statement or name are rejected before anything is staged.
func (j *Journal) Import(ctx context.Context, records Records) error {
	j.write.Lock()
	defer j.write.Unlock()

	var errs []error
	for _, p := range records.Permissions {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Statement) == "" {
			errs = append(errs, fmt.Errorf("permission %q: id and statement are required", p.ID))
		}
	}
	for _, c := range records.Categories {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			errs = append(errs, fmt.Errorf("category %q: id and name are required", c.ID))
		}
	}
	for _, t := range records.Tags {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Errorf("tag %q: id and name are required", t.ID))
		}
	}
	if len(errs) > 0 {
		return apperror.ValidationFailed("records", errors.Join(errs...).Error())
	}
	if err := j.requireReady("import records"); err != nil {
		return err
	}

	for _, p := range records.Permissions {
		j.store.PutPermission(p)
	}
	for _, c := range records.Categories {
		j.store.PutCategory(c)
	}
	for _, t := range records.Tags {
		j.store.PutTag(t)
	}
	if err := j.commit(ctx, "importing records"); err != nil {
		return err
	}

	j.logger.Info("records imported",
		slog.Int("permissions", len(records.Permissions)),
		slog.Int("categories", len(records.Categories)),
		slog.Int("tags", len(records.Tags)),
	)
	return nil
}

// Snapshot returns every record currently in the journal.
func (j *Journal) Snapshot(ctx context.Context) (Records, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return Records{}, err
	}
	cs, err := j.ListCategories(ctx)
	if err != nil {
		return Records{}, err
	}
	ts, err := j.ListTags(ctx)
	if err != nil {
		return Records{}, err
	}
	return Records{Permissions: ps, Categories: cs, Tags: ts}, nil
}

// ResetAll deletes every permission, category and tag.
func (j *Journal) ResetAll(ctx context.Context) error {
	j.write.Lock()
	defer j.write.Unlock()

	if err := j.requireReady("reset journal"); err != nil {
		return err
	}
	if err := j.store.DeleteAll(ctx); err != nil {
		j.logger.Error("failed to reset journal", slog.String("error", err.Error()))
		return fmt.Errorf("resetting journal: %w", err)
	}
	j.changed()
	j.logger.Warn("journal reset: all records deleted")
	return nil
}

// =========================================================================
// NORMALIZATION
// =========================================================================

func validateName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.ValidationFailed(field, "name is required")
	}
	if len(name) > MaxNameLength {
		return "", apperror.ValidationFailed(field,
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	return name, nil
}

// normalizeName trims a category reference; blank means none.
func normalizeName(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(strings.TrimSpace(*s))
}

// normalizeText keeps free text as typed but treats "" as unset.
func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	return model.StringPtr(*s)
}

// normalizeTags trims tag names, drops blanks and duplicates, and keeps the
// first-seen order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
