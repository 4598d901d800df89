package backup_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/permission-journal/internal/backup"
	"github.com/sakif/permission-journal/internal/model"
	"github.com/sakif/permission-journal/internal/repository/sqlite"
	"github.com/sakif/permission-journal/internal/service"
)

func newJournal(t *testing.T) *service.Journal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store := sqlite.New(sqlite.Config{InMemory: true}, logger)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })
	return service.NewJournal(store, nil, logger, service.WithLocation(time.UTC))
}

func TestExportThenRestore_ReconstructsRecords(t *testing.T) {
	ctx := context.Background()
	source := newJournal(t)

	p, err := source.CreatePermission(ctx, service.PermissionInput{
		Statement:       "I may take the trip",
		Date:            time.Date(2024, 7, 4, 15, 30, 0, 250_000_000, time.UTC),
		Category:        model.StringPtr("Travel"),
		EmotionalTags:   []string{"free", "excited"},
		ExpectedImpact:  model.StringPtr("rest"),
		EmotionalImpact: 9,
	})
	require.NoError(t, err)
	c, err := source.CreateCategory(ctx, "Travel", model.StringPtr("airplane"), nil)
	require.NoError(t, err)
	tag, err := source.CreateTag(ctx, "free", nil, model.StringPtr("bird"))
	require.NoError(t, err)

	doc, err := backup.Export(ctx, source, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, backup.Write(&buf, doc))

	read, err := backup.Read(&buf)
	require.NoError(t, err)

	target := newJournal(t)
	require.NoError(t, backup.Restore(ctx, target, read))

	got, err := target.Permission(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Statement, got.Statement)
	assert.True(t, p.Date.Equal(got.Date))
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, p.Category, got.Category)
	assert.Equal(t, p.EmotionalTags, got.EmotionalTags)
	assert.Equal(t, p.ExpectedImpact, got.ExpectedImpact)
	assert.Nil(t, got.ActualOutcome, "empty strings come back as unset")
	assert.Equal(t, p.EmotionalImpact, got.EmotionalImpact)

	gotCategory, err := target.Category(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, *c, *gotCategory)

	gotTag, err := target.Tag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, *tag, *gotTag)
}

func TestWrite_Format(t *testing.T) {
	records := service.Records{
		Permissions: []model.Permission{{
			ID:        "p1",
			Statement: "I may",
			Date:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		}},
	}
	doc := backup.FromRecords(records, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, backup.Write(&buf, doc))
	out := buf.String()

	assert.Less(t, strings.Index(out, `"categories"`), strings.Index(out, `"version"`), "keys are sorted")
	assert.Contains(t, out, `"exportDate": "2024-02-01T00:00:00.000Z"`)
	assert.Contains(t, out, `"version": "1.0"`)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	perm := raw["permissions"].([]any)[0].(map[string]any)
	assert.Equal(t, "", perm["category"], "unset text is written as an empty string")
	assert.Equal(t, []any{}, perm["emotionalTags"])
	assert.Equal(t, "2024-01-02T03:04:05.000Z", perm["date"])
}

func TestRead_RejectsOtherVersions(t *testing.T) {
	_, err := backup.Read(strings.NewReader(`{"version":"2.0"}`))
	assert.ErrorIs(t, err, backup.ErrUnsupportedVersion)

	_, err = backup.Read(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestRecords_BadTime(t *testing.T) {
	doc := &backup.Document{
		Version:     backup.Version,
		Permissions: []backup.Permission{{ID: "p1", Statement: "I may", Date: "yesterday"}},
	}
	_, err := doc.Records()
	assert.ErrorContains(t, err, "p1")
}
