package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/permission-journal/internal/model"
	"github.com/sakif/permission-journal/internal/service"
)

// ===== CATEGORIES =====

func TestCategories_CreateListRename(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Rest", "colorHex": "#88AAFF"})
	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())
	rest := decode[model.Category](t, rr)
	assert.Equal(t, 0, rest.Order)
	assert.Equal(t, "#88AAFF", model.StringValue(rest.ColorHex))

	rr = f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Treats"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, decode[model.Category](t, rr).Order)

	createPermission(t, f, map[string]any{"statement": "nap", "date": "2024-06-01", "category": "Rest"})

	rr = f.do(t, http.MethodPut, "/api/categories/"+rest.ID, map[string]any{"name": "Leisure"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Leisure", decode[model.Category](t, rr).Name)

	list := decode[[]model.Category](t, f.do(t, http.MethodGet, "/api/categories", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "Leisure", list[0].Name)
	assert.Equal(t, "Treats", list[1].Name)

	filed := decode[[]model.Permission](t, f.do(t, http.MethodGet, "/api/permissions?category=Leisure", nil))
	require.Len(t, filed, 1, "rename moves filed permissions along")
	assert.Equal(t, "nap", filed[0].Statement)

	got := decode[model.Category](t, f.do(t, http.MethodGet, "/api/categories/"+rest.ID, nil))
	assert.Equal(t, "Leisure", got.Name)
}

func TestCategories_Validation(t *testing.T) {
	f := newFixture(t)
	assertError(t, f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "  "}), http.StatusBadRequest, "validation_error")
	assertError(t, f.do(t, http.MethodPut, "/api/categories/none", map[string]any{"name": "x"}), http.StatusNotFound, "not_found")
	assertError(t, f.do(t, http.MethodGet, "/api/categories/none", nil), http.StatusNotFound, "not_found")
}

func TestCategories_DeleteKeepsPermissionNames(t *testing.T) {
	f := newFixture(t)
	c := decode[model.Category](t, f.do(t, http.MethodPost, "/api/categories", map[string]any{"name": "Rest"}))
	createPermission(t, f, map[string]any{"statement": "nap", "date": "2024-06-01", "category": "Rest"})

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/categories/"+c.ID, nil).Code)

	assert.JSONEq(t, `[]`, f.do(t, http.MethodGet, "/api/categories", nil).Body.String())
	filed := decode[[]model.Permission](t, f.do(t, http.MethodGet, "/api/permissions?category=Rest", nil))
	assert.Len(t, filed, 1)
}

// ===== TAGS =====

func TestTags_CRUD(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/tags", map[string]any{"name": "Joy", "iconName": "sun"})
	require.Equal(t, http.StatusCreated, rr.Code)
	joy := decode[model.Tag](t, rr)
	f.do(t, http.MethodPost, "/api/tags", map[string]any{"name": "Calm"})

	list := decode[[]model.Tag](t, f.do(t, http.MethodGet, "/api/tags", nil))
	require.Len(t, list, 2)
	assert.Equal(t, "Calm", list[0].Name, "tags are listed by name")

	createPermission(t, f, map[string]any{"statement": "dance", "date": "2024-06-01", "emotionalTags": []string{"Joy"}})

	rr = f.do(t, http.MethodPut, "/api/tags/"+joy.ID, map[string]any{"name": "Delight"})
	require.Equal(t, http.StatusOK, rr.Code)
	tagged := decode[[]model.Permission](t, f.do(t, http.MethodGet, "/api/permissions?tag=Delight", nil))
	assert.Len(t, tagged, 1)

	got := decode[model.Tag](t, f.do(t, http.MethodGet, "/api/tags/"+joy.ID, nil))
	assert.Equal(t, "sun", model.StringValue(got.IconName))

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/tags/"+joy.ID, nil).Code)
	assertError(t, f.do(t, http.MethodGet, "/api/tags/"+joy.ID, nil), http.StatusNotFound, "not_found")
}

// ===== INSIGHTS =====

func TestInsightsEndpoints(t *testing.T) {
	f := newFixture(t)
	createPermission(t, f, map[string]any{"statement": "a", "date": "2024-06-01", "category": "Rest", "emotionalTags": []string{"Calm"}, "emotionalImpact": 9})
	createPermission(t, f, map[string]any{"statement": "b", "date": "2024-06-02", "category": "Rest", "emotionalTags": []string{"Calm"}, "emotionalImpact": 8})
	createPermission(t, f, map[string]any{"statement": "c", "date": "2024-06-03", "emotionalImpact": 3})

	rr := f.do(t, http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	in := decode[service.Insights](t, rr)
	assert.True(t, in.Ready)
	assert.Equal(t, 3, in.TotalPermissions)
	assert.Equal(t, 2, in.HighImpact)
	assert.Equal(t, 3, in.Streak)
	require.NotNil(t, in.MostCommonTag)
	assert.Equal(t, "Calm", *in.MostCommonTag)

	gallery := decode[[]model.Permission](t, f.do(t, http.MethodGet, "/api/gallery", nil))
	require.Len(t, gallery, 2)
	assert.Equal(t, "a", gallery[0].Statement, "strongest impact first")

	timeline := decode[[]model.Permission](t, f.do(t, http.MethodGet, "/api/timeline?month=2024-06&tag=Calm", nil))
	assert.Len(t, timeline, 2)

	assertError(t, f.do(t, http.MethodGet, "/api/timeline?month=bad", nil), http.StatusBadRequest, "validation_error")
}

func TestInsights_UnreadyStoreIsEmpty(t *testing.T) {
	f := newUnreadyFixture(t)
	rr := f.do(t, http.MethodGet, "/api/insights", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ready":false`)
	assert.Contains(t, rr.Body.String(), `"recent":[]`)
}
