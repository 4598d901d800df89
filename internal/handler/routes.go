package handler

import "github.com/go-chi/chi/v5"

// Handlers groups the resource handlers served under /api.
type Handlers struct {
	Permissions  *PermissionHandler
	Categories   *CategoryHandler
	Tags         *TagHandler
	Insights     *InsightsHandler
	Backups      *BackupHandler
	Events       *EventsHandler
	RemoteConfig *RemoteConfigHandler
}

// Mount registers every journal route on r, relative to the /api prefix.
// Health is not included: the server mounts it outside authentication.
func (h Handlers) Mount(r chi.Router) {
	r.Route("/permissions", func(r chi.Router) {
		r.Get("/", h.Permissions.HandleList)
		r.Post("/", h.Permissions.HandleCreate)
		r.Get("/{id}", h.Permissions.HandleGet)
		r.Put("/{id}", h.Permissions.HandleUpdate)
		r.Delete("/{id}", h.Permissions.HandleDelete)
		r.Post("/{id}/outcome", h.Permissions.HandleRecordOutcome)
		r.Post("/{id}/reflection", h.Permissions.HandleAddReflection)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.Categories.HandleList)
		r.Post("/", h.Categories.HandleCreate)
		r.Get("/{id}", h.Categories.HandleGet)
		r.Put("/{id}", h.Categories.HandleRename)
		r.Delete("/{id}", h.Categories.HandleDelete)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.Tags.HandleList)
		r.Post("/", h.Tags.HandleCreate)
		r.Get("/{id}", h.Tags.HandleGet)
		r.Put("/{id}", h.Tags.HandleRename)
		r.Delete("/{id}", h.Tags.HandleDelete)
	})

	r.Get("/insights", h.Insights.HandleInsights)
	r.Get("/gallery", h.Insights.HandleGallery)
	r.Get("/timeline", h.Insights.HandleTimeline)

	r.Get("/backup", h.Backups.HandleExport)
	r.Post("/backup", h.Backups.HandleRestore)
	r.Delete("/journal", h.Backups.HandleReset)

	r.Get("/events", h.Events.HandleStream)
	r.Get("/remote-config", h.RemoteConfig.HandleGet)
}
