package connecteam

import "github.com/goliatone/go-hr-ingest/core"

// WorkerSpec maps Connecteam user webhooks.
func WorkerSpec() core.MappingSpec {
	return core.MappingSpec{
		ProviderID:    ProviderID,
		Entity:        core.EntityWorker,
		KeySources:    []string{"user_id"},
		EventIDSource: "request_id",
		Prepare: []core.PrepareFunc{
			core.StripPrefixes("data_"),
			core.StripPrefixes("user_"),
			core.RenameSources(map[string]string{"id": "user_id"}),
		},
		Fields: []core.FieldMapping{
			{Target: "first_name", Sources: []string{"first_name"}, Transform: core.TrimTransform},
			{Target: "last_name", Sources: []string{"last_name"}, Transform: core.TrimTransform},
			{Target: "email", Sources: []string{"email"}, Transform: core.LowercaseTransform},
			{Target: "phone", Sources: []string{"phone_number", "phone"}, Transform: core.TrimTransform},
			{Target: "title", Sources: []string{"title"}, Transform: core.TrimTransform},
			{Target: "employment_status", Sources: []string{"type", "user_type"}, Transform: core.LowercaseTransform},
			{Target: "is_active", Sources: []string{"is_archived"}, Transform: core.NegateBoolTransform},
			{Target: "source_updated_at", Sources: []string{"event_timestamp", "modified_at"}},
		},
		Enrich: []core.EnrichFunc{core.JoinFields("full_name", "first_name", "last_name")},
	}
}

