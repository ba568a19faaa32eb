package httpapi

func openapiSpec() map[string]any {
	tenantHeaders := []map[string]any{
		{"name": "X-Tenant-ID", "in": "header", "required": true, "schema": map[string]string{"type": "string"}},
		{"name": "X-Actor-ID", "in": "header", "required": false, "schema": map[string]string{"type": "string"}},
	}
	op := func(summary string) map[string]any {
		return map[string]any{"summary": summary, "parameters": tenantHeaders}
	}
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "activitylog",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/activity/contexts": map[string]any{
				"post": op("Open an editing context"),
			},
			"/v1/activity/contexts/{contextID}": map[string]any{
				"delete": op("Tear down an editing context (background flush)"),
			},
			"/v1/activity/contexts/{contextID}/changes": map[string]any{
				"post": op("Record parameter edits"),
			},
			"/v1/activity/contexts/{contextID}/items": map[string]any{
				"post": op("Queue added items"),
			},
			"/v1/activity/contexts/{contextID}/close": map[string]any{
				"post": op("Flush and close an editing context"),
			},
			"/v1/activity/flush/{contextID}": map[string]any{
				"post": op("Flush pending activity"),
			},
			"/v1/activity/begin-bulk": map[string]any{
				"post": op("Begin a bulk operation"),
			},
			"/v1/activity/end-bulk": map[string]any{
				"post": op("End a bulk operation"),
			},
			"/v1/activity/bulk/active": map[string]any{
				"get": op("List live bulk operations"),
			},
			"/v1/activity/logs": map[string]any{
				"get": op("List activity log entries"),
			},
			"/v1/components": map[string]any{
				"get":  op("List components"),
				"post": op("Create component"),
			},
			"/v1/components/{id}": map[string]any{
				"get":    op("Get component"),
				"put":    op("Update component"),
				"delete": op("Delete component"),
			},
			"/v1/components:bulk-import": map[string]any{
				"post": op("Bulk import components"),
			},
			"/v1/components:bulk-delete": map[string]any{
				"post": op("Bulk delete components"),
			},
		},
	}
}
