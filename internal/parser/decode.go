package parser

import (
	"math"

	"github.com/tidwall/gjson"
)

// UnmarshalJSON decodes a project leniently. A field of the wrong
// JSON type reads as absent instead of failing the document.
func (p *Project) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	*p = Project{
		ProjectID:        scalarString(r.Get("project_id")),
		Name:             scalarString(r.Get("name")),
		ShortURL:         optString(r.Get("short_url")),
		CreatedAt:        timestampFromResult(r.Get("created_at")),
		UpdatedAt:        timestampFromResult(r.Get("updated_at")),
		LastInteractedAt: timestampFromResult(r.Get("last_interacted_at")),
		NumInteractions:  optInt(r.Get("num_interactions")),
		MemoryEnabled:    optBool(r.Get("memory_enabled")),
		MemoryScope:      optString(r.Get("memory_scope")),
		OrganizationID:   optString(r.Get("organization_id")),
		Author:           optString(r.Get("author")),
	}
	return nil
}

// UnmarshalJSON decodes a conversation leniently, like Project.
// A non-object mapping reads as empty.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	*c = Conversation{
		ID:               scalarString(r.Get("id")),
		Title:            optScalarString(r.Get("title")),
		CreateTime:       timestampFromResult(r.Get("create_time")),
		UpdateTime:       timestampFromResult(r.Get("update_time")),
		GizmoID:          optString(r.Get("gizmo_id")),
		GizmoType:        optString(r.Get("gizmo_type")),
		DefaultModelSlug: optString(r.Get("default_model_slug")),
		IsArchived:       r.Get("is_archived").Type == gjson.True,
		MemoryScope:      optString(r.Get("memory_scope")),
		Mapping:          parseMapping(r.Get("mapping")),
	}
	return nil
}

// scalarString returns strings as is and numbers as their JSON
// text. Anything else is "".
func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}

func optScalarString(r gjson.Result) *string {
	if r.Type != gjson.String && r.Type != gjson.Number {
		return nil
	}
	s := scalarString(r)
	return &s
}

func optString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

// optInt accepts integral numbers, including ones written with a
// fraction such as 3.0.
func optInt(r gjson.Result) *int {
	if r.Type != gjson.Number || r.Num != math.Trunc(r.Num) ||
		math.Abs(r.Num) > math.MaxInt32 {
		return nil
	}
	n := int(r.Num)
	return &n
}

func optBool(r gjson.Result) *bool {
	if r.Type != gjson.True && r.Type != gjson.False {
		return nil
	}
	b := r.Type == gjson.True
	return &b
}
