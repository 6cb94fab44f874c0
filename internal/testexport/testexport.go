// Package testexport provides shared fixture builders for
// projects and conversations export documents. Used by the
// parser, correlate, report, server and cmd test packages.
package testexport

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Node is a mapping node fixture. Message is nil for
// placeholder nodes.
type Node struct {
	ID       string
	Parent   *string
	Children []string
	Message  map[string]any
}

// MappingBuilder constructs a conversation mapping with stable
// key order. Nodes added with Add are appended to their parent's
// children automatically.
type MappingBuilder struct {
	order []string
	nodes map[string]*Node
}

// NewMappingBuilder returns a builder holding a single
// placeholder root node with the given id.
func NewMappingBuilder(rootID string) *MappingBuilder {
	b := &MappingBuilder{nodes: make(map[string]*Node)}
	b.put(&Node{ID: rootID})
	return b
}

// EmptyMapping returns a builder without any nodes.
func EmptyMapping() *MappingBuilder {
	return &MappingBuilder{nodes: make(map[string]*Node)}
}

func (b *MappingBuilder) put(n *Node) {
	if _, ok := b.nodes[n.ID]; !ok {
		b.order = append(b.order, n.ID)
	}
	b.nodes[n.ID] = n
}

// Add appends a message node under parent with the given role
// and content parts. Parts may be strings or maps.
func (b *MappingBuilder) Add(
	id, parent, role string, parts ...any,
) *MappingBuilder {
	return b.AddMessage(id, parent, MessageJSON(id, role, parts...))
}

// AddMessage appends a node carrying an arbitrary message object.
func (b *MappingBuilder) AddMessage(
	id, parent string, msg map[string]any,
) *MappingBuilder {
	p := parent
	b.put(&Node{ID: id, Parent: &p, Message: msg})
	if pn, ok := b.nodes[parent]; ok {
		pn.Children = append(pn.Children, id)
	}
	return b
}

// AddRaw appends a node exactly as given, without touching any
// other node's children. Use it for inconsistent graphs.
func (b *MappingBuilder) AddRaw(n Node) *MappingBuilder {
	node := n
	b.put(&node)
	return b
}

// SetChildren overrides a node's declared children.
func (b *MappingBuilder) SetChildren(
	id string, children ...string,
) *MappingBuilder {
	if n, ok := b.nodes[id]; ok {
		n.Children = children
	}
	return b
}

// Raw returns the mapping as a JSON object with keys in insertion
// order.
func (b *MappingBuilder) Raw() json.RawMessage {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range b.order {
		if i > 0 {
			sb.WriteByte(',')
		}
		n := b.nodes[id]
		children := n.Children
		if children == nil {
			children = []string{}
		}
		sb.WriteString(mustMarshal(id))
		sb.WriteByte(':')
		sb.WriteString(mustMarshal(map[string]any{
			"id":       n.ID,
			"parent":   n.Parent,
			"children": children,
			"message":  n.Message,
		}))
	}
	sb.WriteByte('}')
	return json.RawMessage(sb.String())
}

// String returns the mapping JSON.
func (b *MappingBuilder) String() string {
	return string(b.Raw())
}

// MessageJSON builds a message payload object.
func MessageJSON(id, role string, parts ...any) map[string]any {
	if parts == nil {
		parts = []any{}
	}
	return map[string]any{
		"id":          id,
		"author":      map[string]any{"role": role},
		"content":     map[string]any{"content_type": "text", "parts": parts},
		"create_time": nil,
		"metadata":    map[string]any{},
	}
}

// Linear returns a builder with a placeholder root followed by a
// chain of alternating user/assistant messages.
func Linear(texts ...string) *MappingBuilder {
	b := NewMappingBuilder("root")
	parent := "root"
	for i, text := range texts {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		id := "n" + strconv.Itoa(i+1)
		b.Add(id, parent, role, text)
		parent = id
	}
	return b
}

// ConversationBuilder constructs a conversation object.
type ConversationBuilder struct {
	fields map[string]any
}

// NewConversation returns a conversation with the given id, a
// title derived from it and an empty mapping.
func NewConversation(id string) *ConversationBuilder {
	return &ConversationBuilder{fields: map[string]any{
		"id":                 id,
		"title":              "Conversation " + id,
		"create_time":        nil,
		"update_time":        nil,
		"gizmo_id":           nil,
		"gizmo_type":         nil,
		"default_model_slug": nil,
		"is_archived":        false,
		"memory_scope":       nil,
		"mapping":            json.RawMessage("{}"),
	}}
}

// Set assigns an arbitrary field.
func (c *ConversationBuilder) Set(key string, v any) *ConversationBuilder {
	c.fields[key] = v
	return c
}

// Gizmo sets gizmo_id and gizmo_type. An empty gizmoType stays
// null.
func (c *ConversationBuilder) Gizmo(
	gizmoID, gizmoType string,
) *ConversationBuilder {
	c.fields["gizmo_id"] = gizmoID
	if gizmoType != "" {
		c.fields["gizmo_type"] = gizmoType
	}
	return c
}

// Times sets create_time and update_time. Pass nil to leave a
// field null.
func (c *ConversationBuilder) Times(
	create, update any,
) *ConversationBuilder {
	c.fields["create_time"] = create
	c.fields["update_time"] = update
	return c
}

// Mapping sets the conversation mapping.
func (c *ConversationBuilder) Mapping(
	b *MappingBuilder,
) *ConversationBuilder {
	c.fields["mapping"] = b.Raw()
	return c
}

// Map returns the conversation object.
func (c *ConversationBuilder) Map() map[string]any {
	return c.fields
}

// ProjectJSON builds a project object.
func ProjectJSON(id, name string) map[string]any {
	return map[string]any{
		"project_id":         id,
		"name":               name,
		"short_url":          nil,
		"created_at":         "2024-01-01T00:00:00Z",
		"updated_at":         nil,
		"last_interacted_at": nil,
		"num_interactions":   0,
		"memory_enabled":     nil,
		"memory_scope":       nil,
	}
}

// ConversationsDocument marshals conversations into a
// conversations document.
func ConversationsDocument(convs ...*ConversationBuilder) string {
	items := make([]map[string]any, 0, len(convs))
	for _, c := range convs {
		items = append(items, c.Map())
	}
	return mustMarshal(items)
}

// ProjectsDocument marshals projects into a projects document.
func ProjectsDocument(projects ...map[string]any) string {
	if projects == nil {
		projects = []map[string]any{}
	}
	return mustMarshal(projects)
}

// Ptr returns a pointer to s.
func Ptr(s string) *string {
	return &s
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
