package parser

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// RoleType identifies the role of a message sender.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
	RoleSystem    RoleType = "system"
	RoleTool      RoleType = "tool"
	RoleUnknown   RoleType = "unknown"
)

// ProjectIDPrefix marks a gizmo id as a project reference rather
// than a custom GPT.
const ProjectIDPrefix = "g-p-"

// GizmoTypeGPT tags a conversation held with a custom GPT.
const GizmoTypeGPT = "gpt"

// Project is one entry of the projects document.
type Project struct {
	ProjectID        string    `json:"project_id"`
	Name             string    `json:"name"`
	ShortURL         *string   `json:"short_url"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
	LastInteractedAt Timestamp `json:"last_interacted_at"`
	NumInteractions  *int      `json:"num_interactions"`
	MemoryEnabled    *bool     `json:"memory_enabled"`
	MemoryScope      *string   `json:"memory_scope"`
	OrganizationID   *string   `json:"organization_id,omitempty"`
	Author           *string   `json:"author,omitempty"`
}

// DisplayName returns the project name, or "(unnamed)".
func (p Project) DisplayName() string {
	if p.Name == "" {
		return "(unnamed)"
	}
	return p.Name
}

// Interactions returns NumInteractions, defaulting to 0.
func (p Project) Interactions() int {
	if p.NumInteractions == nil {
		return 0
	}
	return *p.NumInteractions
}

// Conversation is one entry of the conversations document.
type Conversation struct {
	ID               string    `json:"id"`
	Title            *string   `json:"title"`
	CreateTime       Timestamp `json:"create_time"`
	UpdateTime       Timestamp `json:"update_time"`
	GizmoID          *string   `json:"gizmo_id"`
	GizmoType        *string   `json:"gizmo_type"`
	DefaultModelSlug *string   `json:"default_model_slug"`
	IsArchived       bool      `json:"is_archived"`
	MemoryScope      *string   `json:"memory_scope"`
	Mapping          Mapping   `json:"mapping"`
}

// DisplayTitle returns the conversation title, or "(untitled)".
func (c Conversation) DisplayTitle() string {
	if c.Title == nil {
		return "(untitled)"
	}
	return *c.Title
}

// IsCustomGPT reports whether the conversation was held with a
// custom GPT.
func (c Conversation) IsCustomGPT() bool {
	return c.GizmoType != nil && *c.GizmoType == GizmoTypeGPT
}

// MessageNode is one revision node of a conversation mapping.
type MessageNode struct {
	ID       string
	Parent   *string
	Children []string
	Message  *NodeMessage
}

// NodeMessage is the payload carried by a mapping node. Absent
// or irregular fields decode to their zero values.
type NodeMessage struct {
	ID         string
	Role       string
	Parts      []gjson.Result
	CreateTime Timestamp
	ModelSlug  *string
}

// Message is a single extracted message of a reconstructed
// conversation.
type Message struct {
	ID         string    `json:"id"`
	Role       RoleType  `json:"role"`
	Content    string    `json:"content"`
	CreateTime Timestamp `json:"create_time"`
	Model      *string   `json:"model"`
}

// Mapping is the node arena of a conversation, keyed by node id.
// Document key order is preserved so traversal is deterministic.
type Mapping struct {
	order []string
	nodes map[string]MessageNode
}

// NewMapping builds a Mapping from nodes in the given order. A
// node whose ID repeats an earlier one replaces it in place.
func NewMapping(nodes ...MessageNode) Mapping {
	var m Mapping
	for _, n := range nodes {
		m.add(n.ID, n)
	}
	return m
}

func (m *Mapping) add(key string, n MessageNode) {
	if m.nodes == nil {
		m.nodes = make(map[string]MessageNode)
	}
	if _, ok := m.nodes[key]; !ok {
		m.order = append(m.order, key)
	}
	m.nodes[key] = n
}

// Len returns the raw node count.
func (m Mapping) Len() int {
	return len(m.order)
}

// Node returns the node stored under the given mapping key.
func (m Mapping) Node(id string) (MessageNode, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// IDs returns mapping keys in document order.
func (m Mapping) IDs() []string {
	return append([]string(nil), m.order...)
}

// UnmarshalJSON decodes a mapping object leniently: a mapping
// that is not an object reads as empty and entries that are not
// objects are skipped rather than failing the document.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	*m = parseMapping(gjson.ParseBytes(data))
	return nil
}

func parseMapping(r gjson.Result) Mapping {
	var m Mapping
	if !r.IsObject() {
		return m
	}
	r.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		m.add(key.String(), parseNode(key.String(), value))
		return true
	})
	return m
}

// MarshalJSON re-encodes the mapping in document order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, id := range m.order {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.nodes[id].toJSON())
		if err != nil {
			return nil, fmt.Errorf("encoding node %s: %w", id, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func parseNode(key string, r gjson.Result) MessageNode {
	n := MessageNode{ID: r.Get("id").String()}
	if n.ID == "" {
		n.ID = key
	}
	if p := r.Get("parent"); p.Type == gjson.String {
		parent := p.Str
		n.Parent = &parent
	}
	r.Get("children").ForEach(func(_, c gjson.Result) bool {
		if c.Type == gjson.String {
			n.Children = append(n.Children, c.Str)
		}
		return true
	})
	if msg := r.Get("message"); msg.IsObject() {
		n.Message = parseNodeMessage(msg)
	}
	return n
}

func parseNodeMessage(r gjson.Result) *NodeMessage {
	m := &NodeMessage{
		ID:   r.Get("id").String(),
		Role: r.Get("author.role").String(),
	}
	if parts := r.Get("content.parts"); parts.IsArray() {
		m.Parts = parts.Array()
	}
	if ct := r.Get("create_time"); ct.Exists() {
		m.CreateTime = timestampFromResult(ct)
	}
	if slug := r.Get("metadata.model_slug"); slug.Type == gjson.String {
		s := slug.Str
		m.ModelSlug = &s
	}
	return m
}

// toJSON rebuilds the node's export shape for MarshalJSON.
func (n MessageNode) toJSON() map[string]any {
	out := map[string]any{
		"id":       n.ID,
		"parent":   n.Parent,
		"children": n.Children,
		"message":  nil,
	}
	if n.Children == nil {
		out["children"] = []string{}
	}
	if msg := n.Message; msg != nil {
		parts := make([]json.RawMessage, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			parts = append(parts, json.RawMessage(p.Raw))
		}
		out["message"] = map[string]any{
			"id":          msg.ID,
			"author":      map[string]any{"role": msg.Role},
			"content":     map[string]any{"parts": parts},
			"create_time": msg.CreateTime,
			"metadata":    map[string]any{"model_slug": msg.ModelSlug},
		}
	}
	return out
}
