package correlate

import "github.com/wesm/projectsview/internal/parser"

// Grouping partitions conversations by gizmo_id. Conversations
// with a null gizmo_id land in the none bucket. Every
// conversation is in exactly one bucket and keeps its source
// order there.
type Grouping struct {
	none    []parser.Conversation
	buckets map[string][]parser.Conversation
	keys    []string
	total   int
}

// Group partitions convs by gizmo_id.
func Group(convs []parser.Conversation) *Grouping {
	g := &Grouping{
		buckets: make(map[string][]parser.Conversation),
		total:   len(convs),
	}
	for _, c := range convs {
		if c.GizmoID == nil {
			g.none = append(g.none, c)
			continue
		}
		key := *c.GizmoID
		if _, ok := g.buckets[key]; !ok {
			g.keys = append(g.keys, key)
		}
		g.buckets[key] = append(g.buckets[key], c)
	}
	return g
}

// None returns the conversations without a gizmo_id.
func (g *Grouping) None() []parser.Conversation {
	return g.none
}

// Bucket returns the conversations whose gizmo_id is key.
func (g *Grouping) Bucket(key string) []parser.Conversation {
	return g.buckets[key]
}

// Keys returns the non-null gizmo ids in first-seen order.
func (g *Grouping) Keys() []string {
	return g.keys
}

// ProjectConversationCount counts conversations in every
// non-null bucket.
func (g *Grouping) ProjectConversationCount() int {
	return g.total - len(g.none)
}

// Len returns the number of grouped conversations.
func (g *Grouping) Len() int {
	return g.total
}
