// Package report shapes correlated conversations into export
// documents and console listings.
package report

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wesm/projectsview/internal/parser"
)

// Options controls how conversation summaries are built.
type Options struct {
	// WithMessages adds the reconstructed message list.
	WithMessages bool
	// Policy selects the branch walk used for messages.
	Policy parser.BranchPolicy
	// Workers bounds parallel reconstruction. Zero means
	// GOMAXPROCS.
	Workers int
	// Now stamps generated_at. Nil means time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

// GizmoRef is the gizmo_id attached to some summaries. An unset
// ref omits the key entirely while a set ref with a nil ID writes
// null, as custom GPT chats without a gizmo id do.
type GizmoRef struct {
	Set bool
	ID  *string
}

// RefTo returns a set GizmoRef for id.
func RefTo(id *string) GizmoRef {
	return GizmoRef{Set: true, ID: id}
}

// IsZero reports whether the ref is unset.
func (r GizmoRef) IsZero() bool {
	return !r.Set
}

func (r GizmoRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

// ConversationSummary is the per-conversation record of every
// export document.
type ConversationSummary struct {
	ID           string           `json:"id"`
	Title        *string          `json:"title"`
	CreateTime   parser.Timestamp `json:"create_time"`
	UpdateTime   parser.Timestamp `json:"update_time"`
	MessageCount int              `json:"message_count"`
	Model        *string          `json:"model"`
	IsArchived   bool             `json:"is_archived"`
	MemoryScope  *string          `json:"memory_scope"`
	Messages     []parser.Message `json:"messages,omitzero"`
	GizmoID      GizmoRef         `json:"gizmo_id,omitzero"`
}

// Summarize builds the summary of one conversation.
// MessageCount is the raw node count of the mapping, placeholders
// included, so it can exceed len(Messages).
func Summarize(
	c parser.Conversation, opts Options,
) ConversationSummary {
	s := ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		CreateTime:   c.CreateTime,
		UpdateTime:   c.UpdateTime,
		MessageCount: c.Mapping.Len(),
		Model:        c.DefaultModelSlug,
		IsArchived:   c.IsArchived,
		MemoryScope:  c.MemoryScope,
	}
	if opts.WithMessages {
		s.Messages = parser.Reconstruct(c.Mapping, opts.Policy)
		if s.Messages == nil {
			s.Messages = []parser.Message{}
		}
	}
	return s
}

// summarizeAll summarizes convs in parallel. Results keep the
// input order. The only error is ctx cancellation.
func summarizeAll(
	ctx context.Context, convs []parser.Conversation, opts Options,
) ([]ConversationSummary, error) {
	out := make([]ConversationSummary, len(convs))
	if !opts.WithMessages {
		for i, c := range convs {
			out[i] = Summarize(c, opts)
		}
		return out, ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, c := range convs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Summarize(c, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
