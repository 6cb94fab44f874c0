package report

import (
	"cmp"
	"context"
	"slices"

	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
	"github.com/wesm/projectsview/internal/timeutil"
)

// Group descriptions written into export documents.
const (
	CustomGPTDescription = "Conversations with custom GPTs (not projects)"
	RegularDescription   = "Regular ChatGPT conversations " +
		"(no project or custom GPT)"
	OrphanedDescription = "Conversations linked to projects not in " +
		"projects.json (possibly deleted)"
	UnlinkedDescription = "Conversations linked to gizmo ids that are " +
		"neither known projects nor project references"
)

// ProjectRecord is the project metadata copied into exports.
type ProjectRecord struct {
	ProjectID        string           `json:"project_id"`
	Name             string           `json:"name"`
	ShortURL         *string          `json:"short_url"`
	CreatedAt        parser.Timestamp `json:"created_at"`
	UpdatedAt        parser.Timestamp `json:"updated_at"`
	LastInteractedAt parser.Timestamp `json:"last_interacted_at"`
	NumInteractions  *int             `json:"num_interactions"`
	MemoryEnabled    *bool            `json:"memory_enabled"`
	MemoryScope      *string          `json:"memory_scope"`
}

// RecordOf copies the exported fields of p.
func RecordOf(p parser.Project) ProjectRecord {
	return ProjectRecord{
		ProjectID:        p.ProjectID,
		Name:             p.Name,
		ShortURL:         p.ShortURL,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		LastInteractedAt: p.LastInteractedAt,
		NumInteractions:  p.NumInteractions,
		MemoryEnabled:    p.MemoryEnabled,
		MemoryScope:      p.MemoryScope,
	}
}

// ProjectEntry is one project of the full export.
type ProjectEntry struct {
	ProjectRecord
	ConversationCount int                   `json:"conversation_count"`
	Conversations     []ConversationSummary `json:"conversations"`
}

// Group is a counted, described list of conversations.
type Group struct {
	Count         int                   `json:"count"`
	Description   string                `json:"description"`
	Conversations []ConversationSummary `json:"conversations"`
}

func newGroup(desc string, convs []ConversationSummary) Group {
	if convs == nil {
		convs = []ConversationSummary{}
	}
	return Group{
		Count:         len(convs),
		Description:   desc,
		Conversations: convs,
	}
}

// optionalGroup returns nil for an empty group so the key is
// left out of the document.
func optionalGroup(desc string, convs []ConversationSummary) *Group {
	if len(convs) == 0 {
		return nil
	}
	g := newGroup(desc, convs)
	return &g
}

// NonProjectSection splits conversations without a project.
type NonProjectSection struct {
	CustomGPT Group `json:"custom_gpt_conversations"`
	Regular   Group `json:"regular_conversations"`
}

// FullExport is the document written by the export command.
type FullExport struct {
	GeneratedAt string            `json:"generated_at"`
	Summary     correlate.Totals  `json:"summary"`
	Projects    []ProjectEntry    `json:"projects"`
	NonProject  NonProjectSection `json:"non_project_conversations"`
	Orphaned    *Group            `json:"orphaned_project_conversations,omitempty"`
	Unlinked    *Group            `json:"unlinked_gizmo_conversations,omitempty"`
}

// ProjectExport is the document written for a single project.
type ProjectExport struct {
	GeneratedAt       string                `json:"generated_at"`
	Project           ProjectRecord         `json:"project"`
	ConversationCount int                   `json:"conversation_count"`
	Conversations     []ConversationSummary `json:"conversations"`
}

// NonProjectSummary counts the non-project export.
type NonProjectSummary struct {
	Total     int `json:"total_non_project_conversations"`
	CustomGPT int `json:"custom_gpt_conversations"`
	Regular   int `json:"regular_conversations"`
}

// NonProjectExport is the document written for conversations
// outside any project.
type NonProjectExport struct {
	GeneratedAt string            `json:"generated_at"`
	Summary     NonProjectSummary `json:"summary"`
	CustomGPT   Group             `json:"custom_gpt_conversations"`
	Regular     Group             `json:"regular_conversations"`
	Unlinked    *Group            `json:"unlinked_gizmo_conversations,omitempty"`
}

// BuildFullExport builds the full export. Projects are ordered by
// conversation count, descending and stable; conversations inside
// every group keep source order.
func BuildFullExport(
	ctx context.Context, e *correlate.Engine, opts Options,
) (*FullExport, error) {
	ranked := e.RankedStats()
	out := &FullExport{
		GeneratedAt: timeutil.Format(opts.now()),
		Summary:     e.Totals(),
		Projects:    make([]ProjectEntry, 0, len(ranked)),
	}

	// project_conversations counts the conversations listed under
	// known projects, unlike Totals which counts every bucket.
	out.Summary.ProjectConversations = 0
	for _, st := range ranked {
		convs, err := summarizeAll(
			ctx, e.ProjectConversations(st.Project.ProjectID), opts,
		)
		if err != nil {
			return nil, err
		}
		out.Projects = append(out.Projects, ProjectEntry{
			ProjectRecord:     RecordOf(st.Project),
			ConversationCount: len(convs),
			Conversations:     convs,
		})
		out.Summary.ProjectConversations += len(convs)
	}

	np := e.NonProject()
	gpt, err := summarizeAll(ctx, np.CustomGPT, opts)
	if err != nil {
		return nil, err
	}
	for i := range gpt {
		gpt[i].GizmoID = RefTo(np.CustomGPT[i].GizmoID)
	}
	regular, err := summarizeAll(ctx, np.Regular, opts)
	if err != nil {
		return nil, err
	}
	out.NonProject = NonProjectSection{
		CustomGPT: newGroup(CustomGPTDescription, gpt),
		Regular:   newGroup(RegularDescription, regular),
	}

	orphaned, err := summarizeLinked(ctx, e.Orphans(), opts)
	if err != nil {
		return nil, err
	}
	out.Orphaned = optionalGroup(OrphanedDescription, orphaned)

	unlinked, err := summarizeLinked(ctx, e.Unlinked(), opts)
	if err != nil {
		return nil, err
	}
	out.Unlinked = optionalGroup(UnlinkedDescription, unlinked)
	return out, nil
}

// BuildProjectExport builds the export of a single project.
// Messages are always included and conversations are ordered by
// update_time, newest first.
func BuildProjectExport(
	ctx context.Context, e *correlate.Engine, query string, opts Options,
) (*ProjectExport, error) {
	p, convs, err := e.ConversationsFor(query)
	if err != nil {
		return nil, err
	}
	opts.WithMessages = true
	summaries, err := summarizeAll(ctx, convs, opts)
	if err != nil {
		return nil, err
	}
	return &ProjectExport{
		GeneratedAt:       timeutil.Format(opts.now()),
		Project:           RecordOf(p),
		ConversationCount: len(summaries),
		Conversations:     summaries,
	}, nil
}

// BuildNonProjectExport builds the export of conversations
// outside any project. Each group is ordered by update_time,
// newest first.
func BuildNonProjectExport(
	ctx context.Context, e *correlate.Engine, opts Options,
) (*NonProjectExport, error) {
	np := e.NonProject()
	gptConvs := correlate.SortByUpdateDesc(np.CustomGPT)
	gpt, err := summarizeAll(ctx, gptConvs, opts)
	if err != nil {
		return nil, err
	}
	for i := range gpt {
		gpt[i].GizmoID = RefTo(gptConvs[i].GizmoID)
	}
	regular, err := summarizeAll(
		ctx, correlate.SortByUpdateDesc(np.Regular), opts,
	)
	if err != nil {
		return nil, err
	}

	unlinked, err := summarizeLinked(
		ctx, sortLinkedByUpdateDesc(e.Unlinked()), opts,
	)
	if err != nil {
		return nil, err
	}

	return &NonProjectExport{
		GeneratedAt: timeutil.Format(opts.now()),
		Summary: NonProjectSummary{
			Total:     np.Len(),
			CustomGPT: len(gpt),
			Regular:   len(regular),
		},
		CustomGPT: newGroup(CustomGPTDescription, gpt),
		Regular:   newGroup(RegularDescription, regular),
		Unlinked:  optionalGroup(UnlinkedDescription, unlinked),
	}, nil
}

func summarizeLinked(
	ctx context.Context, linked []correlate.LinkedConversation, opts Options,
) ([]ConversationSummary, error) {
	convs := make([]parser.Conversation, len(linked))
	for i, l := range linked {
		convs[i] = l.Conversation
	}
	out, err := summarizeAll(ctx, convs, opts)
	if err != nil {
		return nil, err
	}
	for i := range out {
		id := linked[i].GizmoID
		out[i].GizmoID = RefTo(&id)
	}
	return out, nil
}

func sortLinkedByUpdateDesc(
	linked []correlate.LinkedConversation,
) []correlate.LinkedConversation {
	out := slices.Clone(linked)
	slices.SortStableFunc(out, func(a, b correlate.LinkedConversation) int {
		return cmp.Compare(
			b.Conversation.UpdateTime.Seconds(),
			a.Conversation.UpdateTime.Seconds(),
		)
	})
	return out
}
