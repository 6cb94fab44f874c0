package correlate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/wesm/projectsview/internal/parser"
)

// maxCandidates bounds the project names suggested on a miss.
const maxCandidates = 10

// ErrProjectNotFound is matched by every *NotFoundError.
var ErrProjectNotFound = errors.New("project not found")

// NotFoundError reports a project query that matched nothing.
// Candidates holds up to ten projects in list order; Total is the
// number of projects that could have matched.
type NotFoundError struct {
	Query      string
	Candidates []parser.Project
	Total      int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.Query)
}

// Is makes errors.Is(err, ErrProjectNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrProjectNotFound
}

// LinkedConversation is a conversation together with the gizmo
// id it was grouped under.
type LinkedConversation struct {
	GizmoID      string
	Conversation parser.Conversation
}

// NonProjectGroups classifies conversations with no gizmo_id.
type NonProjectGroups struct {
	CustomGPT []parser.Conversation
	Regular   []parser.Conversation
}

// Len returns the number of conversations in both groups.
func (g NonProjectGroups) Len() int {
	return len(g.CustomGPT) + len(g.Regular)
}

// Totals are the headline counts of an archive.
type Totals struct {
	Projects                int `json:"total_projects"`
	Conversations           int `json:"total_conversations"`
	ProjectConversations    int `json:"project_conversations"`
	NonProjectConversations int `json:"non_project_conversations"`
}

// Engine answers correlation queries over one loaded archive.
// It is immutable after NewEngine and safe for concurrent use.
type Engine struct {
	index    *Index
	groups   *Grouping
	convs    []parser.Conversation
	convByID map[string]int
}

// NewEngine indexes projects and groups conversations.
func NewEngine(
	projects []parser.Project, convs []parser.Conversation,
) *Engine {
	e := &Engine{
		index:    NewIndex(projects),
		groups:   Group(convs),
		convs:    convs,
		convByID: make(map[string]int, len(convs)),
	}
	for i, c := range convs {
		if _, dup := e.convByID[c.ID]; !dup {
			e.convByID[c.ID] = i
		}
	}
	return e
}

// FromArchive builds an Engine over a loaded archive.
func FromArchive(a parser.Archive) *Engine {
	return NewEngine(a.Projects, a.Conversations)
}

// Index returns the engine's project index.
func (e *Engine) Index() *Index {
	return e.index
}

// Projects returns the projects in list order.
func (e *Engine) Projects() []parser.Project {
	return e.index.Projects()
}

// Conversations returns all conversations in source order.
func (e *Engine) Conversations() []parser.Conversation {
	return e.convs
}

// Resolve finds a project by id or name. A miss returns a
// *NotFoundError.
func (e *Engine) Resolve(query string) (parser.Project, error) {
	if p, ok := e.index.Resolve(query); ok {
		return p, nil
	}
	projects := e.index.Projects()
	return parser.Project{}, &NotFoundError{
		Query:      query,
		Candidates: slices.Clone(projects[:min(len(projects), maxCandidates)]),
		Total:      len(projects),
	}
}

// ConversationsFor resolves query and returns the project's
// conversations, most recently updated first.
func (e *Engine) ConversationsFor(
	query string,
) (parser.Project, []parser.Conversation, error) {
	p, err := e.Resolve(query)
	if err != nil {
		return parser.Project{}, nil, err
	}
	return p, SortByUpdateDesc(e.groups.Bucket(p.ProjectID)), nil
}

// ProjectConversations returns the bucket for a project id in
// source order.
func (e *Engine) ProjectConversations(
	projectID string,
) []parser.Conversation {
	return e.groups.Bucket(projectID)
}

// NonProject splits conversations without a gizmo_id into custom
// GPT and regular chats, keeping source order.
func (e *Engine) NonProject() NonProjectGroups {
	var g NonProjectGroups
	for _, c := range e.groups.None() {
		if c.IsCustomGPT() {
			g.CustomGPT = append(g.CustomGPT, c)
		} else {
			g.Regular = append(g.Regular, c)
		}
	}
	return g
}

// Orphans returns conversations that reference a project id
// which is not in the projects document.
func (e *Engine) Orphans() []LinkedConversation {
	return e.linked(func(key string) bool {
		return strings.HasPrefix(key, parser.ProjectIDPrefix)
	})
}

// Unlinked returns conversations grouped under a gizmo id that is
// neither a known project nor a project reference.
func (e *Engine) Unlinked() []LinkedConversation {
	return e.linked(func(key string) bool {
		return !strings.HasPrefix(key, parser.ProjectIDPrefix)
	})
}

func (e *Engine) linked(keep func(string) bool) []LinkedConversation {
	var out []LinkedConversation
	for _, key := range e.groups.Keys() {
		if e.index.Has(key) || !keep(key) {
			continue
		}
		for _, c := range e.groups.Bucket(key) {
			out = append(out, LinkedConversation{
				GizmoID: key, Conversation: c,
			})
		}
	}
	return out
}

// Totals returns the headline counts.
func (e *Engine) Totals() Totals {
	project := e.groups.ProjectConversationCount()
	return Totals{
		Projects:                e.index.Len(),
		Conversations:           e.groups.Len(),
		ProjectConversations:    project,
		NonProjectConversations: e.groups.Len() - project,
	}
}

// Conversation looks up a conversation by id. With duplicate ids
// the first one in source order wins.
func (e *Engine) Conversation(id string) (parser.Conversation, bool) {
	i, ok := e.convByID[id]
	if !ok {
		return parser.Conversation{}, false
	}
	return e.convs[i], true
}

// SortByUpdateDesc returns a copy of convs ordered by update_time,
// newest first. Ties and missing times keep source order.
func SortByUpdateDesc(
	convs []parser.Conversation,
) []parser.Conversation {
	out := slices.Clone(convs)
	slices.SortStableFunc(out, func(a, b parser.Conversation) int {
		return compareDesc(a.UpdateTime.Seconds(), b.UpdateTime.Seconds())
	})
	return out
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
