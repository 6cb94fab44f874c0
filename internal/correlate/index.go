// Package correlate links conversations to the projects they
// belong to and aggregates per-project statistics.
package correlate

import (
	"strings"

	"github.com/wesm/projectsview/internal/parser"
)

// Index resolves projects by id or name. It is built once per
// archive and never mutated.
type Index struct {
	projects []parser.Project
	byID     map[string]parser.Project
	byName   map[string]parser.Project
}

// NewIndex builds id and lowercase-name lookups over projects.
// When two projects share a name the later one wins the name
// lookup.
func NewIndex(projects []parser.Project) *Index {
	idx := &Index{
		projects: projects,
		byID:     make(map[string]parser.Project, len(projects)),
		byName:   make(map[string]parser.Project, len(projects)),
	}
	for _, p := range projects {
		if p.ProjectID != "" {
			idx.byID[p.ProjectID] = p
		}
		if name := strings.ToLower(p.Name); name != "" {
			idx.byName[name] = p
		}
	}
	return idx
}

// ByID returns the project with the given id.
func (idx *Index) ByID(id string) (parser.Project, bool) {
	p, ok := idx.byID[id]
	return p, ok
}

// Has reports whether a project with the given id exists.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Resolve finds a project by exact id, then exact name (case
// insensitive), then the first project in list order whose name
// contains query. The empty query matches nothing.
func (idx *Index) Resolve(query string) (parser.Project, bool) {
	if query == "" {
		return parser.Project{}, false
	}
	if p, ok := idx.byID[query]; ok {
		return p, true
	}
	q := strings.ToLower(query)
	if p, ok := idx.byName[q]; ok {
		return p, true
	}
	for _, p := range idx.projects {
		if strings.Contains(strings.ToLower(p.Name), q) {
			return p, true
		}
	}
	return parser.Project{}, false
}

// Projects returns the projects in list order.
func (idx *Index) Projects() []parser.Project {
	return idx.projects
}

// Len returns the number of projects.
func (idx *Index) Len() int {
	return len(idx.projects)
}
