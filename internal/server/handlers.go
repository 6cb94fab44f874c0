package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wesm/projectsview/internal/correlate"
	"github.com/wesm/projectsview/internal/parser"
	"github.com/wesm/projectsview/internal/report"
	"github.com/wesm/projectsview/internal/timeutil"
)

type healthResponse struct {
	Status        string `json:"status"`
	Loaded        bool   `json:"loaded"`
	LoadedAt      string `json:"loaded_at,omitempty"`
	Projects      int    `json:"projects"`
	Conversations int    `json:"conversations"`
}

type projectStats struct {
	ProjectID         string           `json:"project_id"`
	Name              string           `json:"name"`
	ConversationCount int              `json:"conversation_count"`
	NumInteractions   int              `json:"num_interactions"`
	FirstActivity     parser.Timestamp `json:"first_activity"`
	LastActivity      parser.Timestamp `json:"last_activity"`
}

type projectListResponse struct {
	Projects []projectStats   `json:"projects"`
	Totals   correlate.Totals `json:"totals"`
}

type candidate struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type notFoundResponse struct {
	Error      string      `json:"error"`
	Candidates []candidate `json:"candidates"`
	Total      int         `json:"total"`
}

type messagesResponse struct {
	ConversationID string           `json:"conversation_id"`
	Title          *string          `json:"title"`
	Policy         string           `json:"policy"`
	Count          int              `json:"count"`
	Messages       []parser.Message `json:"messages"`
}

// requireEngine returns the current engine or writes 503.
func (s *Server) requireEngine(
	w http.ResponseWriter,
) (*correlate.Engine, bool) {
	e, _ := s.currentEngine()
	if e == nil {
		writeError(w, http.StatusServiceUnavailable, ErrNotLoaded.Error())
		return nil, false
	}
	return e, true
}

// pathParam returns a URL parameter, unescaped when the router
// matched against the raw path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func (s *Server) reportOptions(withMessages bool) report.Options {
	return report.Options{
		WithMessages: withMessages,
		Policy:       s.cfg.Policy(),
		Workers:      s.cfg.Workers,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	e, loadedAt := s.currentEngine()
	resp := healthResponse{Status: "ok"}
	if e != nil {
		t := e.Totals()
		resp.Loaded = true
		resp.LoadedAt = timeutil.Format(loadedAt)
		resp.Projects = t.Projects
		resp.Conversations = t.Conversations
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	e, ok := s.requireEngine(w)
	if !ok {
		return
	}
	ranked := e.RankedStats()
	resp := projectListResponse{
		Projects: make([]projectStats, 0, len(ranked)),
		Totals:   e.Totals(),
	}
	for _, st := range ranked {
		resp.Projects = append(resp.Projects, projectStats{
			ProjectID:         st.Project.ProjectID,
			Name:              st.Project.Name,
			ConversationCount: st.ConversationCount,
			NumInteractions:   st.Project.Interactions(),
			FirstActivity:     st.FirstActivity,
			LastActivity:      st.LastActivity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	e, ok := s.requireEngine(w)
	if !ok {
		return
	}
	doc, err := report.BuildProjectExport(
		r.Context(), e, pathParam(r, "query"), s.reportOptions(true),
	)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.requireEngine(w)
	if !ok {
		return
	}
	withMessages, ok := parseBoolParam(w, r, "messages")
	if !ok {
		return
	}
	doc, err := report.BuildFullExport(
		r.Context(), e, s.reportOptions(withMessages),
	)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleNonProject(w http.ResponseWriter, r *http.Request) {
	e, ok := s.requireEngine(w)
	if !ok {
		return
	}
	withMessages, ok := parseBoolParam(w, r, "messages")
	if !ok {
		return
	}
	doc, err := report.BuildNonProjectExport(
		r.Context(), e, s.reportOptions(withMessages),
	)
	if err != nil {
		s.writeBuildError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	e, ok := s.requireEngine(w)
	if !ok {
		return
	}
	policy := s.cfg.Policy()
	if q := r.URL.Query().Get("policy"); q != "" {
		p, err := parser.ParseBranchPolicy(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	id := pathParam(r, "id")
	conv, found := e.Conversation(id)
	if !found {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	msgs := parser.Reconstruct(conv.Mapping, policy)
	if msgs == nil {
		msgs = []parser.Message{}
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Policy:         string(policy),
		Count:          len(msgs),
		Messages:       msgs,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	if err := s.Reload(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrNotLoaded) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	e, _ := s.currentEngine()
	t := e.Totals()
	writeJSON(w, http.StatusOK, map[string]any{
		"projects":      t.Projects,
		"conversations": t.Conversations,
		"duration_ms":   time.Since(start).Milliseconds(),
	})
}

// writeBuildError maps report build errors to responses.
func (s *Server) writeBuildError(w http.ResponseWriter, err error) {
	var nf *correlate.NotFoundError
	switch {
	case errors.As(err, &nf):
		resp := notFoundResponse{
			Error:      nf.Error(),
			Candidates: make([]candidate, 0, len(nf.Candidates)),
			Total:      nf.Total,
		}
		for _, p := range nf.Candidates {
			resp.Candidates = append(resp.Candidates, candidate{
				ProjectID: p.ProjectID, Name: p.DisplayName(),
			})
		}
		writeJSON(w, http.StatusNotFound, resp)
	case isContextError(err):
		return
	default:
		s.logger.Error("building report", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
